package version

import (
	"fmt"
	"runtime"
)

// overwritten at build time via -ldflags
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var FullVersion = fmt.Sprintf("%s (%s) built %s with %s",
	Version, Commit, BuildDate, runtime.Version())
