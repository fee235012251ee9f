package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                 string // connection string for the database
	HubURL             string // websocket URL of the hub (agents/clients connect here)
	HubAddr            string // listen addr for the hub server
	NatsURL            string // if set, broadcasts are relayed to this NATS server
	WaitForServices    string // duration to wait for other services to be ready
	LogLevel           string // sets the log level (zap log level values)
	SQLLogLevel        string // sets the log level for sql subsystem
	LogFormat          string // text vs json
	MigrationSourceURL string // location of migration files
	ProfilingPort      int    // port for profiling
	PrintMessage       bool   // if true, the message payload will be print on debug level
	StationID          string // identity of the station this agent streams for
	FrameRate          string // minimum interval between two telemetry sends
	ReconnectDelay     string // fixed delay before an agent reconnects
	StaleDuration      string // duration after which an agent is considered stale
	ReplayFile         string // JSON-lines telemetry recording used as frame source
	BufferRetention    int    // number of completed lap buffers kept per station
)

// Config holds the configuration values which are used by the application
type Config struct {
	PrintMessage bool // if true, the message payload will be print on debug level
}
