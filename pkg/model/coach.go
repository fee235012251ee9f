package model

type TipKind string

const (
	TipBraking TipKind = "braking" // braking too early compared to the ghost
	TipApex    TipKind = "apex"    // apex speed markedly lower
	TipExit    TipKind = "exit"    // ghost accelerates harder out of the corner
)

type TipSeverity string

const (
	SeverityLow    TipSeverity = "low"
	SeverityMedium TipSeverity = "medium"
	SeverityHigh   TipSeverity = "high"
)

// CoachTip is one finding of the ghost comparison. Tips are derived on
// request and not persisted.
type CoachTip struct {
	Kind       TipKind     `json:"kind"`
	Severity   TipSeverity `json:"severity"`
	TrackPos   float64     `json:"trackPos"`   // normalized 0..1
	SpeedDelta float64     `json:"speedDelta"` // subject minus ghost, km/h
	Message    string      `json:"message"`
}
