package model

import "time"

// OfficialLap is one entry of the authoritative end-of-session result file.
// The lap number is the 0-based position within the session.
type OfficialLap struct {
	LapNo     int   `json:"lapNo"`
	LapTimeMs int   `json:"lapTime"`
	SectorsMs []int `json:"sectors"`
	Valid     bool  `json:"isValid"`
}

//nolint:tagliatelle // client compatibility
type DbSession struct {
	ID          int       `json:"id"`
	Key         string    `json:"sessionKey"`
	StationID   string    `json:"stationId"`
	Track       string    `json:"track"`
	Car         string    `json:"car"`
	Driver      string    `json:"driver"`
	SessionType string    `json:"sessionType"`
	BestLapMs   *int      `json:"bestLapMs"` // nil until a valid lap exists
	RecordStamp time.Time `json:"recordDate"`
}

// DbLap merges one OfficialLap with the buffered telemetry trace of the
// same lap index. Trace is nil when no buffer was available for that index.
// Laps are written once at ingestion and read-only afterward.
type DbLap struct {
	ID        int               `json:"id"`
	SessionID int               `json:"sessionId"`
	LapNo     int               `json:"lapNo"`
	LapTimeMs int               `json:"lapTime"`
	SectorsMs []int             `json:"sectors"`
	Valid     bool              `json:"isValid"`
	Trace     []TelemetrySample `json:"trace"`
}
