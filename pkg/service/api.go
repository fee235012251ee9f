package service

import "github.com/pitwall-sim/pitwall/pkg/model"

// IngestSessionRequest is the one-shot ingestion boundary: the official
// end-of-session result for one station. The buffered telemetry traces
// arrive out of band, keyed by lap index.
type IngestSessionRequest struct {
	StationID   string              `json:"station_id"`
	Track       string              `json:"track"`
	Car         string              `json:"car"`
	Driver      string              `json:"driver"`
	SessionType string              `json:"session_type"`
	Laps        []model.OfficialLap `json:"laps"`
}
