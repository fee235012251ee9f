package model

// TelemetryFrame is one physics snapshot produced by a station's frame
// source at roughly 20Hz. Frames are ephemeral: they are broadcast to
// viewers and condensed into samples, never persisted whole.
type TelemetryFrame struct {
	StationID   string  `json:"stationId"`
	Speed       float64 `json:"speed"` // km/h
	RPM         float64 `json:"rpm"`
	Gear        int     `json:"gear"`
	SteerAngle  float64 `json:"steerAngle"`
	Throttle    float64 `json:"throttle"`
	Brake       float64 `json:"brake"`
	GForceLon   float64 `json:"gForceLon"`
	GForceLat   float64 `json:"gForceLat"`
	TrackPos    float64 `json:"normalizedCarPosition"` // 0..1 around the lap
	LapCount    int     `json:"lapCount"`
	LapTimeMs   int     `json:"currentLapTimeMs"`
	SessionTime float64 `json:"sessionTime"`
}

// TelemetrySample is the compact per-frame record kept in a lap buffer
// and stored as the telemetry trace of a persisted lap.
type TelemetrySample struct {
	OffsetMs int     `json:"offsetMs"` // elapsed time within the lap
	Speed    float64 `json:"speed"`
	RPM      float64 `json:"rpm"`
	Gear     int     `json:"gear"`
	TrackPos float64 `json:"trackPos"`
	Throttle float64 `json:"throttle,omitempty"`
	Brake    float64 `json:"brake,omitempty"`
}

// Sample extracts the compact representation of a frame.
func (f *TelemetryFrame) Sample() TelemetrySample {
	return TelemetrySample{
		OffsetMs: f.LapTimeMs,
		Speed:    f.Speed,
		RPM:      f.RPM,
		Gear:     f.Gear,
		TrackPos: f.TrackPos,
		Throttle: f.Throttle,
		Brake:    f.Brake,
	}
}
