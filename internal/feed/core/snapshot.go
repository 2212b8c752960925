package core

import (
	"slices"
	"time"
)

// Snapshot is one complete telemetry reading for a vehicle at an instant.
// Every field is always populated; sources substitute defaults for anything
// the upstream payload omits. A Snapshot is replaced, never merged, by the
// next one and must not be mutated after creation.
type Snapshot struct {
	VehicleID    string       `json:"vehicle_id"`
	Timestamp    time.Time    `json:"timestamp"`
	Motion       Motion       `json:"motion"`
	Power        Power        `json:"power"`
	Environment  Environment  `json:"environment"`
	SystemHealth SystemHealth `json:"system_health"`
	Safety       Safety       `json:"safety"`
}

type Motion struct {
	SpeedKph    float64 `json:"speed_kph"`
	RPM         float64 `json:"rpm"`
	ThrottlePct float64 `json:"throttle_pct"`
	BrakePct    float64 `json:"brake_pct"`
	Gear        int     `json:"gear"`
}

type Power struct {
	BatteryVoltage float64 `json:"battery_voltage"`
	FuelLevelPct   float64 `json:"fuel_level_pct"`
	EngineTempC    float64 `json:"engine_temp_c"`
}

type GPS struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type WheelSpeed struct {
	FrontLeft  float64 `json:"front_left"`
	FrontRight float64 `json:"front_right"`
	RearLeft   float64 `json:"rear_left"`
	RearRight  float64 `json:"rear_right"`
}

type Environment struct {
	AmbientTempC float64    `json:"ambient_temp_c"`
	HumidityPct  float64    `json:"humidity_pct"`
	GPS          GPS        `json:"gps"`
	WheelSpeed   WheelSpeed `json:"wheel_speed"`
}

type SystemHealth struct {
	CPUUsagePct      float64   `json:"cpu_usage_pct"`
	RAMUsagePct      float64   `json:"ram_usage_pct"`
	NetworkLatencyMs float64   `json:"network_latency_ms"`
	LastSync         time.Time `json:"last_sync"`
}

type Safety struct {
	ABSActive       bool     `json:"abs_active"`
	TractionControl bool     `json:"traction_control"`
	DiagnosticCodes []string `json:"diagnostic_codes"`
}

// Clone returns a deep copy so callers outside the store cannot alias the
// stored diagnostic code slice.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Safety.DiagnosticCodes == nil {
		out.Safety.DiagnosticCodes = []string{}
	} else {
		out.Safety.DiagnosticCodes = slices.Clone(s.Safety.DiagnosticCodes)
	}
	return out
}

// HasFaults reports whether any diagnostic trouble code is active.
func (s Snapshot) HasFaults() bool {
	return len(s.Safety.DiagnosticCodes) > 0
}
