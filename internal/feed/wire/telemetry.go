package wire

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
)

// Defaults substituted for fields the backend payload omits.
const (
	DefaultSpeed          = 0.0
	DefaultRPM            = 0.0
	DefaultGear           = 1
	DefaultBatteryVoltage = 12.6
	DefaultEngineTempC    = 70.0
	DefaultFuelLevelPct   = 100.0
	DefaultAmbientTempC   = 25.0
	DefaultHumidityPct    = 50.0

	// absBrakeThreshold is the brake percentage above which ABS is reported active.
	absBrakeThreshold = 50.0
)

// RawTelemetry is a backend telemetry record as served by the REST and
// websocket endpoints. Pointer fields distinguish "absent" from zero.
type RawTelemetry struct {
	Timestamp       *string  `json:"timestamp,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
	RPM             *float64 `json:"rpm,omitempty"`
	ThrottlePct     *float64 `json:"throttle_pct,omitempty"`
	BrakePct        *float64 `json:"brake_pct,omitempty"`
	Gear            *float64 `json:"gear,omitempty"`
	BatteryVoltage  *float64 `json:"battery_voltage,omitempty"`
	EngineTemp      *float64 `json:"engine_temp,omitempty"`
	FuelLevel       *float64 `json:"fuel_level,omitempty"`
	GPSLat          *float64 `json:"gps_lat,omitempty"`
	GPSLon          *float64 `json:"gps_lon,omitempty"`
	AmbientTemp     *float64 `json:"ambient_temp,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`
	WheelSpeedFL    *float64 `json:"wheel_speed_fl,omitempty"`
	WheelSpeedFR    *float64 `json:"wheel_speed_fr,omitempty"`
	WheelSpeedRL    *float64 `json:"wheel_speed_rl,omitempty"`
	WheelSpeedRR    *float64 `json:"wheel_speed_rr,omitempty"`
	CPUUsage        *float64 `json:"cpu_usage,omitempty"`
	MemoryUsage     *float64 `json:"memory_usage,omitempty"`
	LatencyMs       *float64 `json:"latency_ms,omitempty"`
	TractionControl *bool    `json:"traction_control,omitempty"`
	Diagnostics     []string `json:"diagnostics,omitempty"`
	VehicleID       *string  `json:"vehicle_id,omitempty"`
}

// CurrentResponse is the body of GET /telemetry/{vehicleId}/current.
// Telemetry is nil when the backend has no data for the vehicle.
type CurrentResponse struct {
	VehicleID string        `json:"vehicle_id"`
	Telemetry *RawTelemetry `json:"telemetry"`
}

// timestampLayouts covers RFC 3339 and the zone-less ISO form Python's
// datetime.isoformat() produces. Zone-less values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp in any of the accepted layouts.
func ParseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Normalize maps a backend record onto a complete snapshot. vehicleID is
// used unless the record carries its own id. A missing or unparseable
// timestamp becomes now.
func Normalize(vehicleID string, raw *RawTelemetry, now time.Time) core.Snapshot {
	if raw == nil {
		raw = &RawTelemetry{}
	}

	ts := now.UTC()
	if raw.Timestamp != nil {
		if parsed, ok := ParseTimestamp(*raw.Timestamp); ok {
			ts = parsed
		}
	}
	if raw.VehicleID != nil && *raw.VehicleID != "" {
		vehicleID = *raw.VehicleID
	}

	brake := or(raw.BrakePct, 0)
	gear := int(math.Round(or(raw.Gear, DefaultGear)))
	if gear < 1 {
		gear = DefaultGear
	}

	codes := []string{}
	if len(raw.Diagnostics) > 0 {
		codes = append(codes, raw.Diagnostics...)
	}

	traction := false
	if raw.TractionControl != nil {
		traction = *raw.TractionControl
	}

	return core.Snapshot{
		VehicleID: vehicleID,
		Timestamp: ts,
		Motion: core.Motion{
			SpeedKph:    or(raw.Speed, DefaultSpeed),
			RPM:         or(raw.RPM, DefaultRPM),
			ThrottlePct: or(raw.ThrottlePct, 0),
			BrakePct:    brake,
			Gear:        gear,
		},
		Power: core.Power{
			BatteryVoltage: or(raw.BatteryVoltage, DefaultBatteryVoltage),
			FuelLevelPct:   or(raw.FuelLevel, DefaultFuelLevelPct),
			EngineTempC:    or(raw.EngineTemp, DefaultEngineTempC),
		},
		Environment: core.Environment{
			AmbientTempC: or(raw.AmbientTemp, DefaultAmbientTempC),
			HumidityPct:  or(raw.Humidity, DefaultHumidityPct),
			GPS: core.GPS{
				Lat: or(raw.GPSLat, 0),
				Lon: or(raw.GPSLon, 0),
			},
			WheelSpeed: core.WheelSpeed{
				FrontLeft:  or(raw.WheelSpeedFL, 0),
				FrontRight: or(raw.WheelSpeedFR, 0),
				RearLeft:   or(raw.WheelSpeedRL, 0),
				RearRight:  or(raw.WheelSpeedRR, 0),
			},
		},
		SystemHealth: core.SystemHealth{
			CPUUsagePct:      or(raw.CPUUsage, 0),
			RAMUsagePct:      or(raw.MemoryUsage, 0),
			NetworkLatencyMs: or(raw.LatencyMs, 0),
			LastSync:         ts,
		},
		Safety: core.Safety{
			ABSActive:       brake > absBrakeThreshold,
			TractionControl: traction,
			DiagnosticCodes: codes,
		},
	}
}

// DecodeRecord parses a raw backend record and normalizes it.
func DecodeRecord(vehicleID string, data []byte, now time.Time) (core.Snapshot, error) {
	var raw RawTelemetry
	if err := json.Unmarshal(data, &raw); err != nil {
		return core.Snapshot{}, err
	}
	return Normalize(vehicleID, &raw, now), nil
}

func or(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return *v
}
