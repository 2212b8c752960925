package wire

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeSpeedAndTimestampOnly(t *testing.T) {
	snap, err := DecodeRecord("V1", []byte(`{"speed": 42, "timestamp": "2024-01-01T00:00:00Z"}`), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "V1", snap.VehicleID)
	assert.Equal(t, 42.0, snap.Motion.SpeedKph)
	assert.Equal(t, 12.6, snap.Power.BatteryVoltage)
	assert.False(t, snap.Safety.ABSActive)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), snap.Timestamp)
	assert.Equal(t, snap.Timestamp, snap.SystemHealth.LastSync)
}

func TestNormalizeEmptyPayloadUsesDefaults(t *testing.T) {
	snap := Normalize("V9", &RawTelemetry{}, fixedNow)

	expected := core.Snapshot{
		VehicleID: "V9",
		Timestamp: fixedNow,
		Motion:    core.Motion{Gear: 1},
		Power: core.Power{
			BatteryVoltage: 12.6,
			FuelLevelPct:   100,
			EngineTempC:    70,
		},
		Environment: core.Environment{
			AmbientTempC: 25,
			HumidityPct:  50,
		},
		SystemHealth: core.SystemHealth{LastSync: fixedNow},
		Safety:       core.Safety{DiagnosticCodes: []string{}},
	}
	assert.Equal(t, expected, snap)

	nilSnap := Normalize("V9", nil, fixedNow)
	assert.Equal(t, expected, nilSnap)
}

func TestNormalizeMapsBackendFieldNames(t *testing.T) {
	body := `{
		"vehicle_id": "tesla-1",
		"timestamp": "2025-02-03T04:05:06.123456",
		"speed": 88.5, "rpm": 3100, "throttle_pct": 40, "brake_pct": 75, "gear": 4,
		"battery_voltage": 12.9, "engine_temp": 91, "fuel_level": 64,
		"gps_lat": 10.01, "gps_lon": 76.36, "ambient_temp": 31, "humidity": 70,
		"wheel_speed_fl": 1, "wheel_speed_fr": 2, "wheel_speed_rl": 3, "wheel_speed_rr": 4,
		"cpu_usage": 12, "memory_usage": 48, "latency_ms": 33,
		"traction_control": true, "diagnostics": ["P0300", "P0171"]
	}`
	snap, err := DecodeRecord("ignored", []byte(body), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "tesla-1", snap.VehicleID)
	assert.Equal(t, time.Date(2025, 2, 3, 4, 5, 6, 123456000, time.UTC), snap.Timestamp)
	assert.Equal(t, core.Motion{SpeedKph: 88.5, RPM: 3100, ThrottlePct: 40, BrakePct: 75, Gear: 4}, snap.Motion)
	assert.Equal(t, core.Power{BatteryVoltage: 12.9, FuelLevelPct: 64, EngineTempC: 91}, snap.Power)
	assert.Equal(t, core.GPS{Lat: 10.01, Lon: 76.36}, snap.Environment.GPS)
	assert.Equal(t, core.WheelSpeed{FrontLeft: 1, FrontRight: 2, RearLeft: 3, RearRight: 4}, snap.Environment.WheelSpeed)
	assert.Equal(t, 48.0, snap.SystemHealth.RAMUsagePct)
	assert.True(t, snap.Safety.ABSActive)
	assert.True(t, snap.Safety.TractionControl)
	assert.Equal(t, []string{"P0300", "P0171"}, snap.Safety.DiagnosticCodes)
}

func TestNormalizeKeepsExplicitZero(t *testing.T) {
	snap, err := DecodeRecord("V1", []byte(`{"battery_voltage": 0, "gear": 0}`), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, 0.0, snap.Power.BatteryVoltage)
	assert.Equal(t, 1, snap.Motion.Gear)
}

func TestNormalizeUnparseableTimestampFallsBackToNow(t *testing.T) {
	snap, err := DecodeRecord("V1", []byte(`{"timestamp": "yesterday"}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, snap.Timestamp)
}

func TestParseFrame(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    string
		wantErr bool
	}{
		"payload":      {in: `{"type":"telemetry","payload":{"speed":1}}`, want: `{"speed":1}`},
		"data alias":   {in: `{"type":"telemetry_update","vehicle_id":"V1","data":{"speed":2}}`, want: `{"speed":2}`},
		"no payload":   {in: `{"type":"pong"}`, want: ``},
		"not json":     {in: `hello`, wantErr: true},
		"json array":   {in: `[1,2]`, wantErr: true},
		"missing type": {in: `{"payload":{}}`, wantErr: true},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := ParseFrame([]byte(tt.in))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrMalformedFrame))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(f.Body()))
		})
	}
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull([]byte(" null ")))
	assert.False(t, IsNull([]byte(`{}`)))
}
