package simulator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
)

// Demo GPS origin; generated positions fall within 0.01 degrees of it.
const (
	originLat = 10.0053
	originLon = 76.3601
)

// Generator draws plausible, independent random telemetry values.
type Generator struct {
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a Generator seeded from the runtime's entropy.
func NewGenerator() *Generator {
	return NewSeededGenerator(rand.Uint64(), rand.Uint64())
}

// NewSeededGenerator returns a deterministic Generator.
func NewSeededGenerator(seed1, seed2 uint64) *Generator {
	return &Generator{
		now: time.Now,
		rnd: rand.New(rand.NewPCG(seed1, seed2)),
	}
}

// Generate returns a complete snapshot for vehicleID stamped with the current time.
func (g *Generator) Generate(vehicleID string) core.Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	between := func(lo, hi float64) float64 { return lo + g.rnd.Float64()*(hi-lo) }

	return core.Snapshot{
		VehicleID: vehicleID,
		Timestamp: now,
		Motion: core.Motion{
			SpeedKph:    between(0, 120),
			RPM:         between(0, 6000),
			ThrottlePct: between(0, 100),
			BrakePct:    between(0, 100),
			Gear:        1 + g.rnd.IntN(5),
		},
		Power: core.Power{
			BatteryVoltage: between(12.5, 13.0),
			FuelLevelPct:   between(30, 100),
			EngineTempC:    between(80, 100),
		},
		Environment: core.Environment{
			AmbientTempC: between(25, 40),
			HumidityPct:  between(50, 100),
			GPS: core.GPS{
				Lat: between(originLat, originLat+0.01),
				Lon: between(originLon, originLon+0.01),
			},
			WheelSpeed: core.WheelSpeed{
				FrontLeft:  between(0, 100),
				FrontRight: between(0, 100),
				RearLeft:   between(0, 100),
				RearRight:  between(0, 100),
			},
		},
		SystemHealth: core.SystemHealth{
			CPUUsagePct:      between(0, 50),
			RAMUsagePct:      between(30, 70),
			NetworkLatencyMs: between(30, 70),
			LastSync:         now.Add(-time.Duration(g.rnd.Int64N(int64(time.Minute)))),
		},
		Safety: core.Safety{
			ABSActive:       false,
			TractionControl: true,
			DiagnosticCodes: []string{},
		},
	}
}

// MockVehicles is the demo fleet shown to simulation sessions.
func MockVehicles() []core.Vehicle {
	return []core.Vehicle{
		{ID: "BENYON_001", Model: "RaspberryCar", Status: core.VehicleOnline},
		{ID: "BENYON_002", Model: "RaspberryCar Pro", Status: core.VehicleOnline},
		{ID: "BENYON_003", Model: "RaspberryCar", Status: core.VehicleOffline},
	}
}
