package simulator

import (
	"context"
	"time"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

// DefaultInterval is the period between simulated snapshots.
const DefaultInterval = time.Second

var _ core.Source = (*Source)(nil)

// Source emits generated snapshots for a vehicle on a fixed timer. It needs
// no network and is always Live.
type Source struct {
	gen      *Generator
	interval time.Duration
}

// NewSource returns a Source. A nil gen uses NewGenerator and a
// non-positive interval uses DefaultInterval.
func NewSource(gen *Generator, interval time.Duration) *Source {
	if gen == nil {
		gen = NewGenerator()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Source{gen: gen, interval: interval}
}

func (s *Source) Name() string { return "simulator" }

// Run emits one snapshot right away and one per interval until ctx is done.
func (s *Source) Run(ctx context.Context, vehicleID string, emit core.Emitter) error {
	log.Info("Starting simulated telemetry", "vehicleID", vehicleID, "interval", s.interval)
	emit.SetState(core.ConnectionLive)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	emit.Emit(s.gen.Generate(vehicleID))
	for {
		select {
		case <-ticker.C:
			emit.Emit(s.gen.Generate(vehicleID))
		case <-ctx.Done():
			log.Info("Stopped simulated telemetry", "vehicleID", vehicleID)
			return nil
		}
	}
}
