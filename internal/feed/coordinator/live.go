package coordinator

import (
	"context"
	"time"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/socket"
	"github.com/afnaayusuf/kintsugi/internal/feed/state"
	"github.com/afnaayusuf/kintsugi/internal/feed/wire"
	"github.com/afnaayusuf/kintsugi/internal/pkg/metrics"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

var _ core.Source = (*LiveSource)(nil)

// LiveSource prefers the real-time transport and falls back to polling
// when the initial connect fails or reconnection is exhausted. The socket
// is fully disconnected before polling starts.
type LiveSource struct {
	socketCfg *socket.Config
	fallback  core.Source
	token     string
	now       func() time.Time
}

func NewLiveSource(socketCfg *socket.Config, fallback core.Source, token string) *LiveSource {
	if socketCfg == nil {
		socketCfg = socket.NewConfig()
	}
	return &LiveSource{
		socketCfg: socketCfg,
		fallback:  fallback,
		token:     token,
		now:       time.Now,
	}
}

func (l *LiveSource) Name() string { return "live" }

func (l *LiveSource) Run(ctx context.Context, vehicleID string, emit core.Emitter) error {
	cfg := *l.socketCfg
	client := socket.New(&cfg)

	exhausted := make(chan error, 1)
	client.OnExhausted(func(err error) {
		select {
		case exhausted <- err:
		default:
		}
	})
	client.OnStateChange(emit.SetState)

	logger := log.WithValues("vehicleID", vehicleID)
	onTelemetry := func(f wire.Frame) {
		if f.VehicleID != "" && f.VehicleID != vehicleID {
			metrics.SnapshotsDropped.WithLabelValues(string(state.DropForeignVehicle)).Inc()
			logger.Debug("Ignoring telemetry frame for another vehicle", "frameVehicleID", f.VehicleID)
			return
		}
		payload := f.Body()
		if wire.IsNull(payload) {
			logger.Debug("Ignoring empty telemetry frame")
			return
		}
		snap, err := wire.DecodeRecord(vehicleID, payload, l.now())
		if err != nil {
			metrics.MalformedFrames.Inc()
			logger.Warn("Dropping undecodable telemetry payload", "error", err)
			return
		}
		if snap.VehicleID != vehicleID {
			metrics.SnapshotsDropped.WithLabelValues(string(state.DropForeignVehicle)).Inc()
			logger.Debug("Ignoring telemetry record for another vehicle", "recordVehicleID", snap.VehicleID)
			return
		}
		emit.Emit(snap)
	}
	client.On(socket.KindTelemetry, onTelemetry)
	client.On(socket.KindTelemetryUpdate, onTelemetry)
	client.On(socket.KindAlert, func(f wire.Frame) {
		logger.Warn("Vehicle alert received", "alert", string(f.Body()))
	})

	if err := client.Connect(ctx, socket.Target{Token: l.token, VehicleID: vehicleID}); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn("Real-time transport unavailable, falling back to polling", "error", err)
		return l.poll(ctx, vehicleID, emit)
	}

	select {
	case <-ctx.Done():
		client.Disconnect()
		return nil
	case err := <-exhausted:
		client.Disconnect()
		logger.Warn("Real-time transport lost, falling back to polling", "error", err)
		return l.poll(ctx, vehicleID, emit)
	}
}

func (l *LiveSource) poll(ctx context.Context, vehicleID string, emit core.Emitter) error {
	if l.fallback == nil {
		<-ctx.Done()
		return nil
	}
	metrics.SourceStarts.WithLabelValues(l.fallback.Name()).Inc()
	return l.fallback.Run(ctx, vehicleID, emit)
}
