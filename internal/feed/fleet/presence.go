package fleet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/pkg/mqtt/paths"
	"github.com/afnaayusuf/kintsugi/pkg/log"
	"github.com/afnaayusuf/kintsugi/pkg/mqtt"
	"github.com/afnaayusuf/kintsugi/pkg/mqtt/topic"
)

// StatusSink receives presence updates. *state.Store satisfies it.
type StatusSink interface {
	SetVehicleStatus(id string, status core.VehicleStatus) bool
}

// Notification is the payload published on {root}/online/{vehicleID}.
type Notification struct {
	VehicleID string `json:"vehicle_id"`
	Online    bool   `json:"online"`
	Reason    string `json:"reason,omitempty"`
}

// Presence follows vehicle online/offline notifications over MQTT and
// writes them to a StatusSink.
type Presence struct {
	client  mqtt.Client
	builder *topic.Builder
	sink    StatusSink
}

func NewPresence(client mqtt.Client, root string, sink StatusSink) *Presence {
	return &Presence{
		client:  client,
		builder: topic.NewBuilder(root),
		sink:    sink,
	}
}

// Run connects, subscribes to every vehicle's online topic and blocks
// until ctx is done. Connection loss is handled by the client.
func (p *Presence) Run(ctx context.Context) error {
	if err := p.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}
	defer p.client.Disconnect(context.Background())

	filter := p.builder.BuildWildcard(paths.Online)
	if err := p.client.Subscribe(ctx, filter, 1, p.handle); err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	log.Info("Following vehicle presence", "topic", filter)

	<-ctx.Done()
	return nil
}

func (p *Presence) handle(_ context.Context, t string, payload []byte) {
	var n Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		log.Warn("Dropping malformed presence message", "topic", t, "error", err)
		return
	}
	if n.VehicleID == "" {
		id, ok := p.builder.ID(paths.Online, t)
		if !ok {
			log.Warn("Presence message without vehicle id", "topic", t)
			return
		}
		n.VehicleID = id
	}

	status := core.VehicleOffline
	if n.Online {
		status = core.VehicleOnline
	}
	if !p.sink.SetVehicleStatus(n.VehicleID, status) {
		log.Debug("Presence for unknown vehicle", "vehicleID", n.VehicleID)
		return
	}
	log.Info("Vehicle presence updated", "vehicleID", n.VehicleID, "status", status, "reason", n.Reason)
}
