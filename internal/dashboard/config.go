package dashboard

import (
	"context"
	"fmt"
	"os"

	"github.com/afnaayusuf/kintsugi/internal/feed/coordinator"
	"github.com/afnaayusuf/kintsugi/internal/feed/fleet"
	"github.com/afnaayusuf/kintsugi/internal/feed/session"
	"github.com/afnaayusuf/kintsugi/pkg/log"
	"github.com/afnaayusuf/kintsugi/pkg/mqtt"
	"github.com/afnaayusuf/kintsugi/pkg/options"
)

// PrefsWatcher reports changes made to the preference store from outside
// the process. *prefs.FileStore satisfies it.
type PrefsWatcher interface {
	Watch(ctx context.Context, onChange func()) error
}

type Config struct {
	HttpOptions *options.HttpOptions
	MqttOptions *options.MqttOptions
	Coordinator *coordinator.Config
	Resolver    *session.Resolver

	// Fleet lists vehicles for live sessions. Nil uses the demo fleet.
	Fleet VehicleLister

	// PrefsWatcher is optional.
	PrefsWatcher PrefsWatcher
}

// NewServer builds the feed and, when presence is enabled, its MQTT client.
func (cfg *Config) NewServer() (*Server, error) {
	if cfg.HttpOptions == nil {
		cfg.HttpOptions = options.NewHttpOptions()
	}
	if cfg.Coordinator == nil {
		cfg.Coordinator = &coordinator.Config{}
	}

	feed := NewFeed(cfg.Coordinator, cfg.Resolver, cfg.Fleet)
	s := newServer(cfg, feed)

	if cfg.MqttOptions != nil && cfg.MqttOptions.Enabled {
		client, err := newMQTTClient(cfg.MqttOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to init presence client: %w", err)
		}
		s.mqtt = client
		s.presence = fleet.NewPresence(client, cfg.MqttOptions.TopicRoot, feed.Store())
	}
	return s, nil
}

func newMQTTClient(opts *options.MqttOptions) (mqtt.Client, error) {
	cfg := opts.ToClientConfig()
	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = fmt.Sprintf("kintsugi-feed-%s", hostname)
	}

	client, err := mqtt.NewClient(cfg)
	if err != nil {
		log.Error(err, "Failed to create MQTT client")
		return nil, err
	}
	return client, nil
}
