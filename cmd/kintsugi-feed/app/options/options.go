package options

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/afnaayusuf/kintsugi/internal/dashboard"
	"github.com/afnaayusuf/kintsugi/internal/feed/coordinator"
	"github.com/afnaayusuf/kintsugi/internal/feed/fleet"
	"github.com/afnaayusuf/kintsugi/internal/feed/poller"
	"github.com/afnaayusuf/kintsugi/internal/feed/prefs"
	"github.com/afnaayusuf/kintsugi/internal/feed/session"
	"github.com/afnaayusuf/kintsugi/internal/feed/socket"
	"github.com/afnaayusuf/kintsugi/pkg/log"
	"github.com/afnaayusuf/kintsugi/pkg/options"
)

const fleetTimeout = 10 * time.Second

// FeedServerOptions is every option of kintsugi-feed. The mapstructure
// tags are the top-level keys of the --config file.
type FeedServerOptions struct {
	HttpOptions  *options.HttpOptions  `json:"http" mapstructure:"http"`
	MqttOptions  *options.MqttOptions  `json:"mqtt" mapstructure:"mqtt"`
	FeedOptions  *options.FeedOptions  `json:"feed" mapstructure:"feed"`
	PrefsOptions *options.PrefsOptions `json:"prefs" mapstructure:"prefs"`
	Log          *log.Options          `json:"log" mapstructure:"log"`
}

func NewFeedServerOptions() *FeedServerOptions {
	return &FeedServerOptions{
		HttpOptions:  options.NewHttpOptions(),
		MqttOptions:  options.NewMqttOptions(),
		FeedOptions:  options.NewFeedOptions(),
		PrefsOptions: options.NewPrefsOptions(),
		Log:          log.NewOptions(),
	}
}

// AddFlags registers every option group on fs.
func (o *FeedServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HttpOptions.AddFlags(fs)
	o.MqttOptions.AddFlags(fs)
	o.FeedOptions.AddFlags(fs)
	o.PrefsOptions.AddFlags(fs)
	o.Log.AddFlags(fs)
}

func (o *FeedServerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.FeedOptions.Validate()...)
	errs = append(errs, o.PrefsOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// Config builds the dashboard configuration. The returned func releases
// what Config opened.
func (o *FeedServerOptions) Config() (*dashboard.Config, func(), error) {
	mode, err := session.ParseModeSetting(o.FeedOptions.Mode)
	if err != nil {
		return nil, nil, err
	}

	store, watcher, closeStore, err := o.prefsStore()
	if err != nil {
		return nil, nil, err
	}

	cfg := &dashboard.Config{
		HttpOptions: o.HttpOptions,
		MqttOptions: o.MqttOptions,
		Coordinator: o.CoordinatorConfig(store),
		Resolver:    session.NewResolver(mode),
		Fleet:       fleet.NewClient(o.FeedOptions.APIBaseURL, &http.Client{Timeout: fleetTimeout}),
	}
	if watcher != nil {
		cfg.PrefsWatcher = watcher
	}
	return cfg, closeStore, nil
}

// CoordinatorConfig maps the feed options onto the source configurations.
func (o *FeedServerOptions) CoordinatorConfig(store prefs.Store) *coordinator.Config {
	sock := socket.NewConfig()
	sock.BaseURL = o.FeedOptions.WSBaseURL
	sock.HeartbeatInterval = o.FeedOptions.HeartbeatInterval
	sock.ReconnectBaseDelay = o.FeedOptions.ReconnectBaseDelay
	sock.MaxReconnectAttempts = o.FeedOptions.MaxReconnectAttempts

	poll := poller.NewConfig()
	poll.APIBaseURL = o.FeedOptions.APIBaseURL
	poll.FailureThreshold = o.FeedOptions.FailureThreshold

	return &coordinator.Config{
		SimulationInterval: o.FeedOptions.SimulationInterval,
		Socket:             sock,
		Poller:             poll,
		Prefs:              store,
	}
}

func (o *FeedServerOptions) prefsStore() (prefs.Store, *prefs.FileStore, func(), error) {
	p := o.PrefsOptions
	switch p.Backend {
	case options.PrefsBackendMemory:
		return prefs.NewMemoryStore(), nil, func() {}, nil
	case options.PrefsBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     p.RedisAddr,
			Password: p.RedisPassword,
			DB:       p.RedisDB,
		})
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn("Failed to close redis client", "error", err)
			}
		}
		return prefs.NewRedisStore(client, p.RedisHash), nil, closeFn, nil
	default:
		fs, err := prefs.NewFileStore(p.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open preferences file: %w", err)
		}
		return fs, fs, func() {}, nil
	}
}
