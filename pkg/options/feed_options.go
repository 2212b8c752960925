package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*FeedOptions)(nil)

// FeedOptions configures where telemetry comes from.
type FeedOptions struct {
	// APIBaseURL is the REST root used for polling and the vehicle list.
	APIBaseURL string `json:"api-base-url" mapstructure:"api-base-url"`

	// WSBaseURL is the root of the real-time endpoint, ws:// or wss://.
	WSBaseURL string `json:"ws-base-url" mapstructure:"ws-base-url"`

	// Mode is auto, simulation or live. Auto picks simulation for demo_ tokens.
	Mode string `json:"mode" mapstructure:"mode"`

	HeartbeatInterval    time.Duration `json:"heartbeat-interval" mapstructure:"heartbeat-interval"`
	ReconnectBaseDelay   time.Duration `json:"reconnect-base-delay" mapstructure:"reconnect-base-delay"`
	MaxReconnectAttempts int           `json:"max-reconnect-attempts" mapstructure:"max-reconnect-attempts"`
	FailureThreshold     int           `json:"failure-threshold" mapstructure:"failure-threshold"`
	SimulationInterval   time.Duration `json:"simulation-interval" mapstructure:"simulation-interval"`
}

func NewFeedOptions() *FeedOptions {
	return &FeedOptions{
		APIBaseURL:           "http://localhost:8000/api/v1",
		WSBaseURL:            "ws://localhost:8000",
		Mode:                 "auto",
		HeartbeatInterval:    30 * time.Second,
		ReconnectBaseDelay:   3 * time.Second,
		MaxReconnectAttempts: 5,
		FailureThreshold:     3,
		SimulationInterval:   time.Second,
	}
}

func (o *FeedOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if err := ValidateURL("feed.api-base-url", o.APIBaseURL, "http", "https"); err != nil {
		errs = append(errs, err)
	}
	if err := ValidateURL("feed.ws-base-url", o.WSBaseURL, "ws", "wss"); err != nil {
		errs = append(errs, err)
	}
	switch o.Mode {
	case "", "auto", "simulation", "live":
	default:
		errs = append(errs, fmt.Errorf("feed.mode %q must be auto, simulation or live", o.Mode))
	}
	if o.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Errorf("feed.heartbeat-interval must be positive"))
	}
	if o.ReconnectBaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("feed.reconnect-base-delay must be positive"))
	}
	if o.MaxReconnectAttempts < 0 {
		errs = append(errs, fmt.Errorf("feed.max-reconnect-attempts must not be negative"))
	}
	if o.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("feed.failure-threshold must be at least 1"))
	}
	if o.SimulationInterval <= 0 {
		errs = append(errs, fmt.Errorf("feed.simulation-interval must be positive"))
	}
	return errs
}

func (o *FeedOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	name := func(n string) string { return join(prefixes, "feed", n) }

	fs.StringVar(&o.APIBaseURL, name("api-base-url"), o.APIBaseURL, "REST API root of the telemetry backend.")
	fs.StringVar(&o.WSBaseURL, name("ws-base-url"), o.WSBaseURL, "Real-time endpoint root of the telemetry backend.")
	fs.StringVar(&o.Mode, name("mode"), o.Mode, "Data source mode: auto, simulation or live.")
	fs.DurationVar(&o.HeartbeatInterval, name("heartbeat-interval"), o.HeartbeatInterval, "Interval between real-time heartbeat frames.")
	fs.DurationVar(&o.ReconnectBaseDelay, name("reconnect-base-delay"), o.ReconnectBaseDelay, "Reconnect delay, multiplied by the attempt number.")
	fs.IntVar(&o.MaxReconnectAttempts, name("max-reconnect-attempts"), o.MaxReconnectAttempts, "Reconnect attempts before falling back to polling.")
	fs.IntVar(&o.FailureThreshold, name("failure-threshold"), o.FailureThreshold, "Consecutive failed polls before the feed is reported Degraded.")
	fs.DurationVar(&o.SimulationInterval, name("simulation-interval"), o.SimulationInterval, "Interval between simulated snapshots.")
}
