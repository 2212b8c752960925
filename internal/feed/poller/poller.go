package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/prefs"
	"github.com/afnaayusuf/kintsugi/internal/feed/wire"
	"github.com/afnaayusuf/kintsugi/internal/pkg/metrics"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

// DefaultFailureThreshold is the number of consecutive failed polls after
// which the feed is reported as Degraded.
const DefaultFailureThreshold = 3

// Config holds the settings of a polling source.
type Config struct {
	// APIBaseURL is the REST root, e.g. http://localhost:8000/api/v1.
	APIBaseURL string

	FailureThreshold int

	// HTTPClient is used for every request. Per-request timeouts come from
	// the polling interval, so it needs no Timeout of its own.
	HTTPClient *http.Client
}

func NewConfig() *Config {
	return &Config{
		APIBaseURL:       "http://localhost:8000/api/v1",
		FailureThreshold: DefaultFailureThreshold,
		HTTPClient:       &http.Client{},
	}
}

var _ core.Source = (*Poller)(nil)

// Poller fetches the current telemetry of a vehicle once per interval.
type Poller struct {
	cfg   *Config
	token string
	store prefs.Store
	now   func() time.Time

	// interval resolves the polling period at the start of every Run.
	interval func(ctx context.Context) time.Duration
}

// New returns a Poller authenticating with token. The polling interval is
// read from store each time Run starts.
func New(cfg *Config, token string, store prefs.Store) *Poller {
	if cfg == nil {
		cfg = NewConfig()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}

	p := &Poller{
		cfg:   cfg,
		token: token,
		store: store,
		now:   time.Now,
	}
	p.interval = func(ctx context.Context) time.Duration {
		return prefs.UpdateInterval(ctx, p.store)
	}
	return p
}

func (p *Poller) Name() string { return "poller" }

// Run polls immediately and then once per interval until ctx is done.
// Failed polls are logged and skipped; only successful ones are emitted.
// Requests are sequential, each bounded by 90% of the interval, and a
// result that completes after cancellation is discarded.
func (p *Poller) Run(ctx context.Context, vehicleID string, emit core.Emitter) error {
	interval := p.interval(ctx)
	log.Info("Starting telemetry polling", "vehicleID", vehicleID, "interval", interval)
	emit.SetState(core.ConnectionConnecting)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failures := 0
	poll := func() {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout(interval))
		defer cancel()

		snap, err := p.Fetch(reqCtx, vehicleID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			log.Warn("Telemetry poll failed", "vehicleID", vehicleID, "consecutiveFailures", failures, "error", err)
			if failures >= p.cfg.FailureThreshold {
				emit.SetState(core.ConnectionDegraded)
			}
			return
		}

		failures = 0
		emit.SetState(core.ConnectionLive)
		emit.Emit(snap)
	}

	poll()
	for {
		select {
		case <-ticker.C:
			poll()
		case <-ctx.Done():
			log.Info("Stopped telemetry polling", "vehicleID", vehicleID)
			return nil
		}
	}
}

// Fetch performs one GET of the vehicle's current telemetry.
func (p *Poller) Fetch(ctx context.Context, vehicleID string) (core.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/telemetry/%s/current",
		strings.TrimRight(p.cfg.APIBaseURL, "/"), url.PathEscape(vehicleID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	start := time.Now()
	resp, err := p.cfg.HTTPClient.Do(req)
	metrics.FetchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchFailures.WithLabelValues("transport").Inc()
		return core.Snapshot{}, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.FetchFailures.WithLabelValues("status").Inc()
		return core.Snapshot{}, fmt.Errorf("%w: unexpected status %s", core.ErrFetch, resp.Status)
	}

	var body wire.CurrentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.FetchFailures.WithLabelValues("decode").Inc()
		return core.Snapshot{}, fmt.Errorf("%w: %v", core.ErrFetch, err)
	}
	if body.Telemetry == nil {
		metrics.FetchFailures.WithLabelValues("empty").Inc()
		return core.Snapshot{}, core.ErrNullPayload
	}

	return wire.Normalize(vehicleID, body.Telemetry, p.now()), nil
}

func requestTimeout(interval time.Duration) time.Duration {
	return interval * 9 / 10
}
