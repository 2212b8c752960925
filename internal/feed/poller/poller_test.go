package poller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/prefs"
)

type recorder struct {
	mu     sync.Mutex
	snaps  []core.Snapshot
	states []core.ConnectionState
}

func (r *recorder) emitter() core.Emitter {
	return core.EmitterFuncs{
		EmitFunc: func(s core.Snapshot) {
			r.mu.Lock()
			r.snaps = append(r.snaps, s)
			r.mu.Unlock()
		},
		StateFunc: func(s core.ConnectionState) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshots() []core.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Snapshot(nil), r.snaps...)
}

func (r *recorder) stateLog() []core.ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.ConnectionState(nil), r.states...)
}

func newPoller(baseURL string, store prefs.Store) *Poller {
	cfg := NewConfig()
	cfg.APIBaseURL = baseURL
	return New(cfg, "real_token", store)
}

func TestFetch(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "ok", status: http.StatusOK, body: `{"vehicle_id":"V2","telemetry":{"speed":42,"timestamp":"2024-01-01T00:00:00Z"}}`},
		{name: "null telemetry", status: http.StatusOK, body: `{"vehicle_id":"V2","telemetry":null}`, wantErr: core.ErrNullPayload},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantErr: core.ErrFetch},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, wantErr: core.ErrFetch},
		{name: "malformed json", status: http.StatusOK, body: `{"telemetry":`, wantErr: core.ErrFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/telemetry/V2/current", r.URL.Path)
				assert.Equal(t, "Bearer real_token", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			snap, err := newPoller(srv.URL+"/api/v1", nil).Fetch(context.Background(), "V2")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "V2", snap.VehicleID)
			assert.Equal(t, 42.0, snap.Motion.SpeedKph)
			assert.Equal(t, 12.6, snap.Power.BatteryVoltage)
			assert.False(t, snap.Safety.ABSActive)
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	_, err := newPoller(base, nil).Fetch(context.Background(), "V2")
	assert.True(t, errors.Is(err, core.ErrFetch))
}

func TestRunPollsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"telemetry":{"speed":10}}`))
	}))
	defer srv.Close()

	p := newPoller(srv.URL, nil)
	p.interval = func(context.Context) time.Duration { return time.Hour }

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, "V1", rec.emitter()) }()

	require.Eventually(t, func() bool { return len(rec.snapshots()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "V1", rec.snapshots()[0].VehicleID)
	assert.Equal(t, []core.ConnectionState{core.ConnectionConnecting, core.ConnectionLive}, rec.stateLog())
}

// A backend that never has data for the vehicle must never produce a
// snapshot, and the poller must keep going.
func TestRunNullPayloadNeverPublishes(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"vehicle_id":"V2","telemetry":null}`))
	}))
	defer srv.Close()

	store := prefs.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), prefs.KeyUpdateInterval, "5000"))

	p := newPoller(srv.URL, store)
	assert.Equal(t, 5*time.Second, p.interval(context.Background()))
	p.interval = func(context.Context) time.Duration { return 10 * time.Millisecond }

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, "V2", rec.emitter()) }()

	require.Eventually(t, func() bool { return requests.Load() >= 10 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Empty(t, rec.snapshots())
	assert.Contains(t, rec.stateLog(), core.ConnectionDegraded)
	assert.NotContains(t, rec.stateLog(), core.ConnectionLive)
}

func TestRunRecoversFromDegraded(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) <= 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"telemetry":{"speed":1}}`))
	}))
	defer srv.Close()

	p := newPoller(srv.URL, nil)
	p.interval = func(context.Context) time.Duration { return 10 * time.Millisecond }

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, "V1", rec.emitter()) }()

	require.Eventually(t, func() bool { return len(rec.snapshots()) > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []core.ConnectionState{
		core.ConnectionConnecting,
		core.ConnectionDegraded,
		core.ConnectionLive,
	}, compact(rec.stateLog()))
}

func TestRunDiscardsResultAfterCancel(t *testing.T) {
	inFlight := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight <- struct{}{}
		<-r.Context().Done()
	}))
	defer srv.Close()

	p := newPoller(srv.URL, nil)
	p.interval = func(context.Context) time.Duration { return time.Hour }

	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, "V1", rec.emitter()) }()

	<-inFlight
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Empty(t, rec.snapshots())
	assert.Equal(t, []core.ConnectionState{core.ConnectionConnecting}, rec.stateLog())
}

func TestRequestTimeout(t *testing.T) {
	assert.Equal(t, 1800*time.Millisecond, requestTimeout(2*time.Second))
	assert.Equal(t, 54*time.Second, requestTimeout(time.Minute))
}

// compact drops consecutive duplicates.
func compact(states []core.ConnectionState) []core.ConnectionState {
	var out []core.ConnectionState
	for _, s := range states {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}
