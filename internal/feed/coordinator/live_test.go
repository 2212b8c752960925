package coordinator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/poller"
	"github.com/afnaayusuf/kintsugi/internal/feed/socket"
)

type collected struct {
	mu     sync.Mutex
	snaps  []core.Snapshot
	states []core.ConnectionState
}

func (c *collected) emitter() core.Emitter {
	return core.EmitterFuncs{
		EmitFunc: func(s core.Snapshot) {
			c.mu.Lock()
			c.snaps = append(c.snaps, s)
			c.mu.Unlock()
		},
		StateFunc: func(s core.ConnectionState) {
			c.mu.Lock()
			c.states = append(c.states, s)
			c.mu.Unlock()
		},
	}
}

func (c *collected) speeds() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, 0, len(c.snaps))
	for _, s := range c.snaps {
		out = append(out, s.Motion.SpeedKph)
	}
	return out
}

func (c *collected) seenState(s core.ConnectionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.states {
		if st == s {
			return true
		}
	}
	return false
}

func pollServer(t *testing.T, speed string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"vehicle_id":"V1","telemetry":{"vehicle_id":"V1","speed":` + speed + `}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newPollFallback(baseURL string) *poller.Poller {
	cfg := poller.NewConfig()
	cfg.APIBaseURL = baseURL
	return poller.New(cfg, "tok", nil)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func runLive(t *testing.T, src *LiveSource, emit core.Emitter) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, "V1", emit) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("live source did not return after cancel")
		}
	})
	return cancel
}

func TestLiveSourceFallsBackWhenConnectFails(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := wsURL(dead)
	dead.Close()

	polls, hits := pollServer(t, "42")
	cfg := socket.NewConfig()
	cfg.BaseURL = deadURL

	var out collected
	runLive(t, NewLiveSource(cfg, newPollFallback(polls.URL+"/api/v1"), "tok"), out.emitter())

	require.Eventually(t, func() bool {
		return len(out.speeds()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 42.0, out.speeds()[0])
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
	assert.True(t, out.seenState(core.ConnectionLive))
}

// frameServer accepts one websocket, writes frames to it and then reads
// until the client goes away.
func frameServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ws.Close)
	return ws
}

func TestLiveSourceEmitsSocketFrames(t *testing.T) {
	ws := frameServer(t,
		`{"type":"telemetry","payload":null}`,
		`{"type":"telemetry","payload":{"speed":10}}`,
		`{"type":"telemetry","payload":"garbage"}`,
		`{"type":"alert","payload":{"code":"P0300"}}`,
		`{"type":"telemetry_update","vehicle_id":"V1","data":{"speed":20}}`,
	)

	polls, hits := pollServer(t, "99")
	cfg := socket.NewConfig()
	cfg.BaseURL = wsURL(ws)

	var out collected
	runLive(t, NewLiveSource(cfg, newPollFallback(polls.URL+"/api/v1"), "tok"), out.emitter())

	require.Eventually(t, func() bool {
		return len(out.speeds()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []float64{10, 20}, out.speeds())
	assert.Zero(t, hits.Load())
	assert.True(t, out.seenState(core.ConnectionLive))
}

func TestLiveSourceFallsBackAfterReconnectExhaustion(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var accepted atomic.Bool
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !accepted.CompareAndSwap(false, true) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(ws.Close)

	polls, _ := pollServer(t, "77")
	cfg := socket.NewConfig()
	cfg.BaseURL = wsURL(ws)
	cfg.ReconnectBaseDelay = time.Millisecond
	cfg.MaxReconnectAttempts = 2

	var out collected
	runLive(t, NewLiveSource(cfg, newPollFallback(polls.URL+"/api/v1"), "tok"), out.emitter())

	require.Eventually(t, func() bool {
		return len(out.speeds()) > 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 77.0, out.speeds()[0])
	assert.True(t, out.seenState(core.ConnectionClosed))
}

// The backend broadcasts every vehicle's updates on every socket.
func TestLiveSourceIgnoresOtherVehiclesFrames(t *testing.T) {
	ws := frameServer(t,
		`{"type":"telemetry_update","vehicle_id":"V2","data":{"speed":99}}`,
		`{"type":"telemetry","payload":{"vehicle_id":"V3","speed":98}}`,
		`{"type":"telemetry_update","vehicle_id":"V1","data":{"speed":5}}`,
	)

	polls, hits := pollServer(t, "42")
	cfg := socket.NewConfig()
	cfg.BaseURL = wsURL(ws)

	var out collected
	runLive(t, NewLiveSource(cfg, newPollFallback(polls.URL+"/api/v1"), "tok"), out.emitter())

	require.Eventually(t, func() bool {
		return len(out.speeds()) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []float64{5}, out.speeds())
	out.mu.Lock()
	assert.Equal(t, "V1", out.snaps[0].VehicleID)
	out.mu.Unlock()
	assert.Zero(t, hits.Load())
}
