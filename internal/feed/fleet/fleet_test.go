package fleet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/state"
	"github.com/afnaayusuf/kintsugi/pkg/mqtt"
)

func TestListVehicles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/vehicles", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"vehicles":[
			{"id":"V1","make":"Tesla","model":"Model 3","status":"connected"},
			{"vehicle_id":"V2","name":"RaspberryCar","status":"ONLINE"},
			{"id":"V3","model":"Leaf","status":"disconnected"},
			{"name":"no id"}
		]}`))
	}))
	defer srv.Close()

	vs, err := NewClient(srv.URL+"/api/v1/", nil).ListVehicles(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []core.Vehicle{
		{ID: "V1", Model: "Tesla Model 3", Status: core.VehicleOnline},
		{ID: "V2", Model: "RaspberryCar", Status: core.VehicleOnline},
		{ID: "V3", Model: "Leaf", Status: core.VehicleOffline},
	}, vs)
}

func TestListVehiclesErrors(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"decode": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"vehicles":`))
		},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := NewClient(srv.URL, nil).ListVehicles(context.Background(), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrFetch))
		})
	}
}

// fakeClient is an in-memory mqtt.Client that delivers published messages
// to matching subscribers.
type fakeClient struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	handlers map[string]mqtt.MessageHandler
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeClient) Start(context.Context) error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Disconnect(context.Context) {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeClient) Publish(ctx context.Context, topic string, _ int, _ bool, payload []byte) error {
	f.mu.Lock()
	var hs []mqtt.MessageHandler
	for filter, h := range f.handlers {
		if mqtt.Match(filter, topic) {
			hs = append(hs, h)
		}
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(ctx, topic, payload)
	}
	return nil
}

func (f *fakeClient) Subscribe(_ context.Context, topic string, _ int, h mqtt.MessageHandler) error {
	f.mu.Lock()
	f.handlers[topic] = h
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Unsubscribe(_ context.Context, topic string) error {
	f.mu.Lock()
	delete(f.handlers, topic)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) AwaitConnection(context.Context) error { return nil }
func (f *fakeClient) IsConnected() bool                     { return true }

func (f *fakeClient) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

func TestPresenceUpdatesVehicleStatus(t *testing.T) {
	store := state.New()
	store.SetVehicles([]core.Vehicle{
		{ID: "V1", Status: core.VehicleOffline},
		{ID: "V2", Status: core.VehicleOnline},
	})

	client := newFakeClient()
	p := NewPresence(client, "iov/v1", store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return client.subscribed("iov/v1/online/+")
	}, time.Second, 5*time.Millisecond)

	publish := func(topic, payload string) {
		require.NoError(t, client.Publish(ctx, topic, 1, false, []byte(payload)))
	}
	publish("iov/v1/online/V1", `{"vehicle_id":"V1","online":true}`)
	publish("iov/v1/online/V2", `{"online":false,"reason":"will"}`)
	publish("iov/v1/online/V9", `{"online":true}`)
	publish("iov/v1/online/V1", `not json`)

	assert.Equal(t, []core.Vehicle{
		{ID: "V1", Status: core.VehicleOnline},
		{ID: "V2", Status: core.VehicleOffline},
	}, store.Vehicles())

	cancel()
	require.NoError(t, <-done)
	client.mu.Lock()
	assert.True(t, client.started)
	assert.True(t, client.stopped)
	client.mu.Unlock()
}
