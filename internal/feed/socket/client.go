package socket

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/wire"
	"github.com/afnaayusuf/kintsugi/internal/pkg/metrics"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

// MessageKind is the "type" discriminator of an inbound frame.
type MessageKind string

const (
	KindTelemetry       MessageKind = "telemetry"
	KindTelemetryUpdate MessageKind = "telemetry_update"
	KindPong            MessageKind = "pong"
	KindAlert           MessageKind = "alert"
)

// Handler receives a frame of the kind it was registered for. The envelope
// is passed whole so handlers can check which vehicle a broadcast is for.
type Handler func(frame wire.Frame)

// Subscription identifies a registered handler so it can be removed with Off.
type Subscription struct {
	kind MessageKind
	id   uint64
}

// Target is what a connection is scoped to.
type Target struct {
	Token     string
	VehicleID string
}

type handlerEntry struct {
	id uint64
	fn Handler
}

const writeWait = 5 * time.Second

// Client owns at most one real-time connection. Handlers registered with On
// survive reconnects and Disconnect; only the socket itself is released.
type Client struct {
	cfg    *Config
	dialer *websocket.Dialer

	// wait blocks for d or until ctx is done. Replaced in tests.
	wait func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	conn      *websocket.Conn
	state     core.ConnectionState
	cancel    context.CancelFunc
	nextID    uint64
	handlers  map[MessageKind][]handlerEntry
	onState   map[uint64]func(core.ConnectionState)
	onExhaust map[uint64]func(error)

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// New creates a Client. A nil cfg uses NewConfig().
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = NewConfig()
	}
	cfg.setDefaults()

	return &Client{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		wait:      sleepContext,
		state:     core.ConnectionIdle,
		handlers:  make(map[MessageKind][]handlerEntry),
		onState:   make(map[uint64]func(core.ConnectionState)),
		onExhaust: make(map[uint64]func(error)),
	}
}

// Connect opens a connection for target and returns once it is open. An
// initial failure is returned wrapped in core.ErrTransport and nothing is
// scheduled: the caller decides whether to retry or fall back.
func (c *Client) Connect(ctx context.Context, target Target) error {
	c.Disconnect()

	c.setState(core.ConnectionConnecting)
	conn, err := c.dial(ctx, target)
	if err != nil {
		c.setState(core.ConnectionClosed)
		return fmt.Errorf("%w: %v", core.ErrTransport, err)
	}

	lifeCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()

	log.Info("Telemetry socket connected", "vehicleID", target.VehicleID)
	c.setState(core.ConnectionLive)

	c.wg.Add(1)
	go c.supervise(lifeCtx, target, conn)
	return nil
}

// Disconnect stops heartbeat and reconnection and closes the socket. It is
// safe to call at any time and more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, conn := c.cancel, c.conn
	c.cancel, c.conn = nil, nil
	if cancel != nil {
		cancel()
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	c.wg.Wait()

	if cancel != nil {
		log.Info("Telemetry socket disconnected")
		c.setState(core.ConnectionClosed)
	}
}

// Send writes v as a JSON frame. It never fails towards the caller: when the
// socket is not open, or the write fails, the message is logged and dropped.
func (c *Client) Send(v any) {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if conn == nil || state != core.ConnectionLive {
		log.Warn("Telemetry socket not open, dropping outbound frame", "state", state)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		log.Warn("Failed to write telemetry socket frame", "error", err)
	}
}

// On registers fn for frames of the given kind. Handlers for one kind run
// in registration order.
func (c *Client) On(kind MessageKind, fn Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.handlers[kind] = append(c.handlers[kind], handlerEntry{id: c.nextID, fn: fn})
	return Subscription{kind: kind, id: c.nextID}
}

// Off removes a handler registered with On.
func (c *Client) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.handlers[sub.kind]
	for i, e := range entries {
		if e.id == sub.id {
			c.handlers[sub.kind] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// OnExhausted registers fn to be called with core.ErrReconnectExhausted when
// the client gives up reconnecting. fn runs on the client's goroutine and
// must not call Disconnect. The returned func removes the listener.
func (c *Client) OnExhausted(fn func(error)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.onExhaust[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.onExhaust, id)
		c.mu.Unlock()
	}
}

// OnStateChange registers fn for every connection state transition.
func (c *Client) OnStateChange(fn func(core.ConnectionState)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.onState[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.onState, id)
		c.mu.Unlock()
	}
}

// State returns the current connection state.
func (c *Client) State() core.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Endpoint returns the URL dialed for target.
func (c *Client) Endpoint(target Target) string {
	q := url.Values{}
	q.Set("token", target.Token)
	q.Set("vehicleId", target.VehicleID)
	return fmt.Sprintf("%s/ws/telemetry/%s?%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(target.VehicleID), q.Encode())
}

// supervise serves conn until it closes, then reconnects with linear
// backoff. It returns when the client is disconnected or gives up.
func (c *Client) supervise(ctx context.Context, target Target, conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		err := c.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		log.Warn("Telemetry socket closed unexpectedly", "vehicleID", target.VehicleID, "error", err)

		c.setState(core.ConnectionConnecting)
		conn = c.reconnect(ctx, target)
		if conn == nil {
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			c.setState(core.ConnectionClosed)
			c.exhausted()
			return
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.mu.Unlock()
		c.setState(core.ConnectionLive)
	}
}

// reconnect makes up to MaxReconnectAttempts dial attempts, waiting
// ReconnectBaseDelay*attempt before each. It returns nil when every
// attempt failed or ctx was cancelled.
func (c *Client) reconnect(ctx context.Context, target Target) *websocket.Conn {
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		delay := c.cfg.ReconnectBaseDelay * time.Duration(attempt)
		log.Info("Scheduling telemetry socket reconnect", "attempt", attempt, "delay", delay)
		if err := c.wait(ctx, delay); err != nil {
			return nil
		}

		metrics.SocketReconnectAttempts.Inc()
		conn, err := c.dial(ctx, target)
		if err == nil {
			log.Info("Telemetry socket reconnected", "vehicleID", target.VehicleID, "attempt", attempt)
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Error(err, "Telemetry socket reconnect failed", "attempt", attempt)
	}
	return nil
}

func (c *Client) exhausted() {
	metrics.SocketReconnectExhausted.Inc()
	log.Warn("Telemetry socket reconnect attempts exhausted", "attempts", c.cfg.MaxReconnectAttempts)

	c.mu.Lock()
	listeners := make([]func(error), 0, len(c.onExhaust))
	for _, fn := range c.onExhaust {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(core.ErrReconnectExhausted)
	}
}

// serve runs the read loop and heartbeat for one connection and returns
// the error that ended the read loop.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeat(ctx, done)
	}()

	err := c.readLoop(conn)
	close(done)
	wg.Wait()
	return err
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

func (c *Client) heartbeat(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Send(wire.Ping)
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch(data []byte) {
	frame, err := wire.ParseFrame(data)
	if err != nil {
		metrics.MalformedFrames.Inc()
		log.Warn("Dropping malformed telemetry frame", "error", err)
		return
	}

	kind := MessageKind(frame.Type)
	if kind == KindPong {
		metrics.SocketHeartbeatAcks.Inc()
	}

	c.mu.Lock()
	entries := append([]handlerEntry(nil), c.handlers[kind]...)
	c.mu.Unlock()

	if len(entries) == 0 {
		if kind == KindPong {
			return
		}
		log.Debug("No handler registered for frame", "type", frame.Type)
		return
	}
	for _, e := range entries {
		e.fn(frame)
	}
}

func (c *Client) dial(ctx context.Context, target Target) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.Endpoint(target), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

func (c *Client) setState(s core.ConnectionState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := make([]func(core.ConnectionState), 0, len(c.onState))
	for _, fn := range c.onState {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
