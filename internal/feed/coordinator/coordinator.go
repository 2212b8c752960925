// Package coordinator selects and supervises the single telemetry source
// feeding the shared state.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/poller"
	"github.com/afnaayusuf/kintsugi/internal/feed/prefs"
	"github.com/afnaayusuf/kintsugi/internal/feed/simulator"
	"github.com/afnaayusuf/kintsugi/internal/feed/socket"
	"github.com/afnaayusuf/kintsugi/internal/feed/state"
	"github.com/afnaayusuf/kintsugi/internal/pkg/metrics"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

var allStates = []string{
	string(core.ConnectionIdle),
	string(core.ConnectionConnecting),
	string(core.ConnectionLive),
	string(core.ConnectionDegraded),
	string(core.ConnectionClosed),
}

// Config holds what the coordinator needs to build sources.
type Config struct {
	SimulationInterval time.Duration
	Socket             *socket.Config
	Poller             *poller.Config
	Prefs              prefs.Store
}

// target is what the coordinator should be running. The zero value means
// nothing.
type target struct {
	token     string
	mode      core.Mode
	vehicleID string
}

func (t target) ready() bool { return t.token != "" && t.vehicleID != "" }

type activeRun struct {
	target target
	source string
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator runs exactly one source while the store holds a session and
// a selected vehicle, and forwards that source's snapshots to the store.
type Coordinator struct {
	cfg   *Config
	store *state.Store
	gen   *simulator.Generator

	// newSource builds the source for a session. Replaced in tests.
	newSource func(sess core.Session) core.Source

	lc   *lifecycle
	wake chan struct{}

	// opMu serializes reconciliation and Stop.
	opMu       sync.Mutex
	active     *activeRun
	generation atomic.Uint64

	infoMu       sync.RWMutex
	activeSource string
	activeTarget target
	// published is the lifecycle state readers see. It changes only after
	// a transition's hooks have returned.
	published string
}

func New(cfg *Config, store *state.Store) *Coordinator {
	if cfg == nil {
		cfg = &Config{}
	}

	c := &Coordinator{
		cfg:   cfg,
		store: store,
		gen:       simulator.NewGenerator(),
		wake:      make(chan struct{}, 1),
		published: StateStopped,
	}
	c.newSource = c.sourceFor
	c.lc = newLifecycle(c)
	return c
}

// Run reconciles the running source with the store whenever the session
// or the selected vehicle changes, until ctx is done. Changes arriving
// while a reconcile is in progress are coalesced into one.
func (c *Coordinator) Run(ctx context.Context) error {
	unsubSelection := c.store.OnSelection(func(string) { c.kick() })
	defer unsubSelection()
	unsubSession := c.store.OnSession(func(state.SessionChange) { c.kick() })
	defer unsubSession()

	log.Info("Feed coordinator started")
	c.kick()

	for {
		select {
		case <-ctx.Done():
			c.Stop()
			log.Info("Feed coordinator stopped")
			return nil
		case <-c.wake:
			c.reconcile(ctx)
		}
	}
}

// Stop tears down the active source. It is idempotent.
func (c *Coordinator) Stop() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.fire(context.Background(), EventStop, target{})
}

// State returns the lifecycle state reached by the last completed
// transition.
func (c *Coordinator) State() string {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.published
}

// ActiveSource returns the name of the running source and its vehicle, or
// empty strings when stopped.
func (c *Coordinator) ActiveSource() (name, vehicleID string) {
	c.infoMu.RLock()
	defer c.infoMu.RUnlock()
	return c.activeSource, c.activeTarget.vehicleID
}

func (c *Coordinator) kick() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) reconcile(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	desired := c.desired()
	switch {
	case !desired.ready():
		c.fire(ctx, EventStop, desired)
	case c.lc.Is(StateStopped):
		if c.fire(ctx, EventStart, desired) {
			c.fire(ctx, EventStarted, desired)
		}
	case c.active == nil || c.active.target != desired:
		if c.fire(ctx, EventRestart, desired) {
			c.fire(ctx, EventStarted, desired)
		}
	}
}

// fire sends event if the current state allows it and reports whether
// the transition happened.
func (c *Coordinator) fire(ctx context.Context, event string, t target) bool {
	if !c.lc.Can(event) {
		return false
	}
	err := c.lc.Event(ctx, event, t)
	var canceled fsm.CanceledError
	switch {
	case err == nil:
		c.infoMu.Lock()
		c.published = c.lc.Current()
		c.infoMu.Unlock()
		return true
	case errors.As(err, &canceled):
		return false
	default:
		log.Error(err, "Feed lifecycle event failed", "event", event)
		return false
	}
}

func (c *Coordinator) desired() target {
	sess, ok := c.store.Session()
	if !ok {
		return target{}
	}
	return target{token: sess.Token, mode: sess.Mode, vehicleID: c.store.SelectedVehicle()}
}

// launch starts the source for t under a new generation. Must be called
// with opMu held and no active run.
func (c *Coordinator) launch(t target) {
	gen := c.generation.Add(1)
	src := c.newSource(core.Session{Token: t.token, Mode: t.mode})
	runCtx, cancel := context.WithCancel(context.Background())
	run := &activeRun{target: t, source: src.Name(), cancel: cancel, done: make(chan struct{})}
	c.active = run

	c.infoMu.Lock()
	c.activeSource, c.activeTarget = run.source, t
	c.infoMu.Unlock()

	metrics.SourceStarts.WithLabelValues(run.source).Inc()
	log.Info("Starting telemetry source", "source", run.source, "vehicleID", t.vehicleID, "mode", t.mode, "generation", gen)

	c.setConnection(core.ConnectionConnecting)
	em := &gatedEmitter{c: c, generation: gen, vehicleID: t.vehicleID, source: run.source}
	go func() {
		defer close(run.done)
		if err := src.Run(runCtx, t.vehicleID, em); err != nil {
			log.Error(err, "Telemetry source exited with error", "source", run.source, "vehicleID", t.vehicleID)
		}
	}()
}

// halt invalidates the active generation, cancels its source and waits
// for it to return. Must be called with opMu held.
func (c *Coordinator) halt() {
	run := c.active
	if run == nil {
		return
	}
	c.generation.Add(1)
	run.cancel()
	<-run.done
	c.active = nil

	c.infoMu.Lock()
	c.activeSource, c.activeTarget = "", target{}
	c.infoMu.Unlock()

	log.Info("Stopped telemetry source", "source", run.source, "vehicleID", run.target.vehicleID)
}

func (c *Coordinator) entered(s string) {
	if s == StateStopped {
		c.setConnection(core.ConnectionIdle)
	}
}

func (c *Coordinator) setConnection(s core.ConnectionState) {
	c.store.SetConnectionState(s)
	metrics.ObserveConnectionState(string(s), allStates...)
}

func (c *Coordinator) sourceFor(sess core.Session) core.Source {
	if sess.Mode == core.ModeSimulation {
		return simulator.NewSource(c.gen, c.cfg.SimulationInterval)
	}
	return NewLiveSource(c.cfg.Socket, poller.New(c.cfg.Poller, sess.Token, c.cfg.Prefs), sess.Token)
}

// gatedEmitter forwards a source's output only while its generation is
// current and only for the vehicle it was started for.
type gatedEmitter struct {
	c          *Coordinator
	generation uint64
	vehicleID  string
	source     string
}

func (e *gatedEmitter) current() bool {
	return e.c.generation.Load() == e.generation
}

func (e *gatedEmitter) Emit(s core.Snapshot) {
	if !e.current() {
		metrics.SnapshotsDropped.WithLabelValues("stale_generation").Inc()
		return
	}
	if s.VehicleID != e.vehicleID {
		metrics.SnapshotsDropped.WithLabelValues(string(state.DropForeignVehicle)).Inc()
		log.Debug("Dropping snapshot for another vehicle", "want", e.vehicleID, "got", s.VehicleID)
		return
	}
	if ok, reason := e.c.store.PublishSnapshot(s); !ok {
		metrics.SnapshotsDropped.WithLabelValues(string(reason)).Inc()
		return
	}
	metrics.SnapshotsPublished.WithLabelValues(e.source).Inc()
}

func (e *gatedEmitter) SetState(s core.ConnectionState) {
	if !e.current() {
		return
	}
	e.c.setConnection(s)
}
