package core

import (
	"context"
	"time"
)

// ConnectionState is the feed's view of its upstream, surfaced for display only.
type ConnectionState string

const (
	ConnectionIdle       ConnectionState = "Idle"
	ConnectionConnecting ConnectionState = "Connecting"
	ConnectionLive       ConnectionState = "Live"
	ConnectionDegraded   ConnectionState = "Degraded"
	ConnectionClosed     ConnectionState = "Closed"
)

// Mode selects the family of data sources for a whole session.
type Mode string

const (
	ModeSimulation Mode = "simulation"
	ModeLive       Mode = "live"
)

// Session is an authenticated user session. Mode is decided once when the
// session is created and never re-derived from Token afterwards.
type Session struct {
	Token     string
	Mode      Mode
	Subject   string
	ExpiresAt time.Time
}

// VehicleStatus is the reachability of a vehicle as last reported.
type VehicleStatus string

const (
	VehicleOnline  VehicleStatus = "online"
	VehicleOffline VehicleStatus = "offline"
)

type Vehicle struct {
	ID     string        `json:"id"`
	Model  string        `json:"model"`
	Status VehicleStatus `json:"status"`
}

// Emitter is handed to a running Source. Emit forwards a snapshot towards
// the shared state; SetState reports the source's connection health.
type Emitter interface {
	Emit(s Snapshot)
	SetState(state ConnectionState)
}

// Source produces snapshots for one vehicle until ctx is cancelled.
// Run must not return before every goroutine it started has finished, so
// that a cancelled source can never emit again.
type Source interface {
	Name() string
	Run(ctx context.Context, vehicleID string, emit Emitter) error
}

// EmitterFuncs adapts plain functions to Emitter. Nil fields are no-ops.
type EmitterFuncs struct {
	EmitFunc  func(Snapshot)
	StateFunc func(ConnectionState)
}

func (e EmitterFuncs) Emit(s Snapshot) {
	if e.EmitFunc != nil {
		e.EmitFunc(s)
	}
}

func (e EmitterFuncs) SetState(state ConnectionState) {
	if e.StateFunc != nil {
		e.StateFunc(state)
	}
}
