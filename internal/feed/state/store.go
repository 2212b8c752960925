// Package state holds the telemetry state shared between the feed and its
// readers. A Store is created by the application root and injected into
// every component that reads or writes it.
package state

import (
	"slices"
	"sync"

	"github.com/afnaayusuf/kintsugi/internal/feed/core"
)

// DropReason explains why PublishSnapshot refused a snapshot.
type DropReason string

const (
	DropNone           DropReason = ""
	DropNoSelection    DropReason = "no_selection"
	DropForeignVehicle DropReason = "foreign_vehicle"
	DropOutOfOrder     DropReason = "out_of_order"
)

// View is a consistent copy of the whole store.
type View struct {
	Snapshot          *core.Snapshot       `json:"snapshot"`
	Vehicles          []core.Vehicle       `json:"vehicles"`
	SelectedVehicleID string               `json:"selected_vehicle_id"`
	Authenticated     bool                 `json:"authenticated"`
	Mode              core.Mode            `json:"mode,omitempty"`
	Connection        core.ConnectionState `json:"connection"`
}

// SessionChange is delivered to session observers. Session is nil after logout.
type SessionChange struct {
	Session *core.Session
}

// Store is safe for concurrent use. Observers run synchronously on the
// writer's goroutine, outside the store lock, in registration order; they
// may read the store but should hand any slow work off.
type Store struct {
	mu       sync.RWMutex
	snapshot *core.Snapshot
	vehicles []core.Vehicle
	selected string
	session  *core.Session
	conn     core.ConnectionState

	nextID       uint64
	onSnapshot   observers[core.Snapshot]
	onSelection  observers[string]
	onSession    observers[SessionChange]
	onConnection observers[core.ConnectionState]
	onVehicles   observers[[]core.Vehicle]
}

func New() *Store {
	return &Store{conn: core.ConnectionIdle}
}

// View returns a copy of the current state.
func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := View{
		Vehicles:          slices.Clone(s.vehicles),
		SelectedVehicleID: s.selected,
		Authenticated:     s.session != nil,
		Connection:        s.conn,
	}
	if v.Vehicles == nil {
		v.Vehicles = []core.Vehicle{}
	}
	if s.snapshot != nil {
		snap := s.snapshot.Clone()
		v.Snapshot = &snap
	}
	if s.session != nil {
		v.Mode = s.session.Mode
	}
	return v
}

// Snapshot returns the latest snapshot, if any.
func (s *Store) Snapshot() (core.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return core.Snapshot{}, false
	}
	return s.snapshot.Clone(), true
}

func (s *Store) Session() (core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return core.Session{}, false
	}
	return *s.session, true
}

func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

func (s *Store) SelectedVehicle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *Store) Vehicles() []core.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.vehicles)
}

func (s *Store) ConnectionState() core.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// PublishSnapshot replaces the stored snapshot with snap. It refuses
// snapshots for a vehicle other than the selected one and snapshots that
// are not newer than the stored one, and reports why.
func (s *Store) PublishSnapshot(snap core.Snapshot) (bool, DropReason) {
	s.mu.Lock()
	switch {
	case s.selected == "":
		s.mu.Unlock()
		return false, DropNoSelection
	case snap.VehicleID != s.selected:
		s.mu.Unlock()
		return false, DropForeignVehicle
	case s.snapshot != nil && !snap.Timestamp.After(s.snapshot.Timestamp):
		s.mu.Unlock()
		return false, DropOutOfOrder
	}

	stored := snap.Clone()
	s.snapshot = &stored
	fns := s.onSnapshot.list()
	s.mu.Unlock()

	notify(fns, stored.Clone())
	return true, DropNone
}

// SelectVehicle changes the selected vehicle and clears the stored
// snapshot. Selecting the current vehicle again is a no-op.
func (s *Store) SelectVehicle(id string) {
	s.mu.Lock()
	if s.selected == id {
		s.mu.Unlock()
		return
	}
	s.selected = id
	s.snapshot = nil
	fns := s.onSelection.list()
	s.mu.Unlock()

	notify(fns, id)
}

// SetSession stores sess, replacing any previous session.
func (s *Store) SetSession(sess core.Session) {
	s.mu.Lock()
	stored := sess
	s.session = &stored
	fns := s.onSession.list()
	s.mu.Unlock()

	out := sess
	notify(fns, SessionChange{Session: &out})
}

// ClearSession logs out: it drops the session together with the vehicle
// list, the selection and the stored snapshot.
func (s *Store) ClearSession() {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return
	}
	hadSelection := s.selected != ""
	s.session = nil
	s.snapshot = nil
	s.selected = ""
	s.vehicles = nil
	sessionFns := s.onSession.list()
	selectionFns := s.onSelection.list()
	vehicleFns := s.onVehicles.list()
	s.mu.Unlock()

	notify(sessionFns, SessionChange{})
	if hadSelection {
		notify(selectionFns, "")
	}
	notify(vehicleFns, []core.Vehicle{})
}

func (s *Store) SetVehicles(vs []core.Vehicle) {
	s.mu.Lock()
	s.vehicles = slices.Clone(vs)
	fns := s.onVehicles.list()
	s.mu.Unlock()

	notify(fns, slices.Clone(vs))
}

// SetVehicleStatus updates the status of a known vehicle. Unknown ids are
// ignored and reported as false.
func (s *Store) SetVehicleStatus(id string, status core.VehicleStatus) bool {
	s.mu.Lock()
	i := slices.IndexFunc(s.vehicles, func(v core.Vehicle) bool { return v.ID == id })
	if i < 0 || s.vehicles[i].Status == status {
		s.mu.Unlock()
		return i >= 0
	}
	s.vehicles[i].Status = status
	vs := slices.Clone(s.vehicles)
	fns := s.onVehicles.list()
	s.mu.Unlock()

	notify(fns, vs)
	return true
}

func (s *Store) SetConnectionState(cs core.ConnectionState) {
	s.mu.Lock()
	if s.conn == cs {
		s.mu.Unlock()
		return
	}
	s.conn = cs
	fns := s.onConnection.list()
	s.mu.Unlock()

	notify(fns, cs)
}

// OnSnapshot registers fn for every published snapshot. The returned func
// unregisters it.
func (s *Store) OnSnapshot(fn func(core.Snapshot)) func() {
	return observe(s, &s.onSnapshot, fn)
}

// OnSelection registers fn for selection changes, including the implicit
// clear on logout.
func (s *Store) OnSelection(fn func(string)) func() {
	return observe(s, &s.onSelection, fn)
}

func (s *Store) OnSession(fn func(SessionChange)) func() {
	return observe(s, &s.onSession, fn)
}

func (s *Store) OnConnectionState(fn func(core.ConnectionState)) func() {
	return observe(s, &s.onConnection, fn)
}

func (s *Store) OnVehicles(fn func([]core.Vehicle)) func() {
	return observe(s, &s.onVehicles, fn)
}

func observe[T any](s *Store, o *observers[T], fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	o.add(id, fn)
	return func() {
		s.mu.Lock()
		o.remove(id)
		s.mu.Unlock()
	}
}
