package dashboard

import (
	"context"
	"fmt"
	"slices"

	"github.com/afnaayusuf/kintsugi/internal/feed/coordinator"
	"github.com/afnaayusuf/kintsugi/internal/feed/core"
	"github.com/afnaayusuf/kintsugi/internal/feed/session"
	"github.com/afnaayusuf/kintsugi/internal/feed/simulator"
	"github.com/afnaayusuf/kintsugi/internal/feed/state"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

// VehicleLister loads the vehicles visible to a credential. *fleet.Client
// satisfies it.
type VehicleLister interface {
	ListVehicles(ctx context.Context, token string) ([]core.Vehicle, error)
}

// Feed ties the shared state to its coordinator and implements the user
// actions that change it. It is used by the HTTP surface and the watch
// command alike.
type Feed struct {
	store    *state.Store
	coord    *coordinator.Coordinator
	resolver *session.Resolver
	fleet    VehicleLister
}

// NewFeed wires a fresh store to a coordinator built from cfg. A nil fleet
// lister makes every session use the demo fleet.
func NewFeed(cfg *coordinator.Config, resolver *session.Resolver, fleet VehicleLister) *Feed {
	if resolver == nil {
		resolver = session.NewResolver(session.ModeAuto)
	}
	store := state.New()
	return &Feed{
		store:    store,
		coord:    coordinator.New(cfg, store),
		resolver: resolver,
		fleet:    fleet,
	}
}

func (f *Feed) Store() *state.Store                    { return f.store }
func (f *Feed) Coordinator() *coordinator.Coordinator { return f.coord }

// Run runs the coordinator until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	return f.coord.Run(ctx)
}

// Login opens a session for token, loads the vehicle list and selects the
// first vehicle unless the current selection is still in the list.
func (f *Feed) Login(ctx context.Context, token string) (core.Session, error) {
	return f.LoginTo(ctx, token, "")
}

// LoginTo is Login with vehicleID selected instead of the default choice.
// The selection is in place before the session is published, so the first
// source started is already for vehicleID. A vehicleID missing from the
// loaded list fails without opening the session.
func (f *Feed) LoginTo(ctx context.Context, token, vehicleID string) (core.Session, error) {
	sess, err := f.resolver.Resolve(token)
	if err != nil {
		return core.Session{}, err
	}

	vehicles := f.vehicles(ctx, sess)

	selected := vehicleID
	switch {
	case selected != "":
		if !containsVehicle(vehicles, selected) {
			return core.Session{}, fmt.Errorf("%w: %s", ErrUnknownVehicle, selected)
		}
	case len(vehicles) > 0 && !containsVehicle(vehicles, f.store.SelectedVehicle()):
		selected = vehicles[0].ID
	}

	f.store.SetVehicles(vehicles)
	if selected != "" {
		f.store.SelectVehicle(selected)
	}
	f.store.SetSession(sess)

	log.Info("Session opened", "mode", sess.Mode, "subject", sess.Subject, "vehicles", len(vehicles), "vehicleID", f.store.SelectedVehicle())
	return sess, nil
}

// Logout clears the session. The coordinator stops the running source.
func (f *Feed) Logout() {
	f.store.ClearSession()
	log.Info("Session closed")
}

// Select changes the selected vehicle. Only vehicles from the loaded list
// may be selected.
func (f *Feed) Select(vehicleID string) error {
	if !f.store.Authenticated() {
		return ErrUnauthenticated
	}
	if !containsVehicle(f.store.Vehicles(), vehicleID) {
		return fmt.Errorf("%w: %s", ErrUnknownVehicle, vehicleID)
	}
	f.store.SelectVehicle(vehicleID)
	return nil
}

func containsVehicle(vs []core.Vehicle, id string) bool {
	return id != "" && slices.ContainsFunc(vs, func(v core.Vehicle) bool { return v.ID == id })
}

func (f *Feed) vehicles(ctx context.Context, sess core.Session) []core.Vehicle {
	if sess.Mode == core.ModeSimulation || f.fleet == nil {
		return simulator.MockVehicles()
	}

	vs, err := f.fleet.ListVehicles(ctx, sess.Token)
	if err != nil {
		log.Error(err, "Failed to load vehicle list, using demo fleet")
		return simulator.MockVehicles()
	}
	if len(vs) == 0 {
		log.Warn("Backend returned no vehicles, using demo fleet")
		return simulator.MockVehicles()
	}
	return vs
}
