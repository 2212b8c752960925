package coordinator

import (
	"context"

	"github.com/looplab/fsm"

	fsmutil "github.com/afnaayusuf/kintsugi/internal/pkg/util/fsm"
	"github.com/afnaayusuf/kintsugi/pkg/log"
)

const (
	StateStopped    = "stopped"
	StateStarting   = "starting"
	StateRunning    = "running"
	StateRestarting = "restarting"
)

const (
	// EventStart leaves Stopped once there is a session and a selected vehicle.
	EventStart = "start"
	// EventStarted marks the new source as running.
	EventStarted = "started"
	// EventRestart replaces the running source after a vehicle or credential change.
	EventRestart = "restart"
	// EventStop tears the source down from any state.
	EventStop = "stop"
)

// hooks are the side effects the lifecycle triggers on state entry.
type hooks interface {
	launch(t target)
	halt()
	entered(state string)
}

// lifecycle wraps the coordinator's state machine. Events carry the target
// to run as their first argument.
type lifecycle struct {
	*fsm.FSM
	hooks hooks
}

func newLifecycle(h hooks) *lifecycle {
	l := &lifecycle{hooks: h}

	events := fsm.Events{
		{Name: EventStart, Src: []string{StateStopped}, Dst: StateStarting},
		{Name: EventStarted, Src: []string{StateStarting, StateRestarting}, Dst: StateRunning},
		{Name: EventRestart, Src: []string{StateRunning}, Dst: StateRestarting},
		{Name: EventStop, Src: []string{StateStarting, StateRunning, StateRestarting}, Dst: StateStopped},
	}

	callbacks := fsm.Callbacks{
		"before_" + EventStart:   fsmutil.WrapEvent(l.GuardReady),
		"before_" + EventRestart: fsmutil.WrapEvent(l.GuardReady),

		"enter_" + StateStarting:   fsmutil.WrapEvent(l.ActionEnterStarting),
		"enter_" + StateRestarting: fsmutil.WrapEvent(l.ActionEnterRestarting),
		"enter_" + StateStopped:    fsmutil.WrapEvent(l.ActionEnterStopped),
		"enter_state":              fsmutil.WrapEvent(l.ActionLogTransition),
	}

	l.FSM = fsm.NewFSM(StateStopped, events, callbacks)
	return l
}

// GuardReady cancels a start or restart whose target has no session or
// no vehicle.
func (l *lifecycle) GuardReady(ctx context.Context, e *fsm.Event) error {
	t, ok := targetArg(e)
	if !ok || !t.ready() {
		e.Cancel(fsm.NoTransitionError{})
	}
	return nil
}

func (l *lifecycle) ActionEnterStarting(ctx context.Context, e *fsm.Event) error {
	t, _ := targetArg(e)
	l.hooks.launch(t)
	return nil
}

// ActionEnterRestarting stops the previous source completely before the
// next one starts.
func (l *lifecycle) ActionEnterRestarting(ctx context.Context, e *fsm.Event) error {
	t, _ := targetArg(e)
	l.hooks.halt()
	l.hooks.launch(t)
	return nil
}

func (l *lifecycle) ActionEnterStopped(ctx context.Context, e *fsm.Event) error {
	l.hooks.halt()
	return nil
}

func (l *lifecycle) ActionLogTransition(ctx context.Context, e *fsm.Event) error {
	log.Info("Feed lifecycle transition", "event", e.Event, "from", e.Src, "to", e.Dst)
	l.hooks.entered(e.Dst)
	return nil
}

func targetArg(e *fsm.Event) (target, bool) {
	if len(e.Args) == 0 {
		return target{}, false
	}
	t, ok := e.Args[0].(target)
	return t, ok
}
