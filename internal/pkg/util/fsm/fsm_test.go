package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapEventReportsFirstError(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	m := fsm.NewFSM("idle",
		fsm.Events{{Name: "go", Src: []string{"idle"}, Dst: "busy"}},
		fsm.Callbacks{
			"enter_busy": WrapEvent(func(context.Context, *fsm.Event) error { return first }),
			"enter_state": WrapEvent(func(context.Context, *fsm.Event) error { return second }),
		},
	)

	err := m.Event(context.Background(), "go")
	require.Error(t, err)
	assert.True(t, errors.Is(err, first))
	assert.Equal(t, "busy", m.Current())
}

func TestWrapEventCancel(t *testing.T) {
	m := fsm.NewFSM("idle",
		fsm.Events{{Name: "go", Src: []string{"idle"}, Dst: "busy"}},
		fsm.Callbacks{
			"before_go": WrapEvent(func(_ context.Context, e *fsm.Event) error {
				e.Cancel(fsm.NoTransitionError{})
				return nil
			}),
		},
	)

	err := m.Event(context.Background(), "go")
	var canceled fsm.CanceledError
	require.True(t, errors.As(err, &canceled))
	assert.Equal(t, "idle", m.Current())
}
