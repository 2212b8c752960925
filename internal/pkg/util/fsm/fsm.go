// Package fsm adapts error-returning functions to looplab/fsm callbacks.
package fsm

import (
	"context"

	"github.com/looplab/fsm"
)

// WrapEvent turns fn into a callback. An error from fn is stored on the
// event, where Event returns it, unless an earlier callback already set one.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil && event.Err == nil {
			event.Err = err
		}
	}
}
