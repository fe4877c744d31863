package engine

import (
	"context"
	"errors"

	"github.com/roach88/sushid/internal/control"
)

var (
	// ErrChannelFull is returned by Submit when every command slot is in
	// use. The command was not queued.
	ErrChannelFull = control.Unavailable("engine command channel is full")

	// ErrNotReady is returned by Submit while no audio frontend is driving
	// the engine.
	ErrNotReady = control.Unavailable("audio engine is not running")
)

// ApplyError describes a command the audio goroutine could not apply. The
// message is a constant so that failing never allocates on the audio path.
type ApplyError struct {
	Op      Op
	Message string
}

func (e *ApplyError) Error() string {
	return e.Op.String() + ": " + e.Message
}

// IsApplyError reports whether err came from the audio goroutine.
func IsApplyError(err error) bool {
	var ae *ApplyError
	return errors.As(err, &ae)
}

// waitError converts the end of a wait into the error reported to callers.
func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &control.Error{Kind: control.KindUnavailable, Message: "timed out waiting for the audio engine", Err: ctx.Err()}
	}
	return &control.Error{Kind: control.KindUnavailable, Message: "call cancelled", Err: ctx.Err()}
}
