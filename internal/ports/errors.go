package ports

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidRequest       ErrorKind = "InvalidRequest"
	KindCaptureUnavailable   ErrorKind = "CaptureUnavailable"
	KindUnwritablePath       ErrorKind = "UnwritablePath"
	KindTranscriptionFailure ErrorKind = "TranscriptionFailure"
	KindDeviceBusy           ErrorKind = "DeviceBusy"
	KindCancelled            ErrorKind = "Cancelled"
	KindTimedOut             ErrorKind = "TimedOut"
	KindInternal             ErrorKind = "Internal"
)

// Error carries a taxonomy kind through wrapped pipeline failures.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var ErrDeviceBusy = errors.New("audio device is already recording")

// KindOf returns the kind of the outermost *Error in the chain.
// Bare context errors map to Cancelled / TimedOut, anything else to Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimedOut
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindInternal
}

// ContextError classifies ctx.Err() for op, or returns nil while ctx is live.
func ContextError(ctx context.Context, op string) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindTimedOut, op, err)
	default:
		return NewError(KindCancelled, op, err)
	}
}
