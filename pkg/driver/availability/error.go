// Package availability classifies device errors that mean the device cannot
// be used right now, as opposed to a programming or configuration error.
package availability

import "errors"

var (
	ErrUnimplemented = NewError("not implemented")
	ErrBusy          = NewError("device or resource busy")
	ErrNoDevice      = NewError("no such device")
	ErrDisconnected  = &Error{Reason: "device disconnected", Lost: true}
)

// Error is an availability error.
type Error struct {
	Reason string
	// Lost is set when the device went away while it was in use.
	Lost bool
}

func (e *Error) Error() string {
	return e.Reason
}

// NewError returns an availability error for a device that is not usable.
func NewError(reason string) error {
	return &Error{Reason: reason}
}

// IsError reports whether err, or any error it wraps, is an availability error.
func IsError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// IsLost reports whether err says an open device went away.
func IsLost(err error) bool {
	var target *Error
	return errors.As(err, &target) && target.Lost
}
