package cameraview

import (
	"errors"

	"github.com/pion/cameraview/pkg/session"
)

// Result is the outcome of a View operation.
type Result int

const (
	Success Result = iota
	// NotInitiated means the device registry was never enumerated
	// successfully, or the View was disposed.
	NotInitiated
	NoCameraSelected
	NoMicrophoneSelected
	// AccessDenied means the host refused permission.
	AccessDenied
	// AccessError means the device could not be opened or configured.
	AccessError
	NoVideoFormatsAvailable
)

func (r Result) String() string {
	switch r {
	case Success:
		return "Success"
	case NotInitiated:
		return "NotInitiated"
	case NoCameraSelected:
		return "NoCameraSelected"
	case NoMicrophoneSelected:
		return "NoMicrophoneSelected"
	case AccessDenied:
		return "AccessDenied"
	case AccessError:
		return "AccessError"
	case NoVideoFormatsAvailable:
		return "NoVideoFormatsAvailable"
	default:
		return "Unknown"
	}
}

func resultOf(err error) Result {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, session.ErrNoCamera):
		return NoCameraSelected
	case errors.Is(err, session.ErrNoMicrophone):
		return NoMicrophoneSelected
	case errors.Is(err, session.ErrPermissionDenied):
		return AccessDenied
	case errors.Is(err, session.ErrNoFormats):
		return NoVideoFormatsAvailable
	default:
		return AccessError
	}
}
