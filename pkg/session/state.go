package session

import "fmt"

// State represents the capture session lifecycle state.
type State string

const (
	// StateIdle means no device is held. All resource slots are empty.
	StateIdle State = "idle"
	// StateOpening means the device is being opened and the capture
	// session configured. It lasts until the platform confirms the session.
	StateOpening State = "opening"
	// StatePreviewing means frames are flowing to the preview pipeline.
	StatePreviewing State = "previewing"
	// StateRecording means frames are flowing to the pipeline and a recorder.
	StateRecording State = "recording"
	// StateClosing means resources are being released by Stop.
	StateClosing State = "closing"
	// StateError means the device failed or disconnected. Resources are
	// released and the machine moves on to StateIdle.
	StateError State = "error"
)

var transitions = map[State][]State{
	StateIdle:       {StateOpening},
	StateOpening:    {StatePreviewing, StateRecording, StateError, StateClosing},
	StatePreviewing: {StateClosing, StateError},
	StateRecording:  {StateClosing, StateError},
	StateClosing:    {StateIdle},
	StateError:      {StateIdle},
}

// Live reports whether frames may be flowing in s.
func (s State) Live() bool {
	return s == StatePreviewing || s == StateRecording
}

// Update updates current state, s, to next. If f fails to execute,
// s will stay unchanged. Otherwise, s will be updated to next
func (s *State) Update(next State, f func() error) error {
	if !s.canMove(next) {
		return fmt.Errorf("invalid state: cannot move from %s to %s", *s, next)
	}

	err := f()
	if err == nil {
		*s = next
	}
	return err
}

func (s *State) canMove(next State) bool {
	for _, allowed := range transitions[*s] {
		if allowed == next {
			return true
		}
	}
	return false
}
