package driver

import (
	"context"

	"github.com/pion/cameraview/pkg/io/audio"
	"github.com/pion/cameraview/pkg/io/video"
	"github.com/pion/cameraview/pkg/prop"
)

// Backend is one capture back end, e.g. V4L2 or the host's audio stack.
// A backend may expose cameras, microphones or both.
type Backend interface {
	Name() string
	Cameras() ([]Camera, error)
	Microphones() ([]Microphone, error)
}

// Camera is an enumerated, not yet opened, camera.
type Camera interface {
	Info() CameraInfo
	// Open acquires the device handle. It may block until the platform
	// confirms the device, or ctx is done.
	Open(ctx context.Context) (Device, error)
}

// Device is an opened camera handle.
type Device interface {
	// Formats lists the capture formats the device supports.
	Formats() []prop.Video
	// Configure creates the capture session. It blocks until the platform
	// confirms the session is configured, or ctx is done.
	Configure(ctx context.Context, cfg SessionConfig) (Session, error)
	Close() error
}

// Purpose tells the device what a session is for.
type Purpose string

const (
	PurposePreview Purpose = "preview"
	PurposeRecord  Purpose = "record"
)

// SessionConfig is what the session has been negotiated with.
type SessionConfig struct {
	Format   prop.Video
	Controls prop.Controls
	Purpose  Purpose
}

// Session is an active capture session. Reading after Close, or while the
// session is closing, returns io.EOF. Any other read error means the device
// is gone.
type Session interface {
	video.Reader
	// Apply re-issues the capture request with c.
	Apply(c prop.Controls) error
	Close() error
}

// Microphone is an enumerated, not yet opened, microphone.
type Microphone interface {
	Info() MicrophoneInfo
	Open(ctx context.Context, p prop.Audio) (AudioSession, error)
}

// AudioSession is an open microphone. Like Session, reads after Close return io.EOF.
type AudioSession interface {
	audio.Reader
	Close() error
}
