package driver

import (
	"github.com/pion/cameraview/pkg/prop"
)

// Position is the direction a camera faces.
type Position string

const (
	PositionUnknown  Position = "unknown"
	PositionFront    Position = "front"
	PositionBack     Position = "back"
	PositionExternal Position = "external"
)

// CameraInfo describes a camera. It is immutable once enumerated.
type CameraInfo struct {
	ID                string
	Name              string
	Position          Position
	HasFlashUnit      bool
	MinZoom, MaxZoom  float64
	SensorOrientation int
}

// Limits returns the control limits of the camera.
func (i CameraInfo) Limits() prop.Limits {
	return prop.Limits{
		MinZoom:      i.MinZoom,
		MaxZoom:      i.MaxZoom,
		HasFlashUnit: i.HasFlashUnit,
	}
}

// MicrophoneInfo describes a microphone. It is immutable once enumerated.
type MicrophoneInfo struct {
	ID   string
	Name string
}
