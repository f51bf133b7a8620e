package prop

import "math"

// FlashMode controls the flash unit during still capture.
type FlashMode int

const (
	FlashDisabled FlashMode = iota
	FlashAuto
	FlashEnabled
)

func (m FlashMode) String() string {
	switch m {
	case FlashAuto:
		return "auto"
	case FlashEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// Controls is the desired control state of a camera.
type Controls struct {
	Zoom     float64
	Torch    bool
	Flash    FlashMode
	Mirrored bool
}

// Limits is what a camera can honour.
type Limits struct {
	MinZoom, MaxZoom float64
	HasFlashUnit     bool
}

// Clamp reconciles c with l: zoom is clamped into [MinZoom, MaxZoom] and the
// torch and flash are forced off without a flash unit. A zero zoom means
// "not set" and becomes MinZoom.
func (c Controls) Clamp(l Limits) Controls {
	if l.MaxZoom < l.MinZoom {
		l.MaxZoom = l.MinZoom
	}
	if c.Zoom == 0 || math.IsNaN(c.Zoom) {
		c.Zoom = l.MinZoom
	}
	c.Zoom = math.Max(l.MinZoom, math.Min(c.Zoom, l.MaxZoom))

	if !l.HasFlashUnit {
		c.Torch = false
		c.Flash = FlashDisabled
	}
	return c
}
