package cameraview

import (
	"errors"

	"github.com/pion/cameraview/pkg/prop"
	"github.com/pion/cameraview/pkg/session"
)

// SetZoom sets the zoom factor. It is clamped to the range of the camera.
func (v *View) SetZoom(factor float64) {
	v.update(func(c *prop.Controls) { c.Zoom = factor })
}

// SetTorch turns the torch on or off. Cameras without a flash unit ignore it.
func (v *View) SetTorch(on bool) {
	v.update(func(c *prop.Controls) { c.Torch = on })
}

// SetFlashMode sets the flash mode used for still capture.
func (v *View) SetFlashMode(mode prop.FlashMode) {
	v.update(func(c *prop.Controls) { c.Flash = mode })
}

// SetMirrored mirrors the preview and snapshots horizontally.
func (v *View) SetMirrored(mirrored bool) {
	v.update(func(c *prop.Controls) { c.Mirrored = mirrored })
}

// Controls returns the desired control state. It is kept across sessions and
// applied to every new one.
func (v *View) Controls() prop.Controls {
	v.controlsMu.Lock()
	defer v.controlsMu.Unlock()
	return v.controls
}

// AppliedControls returns the controls pushed to the live session.
func (v *View) AppliedControls() (prop.Controls, bool) {
	active := v.machine.Active()
	if active == nil {
		return prop.Controls{}, false
	}
	return active.Controls, true
}

// update records the change and applies it to the live session. Failures
// are logged and otherwise ignored.
func (v *View) update(f func(*prop.Controls)) {
	v.controlsMu.Lock()
	defer v.controlsMu.Unlock()

	f(&v.controls)
	desired := v.controls

	applied, err := v.machine.Apply(desired)
	switch {
	case errors.Is(err, session.ErrNotStarted):
		logger.Debugf("no session, controls %+v applied on next start", desired)
	case err != nil:
		logger.Warnf("failed to apply controls %+v: %v", applied, err)
	}
}
