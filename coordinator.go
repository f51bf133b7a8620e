package cameraview

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/io/video"
	"github.com/pion/cameraview/pkg/pipeline"
)

const snapshotQuality = 95

// deliver runs on the pipeline loop for every drained frame.
func (v *View) deliver(f *pipeline.Frame) {
	h := v.opts.handler

	if v.opts.surface != nil || h.FrameReceived != nil {
		img, _ := v.correct(f.Image)
		if s := v.opts.surface; s != nil {
			if err := s.Render(img); err != nil {
				logger.Debugf("failed to render frame %d: %v", f.Seq, err)
			}
		}
		if cb := h.FrameReceived; cb != nil {
			img = video.Resize(img, v.opts.frameWidth, v.opts.frameHeight, video.ScalerApproxBiLinear)
			payload, err := encodeImage(img, JPEG, v.opts.frameQuality)
			if err != nil {
				logger.Debugf("dropping frame %d: %v", f.Seq, err)
			} else {
				v.post(func() { cb(payload) })
			}
		}
	}

	if v.opts.barcodeDetection && v.divider.Frame(v.snapping.Load()) {
		v.detect(f.Retain())
	}
}

// detect hands the frame to the barcode consumers off the pipeline loop.
func (v *View) detect(f *pipeline.Frame) {
	h := v.opts.handler

	started := v.spawn(func() {
		img, corrected := v.correct(f.Image)
		if !corrected {
			img = video.Clone(img)
		}
		f.Release()

		if cb := h.BarcodeCandidate; cb != nil {
			v.post(func() { cb(img) })
		}
		if v.opts.barcodeDecoder == nil {
			return
		}
		results, err := v.opts.barcodeDecoder.Decode(img)
		if err != nil {
			logger.Debugf("barcode decoding failed: %v", err)
			return
		}
		if cb := h.BarcodeDetected; cb != nil && len(results) > 0 {
			v.post(func() { cb(results) })
		}
	})
	if !started {
		f.Release()
	}
}

// rotation returns the clockwise correction that makes frames of a camera
// upright on the current display.
func (v *View) rotation(info driver.CameraInfo) int {
	display := video.NormalizeRotation(v.opts.orientation())
	if info.Position == driver.PositionFront {
		return video.NormalizeRotation(info.SensorOrientation + display)
	}
	return video.NormalizeRotation(info.SensorOrientation - display)
}

// correct applies orientation, then mirroring. It reports whether img was
// copied.
func (v *View) correct(img image.Image) (image.Image, bool) {
	var degrees int
	if active := v.machine.Active(); active != nil {
		degrees = v.rotation(active.Info)
	}
	mirror := v.Controls().Mirrored
	if degrees == 0 && !mirror {
		return img, false
	}
	return video.Orient(img, degrees, mirror), true
}

func (v *View) capture(format ImageFormat, keepImage bool) ([]byte, image.Image, error) {
	if !v.machine.State().Live() {
		return nil, nil, ErrNotStarted
	}
	f := v.pipeline.Latest()
	if f == nil {
		return nil, nil, ErrNoFrame
	}
	defer f.Release()

	img, corrected := v.correct(f.Image)
	data, err := encodeImage(img, format, snapshotQuality)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode %s snapshot: %w", format, err)
	}
	if !keepImage {
		return data, nil, nil
	}
	if !corrected {
		img = video.Clone(img)
	}
	return data, img, nil
}

// TakeSnapshot encodes the latest frame, corrected for orientation and
// mirroring. It fails fast with ErrSnapshotInProgress while another
// snapshot is being taken.
func (v *View) TakeSnapshot(format ImageFormat) ([]byte, error) {
	if !v.machine.State().Live() {
		return nil, ErrNotStarted
	}
	if !v.snapping.CompareAndSwap(false, true) {
		return nil, ErrSnapshotInProgress
	}
	defer v.snapping.Store(false)

	data, _, err := v.capture(format, false)
	return data, err
}

// SaveSnapshot writes a snapshot to path, replacing any existing file.
func (v *View) SaveSnapshot(format ImageFormat, path string) bool {
	data, err := v.TakeSnapshot(format)
	if err != nil {
		logger.Warnf("snapshot failed: %v", err)
		return false
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Errorf("failed to save snapshot: %v", err)
		return false
	}
	return true
}

// LastSnapshot returns the latest automatic snapshot, or nil.
func (v *View) LastSnapshot() []byte {
	v.lastMu.Lock()
	defer v.lastMu.Unlock()
	return bytes.Clone(v.last)
}

func (v *View) schedule() {
	defer close(v.tickDone)
	defer v.opts.ticker.Stop()

	var lastAuto time.Time
	for {
		select {
		case <-v.stopTick:
			return
		case now := <-v.opts.ticker.C():
			if v.autoSnapshotDue(now, lastAuto) && v.snapping.CompareAndSwap(false, true) {
				lastAuto = now
				v.autoSnapshot()
			}
		}
	}
}

func (v *View) autoSnapshotDue(now, last time.Time) bool {
	interval := v.opts.autoSnapshotInterval
	if interval <= 0 || !v.machine.State().Live() {
		return false
	}
	return last.IsZero() || now.Sub(last) >= interval
}

// autoSnapshot runs with the snapping guard held and releases it.
func (v *View) autoSnapshot() {
	started := v.spawn(func() {
		defer v.snapping.Store(false)

		data, img, err := v.capture(v.opts.autoSnapshotFormat, v.opts.autoSnapshotAsImage)
		if err != nil {
			logger.Debugf("automatic snapshot skipped: %v", err)
			return
		}

		cb := v.opts.handler.SnapshotReady
		v.post(func() {
			v.lastMu.Lock()
			v.last = data
			v.lastMu.Unlock()
			if cb != nil {
				cb(data, img)
			}
		})
	})
	if !started {
		v.snapping.Store(false)
	}
}
