package cameraview

import (
	"image"

	"github.com/pion/cameraview/pkg/barcode"
	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/session"
)

// Handler holds the notification callbacks. Every callback runs on the
// dispatcher; nil callbacks are skipped and their payload is never built.
type Handler struct {
	DevicesRefreshed func(cameras []driver.CameraInfo, microphones []driver.MicrophoneInfo)
	// FrameReceived gets every delivered frame as JPEG.
	FrameReceived func(frame []byte)
	// SnapshotReady gets every automatic snapshot. img is only set with
	// WithAutoSnapshotAsImage.
	SnapshotReady    func(snapshot []byte, img image.Image)
	BarcodeCandidate func(img image.Image)
	BarcodeDetected  func(results []barcode.Result)
	// StateChanged must not call back into the View when the dispatcher
	// runs callbacks synchronously.
	StateChanged func(state session.State)
}

func (v *View) post(f func()) {
	if !v.dispatcher.Post(f) {
		logger.Debug("dispatcher closed, dropping notification")
	}
}
