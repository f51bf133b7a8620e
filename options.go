package cameraview

import (
	"image"
	"image/jpeg"
	"time"

	"github.com/pion/cameraview/pkg/barcode"
	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/io/video"
	"github.com/pion/cameraview/pkg/prop"
	"github.com/pion/cameraview/pkg/record"
)

const (
	defaultTick           = 33 * time.Millisecond
	defaultBarcodeDivider = 5
)

// PermissionFunc asks the host for access to the camera and, when recording,
// the microphone.
type PermissionFunc func(needCamera, needMicrophone bool) bool

// OrientationFunc returns the current display rotation in degrees clockwise.
type OrientationFunc func() int

// Surface is a rendering target the preview is drawn into.
type Surface interface {
	Render(img image.Image) error
	Close() error
}

// Dispatcher runs notifications on the host-affine goroutine. Post must not
// wait for f to run.
type Dispatcher interface {
	Post(f func()) bool
	Close()
}

// Ticker drives the snapshot scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type wallTicker struct {
	t *time.Ticker
}

func (w wallTicker) C() <-chan time.Time {
	return w.t.C
}

func (w wallTicker) Stop() {
	w.t.Stop()
}

// Options stores parameters used by View.
type Options struct {
	manager     *driver.Manager
	openTimeout time.Duration
	preview     prop.Video
	ticker      Ticker
	dispatcher  Dispatcher
	handler     Handler

	permission  PermissionFunc
	orientation OrientationFunc
	surface     Surface
	transform   video.TransformFunc

	frameQuality            int
	frameWidth, frameHeight int
	autoSnapshotInterval    time.Duration
	autoSnapshotFormat      ImageFormat
	autoSnapshotAsImage     bool
	barcodeDetection        bool
	barcodeDivider          int
	barcodeDecoder          barcode.Decoder
	record                  record.Params
}

// Option is a type of View functional option.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		manager:            driver.GetManager(),
		frameQuality:       jpeg.DefaultQuality,
		autoSnapshotFormat: JPEG,
		barcodeDivider:     defaultBarcodeDivider,
		orientation:        func() int { return 0 },
	}
}

// WithManager enumerates devices from m instead of the default manager.
func WithManager(m *driver.Manager) Option {
	return func(o *Options) {
		o.manager = m
	}
}

// WithOpenTimeout bounds opening and configuring a device.
func WithOpenTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.openTimeout = d
	}
}

// WithPreviewFormat sets the format preview sessions aim for.
func WithPreviewFormat(p prop.Video) Option {
	return func(o *Options) {
		o.preview = p
	}
}

// WithTicker replaces the snapshot scheduler tick, 33ms by default.
func WithTicker(t Ticker) Option {
	return func(o *Options) {
		o.ticker = t
	}
}

// WithDispatcher replaces the notification goroutine.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Options) {
		o.dispatcher = d
	}
}

// WithHandler registers the notification callbacks.
func WithHandler(h Handler) Option {
	return func(o *Options) {
		o.handler = h
	}
}

// WithVideoTransformers transforms the frames coming from the device, in
// order, before they are recorded or delivered:
// driver -> transforms -> recorder, pipeline
func WithVideoTransformers(transformFuncs ...video.TransformFunc) Option {
	return func(o *Options) {
		o.transform = video.Merge(transformFuncs...)
	}
}

// WithPermission asks f before any device is opened.
func WithPermission(f PermissionFunc) Option {
	return func(o *Options) {
		o.permission = f
	}
}

// WithOrientation queries the display rotation with f.
func WithOrientation(f OrientationFunc) Option {
	return func(o *Options) {
		if f != nil {
			o.orientation = f
		}
	}
}

// WithSurface renders every delivered frame into s. View closes s on Dispose.
func WithSurface(s Surface) Option {
	return func(o *Options) {
		o.surface = s
	}
}

// WithFrameQuality sets the JPEG quality of FrameReceived payloads.
func WithFrameQuality(q int) Option {
	return func(o *Options) {
		if q >= 1 && q <= 100 {
			o.frameQuality = q
		}
	}
}

// WithFrameSize scales FrameReceived payloads to width x height.
func WithFrameSize(width, height int) Option {
	return func(o *Options) {
		o.frameWidth, o.frameHeight = width, height
	}
}

// WithAutoSnapshot takes a snapshot in format every interval while a session
// is live. A zero interval disables it.
func WithAutoSnapshot(interval time.Duration, format ImageFormat) Option {
	return func(o *Options) {
		o.autoSnapshotInterval = interval
		o.autoSnapshotFormat = format
	}
}

// WithAutoSnapshotAsImage also hands the decoded image to SnapshotReady.
func WithAutoSnapshotAsImage() Option {
	return func(o *Options) {
		o.autoSnapshotAsImage = true
	}
}

// WithBarcodeDetection emits BarcodeCandidate on every divider-th delivered
// frame and, when decoder is not nil, BarcodeDetected with its results.
func WithBarcodeDetection(divider int, decoder barcode.Decoder) Option {
	return func(o *Options) {
		o.barcodeDetection = true
		if divider > 0 {
			o.barcodeDivider = divider
		}
		o.barcodeDecoder = decoder
	}
}

// WithRecordParams sets the encoder parameters of recordings. Path and
// Rotation are set by StartRecording.
func WithRecordParams(p record.Params) Option {
	return func(o *Options) {
		o.record = p
	}
}
