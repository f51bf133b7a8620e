package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blackjack/webcam"

	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/driver/availability"
	"github.com/pion/cameraview/pkg/frame"
	"github.com/pion/cameraview/pkg/prop"
)

const (
	maxEmptyFrameCount = 5
	// waitTimeout is in seconds, it bounds how long Close waits for a reader.
	waitTimeout = 1
)

// V4L2 control ids, see linux/v4l2-controls.h.
const (
	cidZoomAbsolute webcam.ControlID = 0x009a090d
	cidFlashLEDMode webcam.ControlID = 0x009c0901
)

const (
	flashLEDModeNone  = 0
	flashLEDModeFlash = 1
	flashLEDModeTorch = 2
)

var errEmptyFrame = errors.New("empty frame")

func fourcc(s string) webcam.PixelFormat {
	return webcam.PixelFormat(uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24)
}

var formats = map[webcam.PixelFormat]frame.Format{
	fourcc("YUYV"): frame.FormatYUY2,
	fourcc("UYVY"): frame.FormatUYVY,
	fourcc("NV12"): frame.FormatNV12,
	fourcc("NV21"): frame.FormatNV21,
	fourcc("YU12"): frame.FormatI420,
	fourcc("MJPG"): frame.FormatMJPEG,
}

func init() {
	driver.GetManager().Register(&Backend{
		patterns: []string{"/dev/v4l/by-path/*", "/dev/video*"},
	})
}

// Backend enumerates V4L2 capture devices.
type Backend struct {
	patterns []string
}

func (b *Backend) Name() string {
	return "v4l2"
}

func (b *Backend) Cameras() ([]driver.Camera, error) {
	var cams []driver.Camera
	for _, n := range discover(b.patterns...) {
		c, err := inspect(n)
		if err != nil {
			logger.Debugf("%s: not a capture device: %v", n.label, err)
			continue
		}
		cams = append(cams, c)
	}
	return cams, nil
}

func (b *Backend) Microphones() ([]driver.Microphone, error) {
	return nil, nil
}

// Camera implementation using v4l2
// Reference: https://linuxtv.org/downloads/v4l-dvb-apis/uapi/v4l/videodev.html#videodev
type camera struct {
	path string
	info driver.CameraInfo
	zoom webcam.Control
}

// inspect opens the node once to read its capabilities.
func inspect(n node) (*camera, error) {
	cam, err := webcam.Open(n.path)
	if err != nil {
		return nil, err
	}
	defer cam.Close()

	if len(cam.GetSupportedFormats()) == 0 {
		return nil, availability.ErrNoDevice
	}

	c := &camera{
		path: n.path,
		info: driver.CameraInfo{
			ID:       n.id,
			Name:     deviceName(n),
			Position: driver.PositionExternal,
			MinZoom:  1,
			MaxZoom:  1,
		},
	}
	controls := cam.GetControls()
	if zoom, ok := controls[cidZoomAbsolute]; ok {
		c.zoom = zoom
		c.info.MinZoom, c.info.MaxZoom = zoomRange(zoom.Min, zoom.Max)
	}
	if _, ok := controls[cidFlashLEDMode]; ok {
		c.info.HasFlashUnit = true
	}
	return c, nil
}

// deviceName reads the name the kernel gives the device, falling back to the label.
func deviceName(n node) string {
	b, err := os.ReadFile(filepath.Join("/sys/class/video4linux", filepath.Base(n.path), "name"))
	if err != nil {
		return n.label
	}
	return strings.TrimSpace(string(b))
}

func (c *camera) Info() driver.CameraInfo {
	return c.info
}

func (c *camera) Open(ctx context.Context) (driver.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cam, err := webcam.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", c.path, availability.ErrNoDevice)
		}
		return nil, err
	}
	return &device{camera: c, cam: cam}, nil
}

type device struct {
	camera *camera
	cam    *webcam.Webcam

	mu      sync.Mutex
	session *session
}

func (d *device) Formats() []prop.Video {
	var out []prop.Video
	for pf := range d.cam.GetSupportedFormats() {
		f, ok := formats[pf]
		if !ok {
			continue
		}
		for _, size := range d.cam.GetSupportedFrameSizes(pf) {
			out = append(out, prop.Video{
				Width:       int(size.MaxWidth),
				Height:      int(size.MaxHeight),
				FrameRate:   30,
				FrameFormat: f,
			})
		}
	}
	return out
}

func (d *device) Configure(ctx context.Context, cfg driver.SessionConfig) (driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := cfg.Format
	decoder, err := frame.NewDecoder(p.FrameFormat)
	if err != nil {
		return nil, err
	}

	var pf webcam.PixelFormat
	for k, v := range formats {
		if v == p.FrameFormat {
			pf = k
		}
	}
	if _, _, _, err := d.cam.SetImageFormat(pf, uint32(p.Width), uint32(p.Height)); err != nil {
		return nil, err
	}
	if err := d.cam.StartStreaming(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		device:  d,
		p:       p,
		decoder: decoder,
		ctx:     ctx,
		cancel:  cancel,
	}
	if err := s.Apply(cfg.Controls); err != nil {
		logger.Warnf("%s: failed to apply controls: %v", d.camera.path, err)
	}

	d.mu.Lock()
	d.session = s
	d.mu.Unlock()
	return s, nil
}

func (d *device) Close() error {
	d.mu.Lock()
	s := d.session
	d.session = nil
	d.mu.Unlock()

	if s != nil {
		s.Close()
	}
	return d.cam.Close()
}

type session struct {
	device  *device
	p       prop.Video
	decoder frame.Decoder
	buf     []byte

	// mu is held while a reader touches the mmap'd buffers.
	mu     sync.Mutex
	ctx    context.Context
	cancel func()
	once   sync.Once
}

func (s *session) Read() (image.Image, func(), error) {
	// Lock to avoid accessing the buffer after StopStreaming()
	s.mu.Lock()
	defer s.mu.Unlock()

	cam := s.device.cam
	for i := 0; i < maxEmptyFrameCount; {
		if s.ctx.Err() != nil {
			// Return EOF if the camera is already closed.
			return nil, func() {}, io.EOF
		}

		err := cam.WaitForFrame(waitTimeout)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return nil, func() {}, fmt.Errorf("%w: %v", availability.ErrDisconnected, err)
		}

		b, err := cam.ReadFrame()
		if err != nil {
			return nil, func() {}, fmt.Errorf("%w: %v", availability.ErrDisconnected, err)
		}
		if len(b) == 0 {
			i++
			continue
		}

		if len(b) > len(s.buf) {
			s.buf = make([]byte, len(b))
		}
		// Move the memory from mmap to Go, it must not escape the lock.
		n := copy(s.buf, b)
		img, err := s.decoder.Decode(s.buf[:n], s.p.Width, s.p.Height)
		return img, func() {}, err
	}
	return nil, func() {}, errEmptyFrame
}

func (s *session) Apply(c prop.Controls) error {
	var errs []error
	cam, camera := s.device.cam, s.device.camera

	if camera.zoom.Max > camera.zoom.Min {
		v := zoomValue(c.Zoom, camera.zoom.Min, camera.zoom.Max)
		if err := cam.SetControl(cidZoomAbsolute, v); err != nil {
			errs = append(errs, fmt.Errorf("zoom: %w", err))
		}
	}
	if camera.info.HasFlashUnit {
		mode := int32(flashLEDModeNone)
		switch {
		case c.Torch:
			mode = flashLEDModeTorch
		case c.Flash == prop.FlashEnabled:
			mode = flashLEDModeFlash
		}
		if err := cam.SetControl(cidFlashLEDMode, mode); err != nil {
			errs = append(errs, fmt.Errorf("flash: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *session) Close() error {
	var err error
	s.once.Do(func() {
		// Let the reader knows that the caller has closed the camera
		s.cancel()
		// Wait until the reader unref the buffer
		s.mu.Lock()
		defer s.mu.Unlock()

		// Note: StopStreaming frees frame buffers even if they are still used in Go code.
		//       Frames are copied out of the mmap'd buffer under the lock above.
		err = s.device.cam.StopStreaming()
	})
	return err
}
