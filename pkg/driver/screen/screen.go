// Package screen exposes the active displays as cameras.
package screen

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/frame"
	"github.com/pion/cameraview/pkg/prop"
)

const defaultFrameRate = 10

func init() {
	driver.GetManager().Register(NewBackend())
}

// Backend enumerates displays.
type Backend struct {
	numDisplays func() int
	bounds      func(int) image.Rectangle
	capture     func(image.Rectangle) (*image.RGBA, error)
}

// NewBackend creates a backend capturing the host displays.
func NewBackend() *Backend {
	return &Backend{
		numDisplays: screenshot.NumActiveDisplays,
		bounds:      screenshot.GetDisplayBounds,
		capture:     screenshot.CaptureRect,
	}
}

func (b *Backend) Name() string {
	return "screen"
}

func (b *Backend) Cameras() ([]driver.Camera, error) {
	n := b.numDisplays()
	cams := make([]driver.Camera, 0, n)
	for i := 0; i < n; i++ {
		cams = append(cams, &screen{
			backend: b,
			index:   i,
			info: driver.CameraInfo{
				ID:       deviceID(i),
				Name:     fmt.Sprintf("Display %d", i),
				Position: driver.PositionExternal,
				MinZoom:  1,
				MaxZoom:  1,
			},
		})
	}
	return cams, nil
}

func (b *Backend) Microphones() ([]driver.Microphone, error) {
	return nil, nil
}

func deviceID(num int) string {
	return fmt.Sprintf("Screen%d", num)
}

type screen struct {
	backend *Backend
	index   int
	info    driver.CameraInfo
}

func (s *screen) Info() driver.CameraInfo {
	return s.info
}

func (s *screen) Open(ctx context.Context) (driver.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *screen) Formats() []prop.Video {
	resolution := s.backend.bounds(s.index)
	return []prop.Video{{
		Width:       resolution.Dx(),
		Height:      resolution.Dy(),
		FrameRate:   defaultFrameRate,
		FrameFormat: frame.FormatRGBA,
	}}
}

func (s *screen) Configure(ctx context.Context, cfg driver.SessionConfig) (driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rate := cfg.Format.FrameRate
	if rate <= 0 {
		rate = defaultFrameRate
	}
	return &session{
		screen: s,
		tick:   time.NewTicker(time.Duration(float32(time.Second) / rate)),
		doneCh: make(chan struct{}),
	}, nil
}

func (s *screen) Close() error {
	return nil
}

type session struct {
	screen *screen
	tick   *time.Ticker
	doneCh chan struct{}
	once   sync.Once
}

func (s *session) Read() (image.Image, func(), error) {
	select {
	case <-s.doneCh:
		return nil, func() {}, io.EOF
	case <-s.tick.C:
	}

	b := s.screen.backend
	img, err := b.capture(b.bounds(s.screen.index))
	if err != nil {
		return nil, func() {}, err
	}
	return img, func() {}, nil
}

// Apply accepts any controls. Displays have no zoom or flash.
func (s *session) Apply(prop.Controls) error {
	return nil
}

func (s *session) Close() error {
	s.once.Do(func() {
		close(s.doneCh)
		s.tick.Stop()
	})
	return nil
}
