// Package videotest provides a dummy camera backend for testing. Its cameras
// produce a color bar test pattern and can be told to fail in the ways real
// devices do.
package videotest

import (
	"context"
	"image"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/driver/availability"
	"github.com/pion/cameraview/pkg/frame"
	"github.com/pion/cameraview/pkg/prop"
)

func init() {
	driver.GetManager().Register(NewBackend("videotest", NewCamera(Config{
		ID:   "videotest",
		Name: "VideoTest",
	})))
}

// DefaultFormats are used when Config.Formats is nil.
func DefaultFormats() []prop.Video {
	return []prop.Video{
		{Width: 640, Height: 480, FrameRate: 30, FrameFormat: frame.FormatYUY2},
		{Width: 1280, Height: 720, FrameRate: 30, FrameFormat: frame.FormatYUY2},
		{Width: 1280, Height: 960, FrameRate: 15, FrameFormat: frame.FormatYUY2},
	}
}

// Config describes a dummy camera.
type Config struct {
	ID                string
	Name              string
	Position          driver.Position
	HasFlashUnit      bool
	MinZoom, MaxZoom  float64
	SensorOrientation int
	// Formats is the supported format list. nil means DefaultFormats, an
	// empty non-nil slice means the camera has none.
	Formats []prop.Video
	// Manual makes sessions wait for Push instead of ticking at the frame rate.
	Manual bool
}

// Backend is a driver.Backend made of dummy cameras.
type Backend struct {
	name    string
	cameras []*Camera
}

// NewBackend creates a backend exposing cameras.
func NewBackend(name string, cameras ...*Camera) *Backend {
	return &Backend{name: name, cameras: cameras}
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Cameras() ([]driver.Camera, error) {
	cams := make([]driver.Camera, len(b.cameras))
	for i, c := range b.cameras {
		cams[i] = c
	}
	return cams, nil
}

func (b *Backend) Microphones() ([]driver.Microphone, error) {
	return nil, nil
}

// Camera is a dummy camera. It is safe for concurrent use.
type Camera struct {
	info    driver.CameraInfo
	formats []prop.Video
	manual  bool

	mu            sync.Mutex
	openErr       error
	configureErr  error
	applyErr      error
	hangConfigure bool
	devices       int
	sessions      int
	maxSessions   int
	applied       []prop.Controls
	active        *session
}

// NewCamera creates a dummy camera from cfg.
func NewCamera(cfg Config) *Camera {
	formats := cfg.Formats
	if formats == nil {
		formats = DefaultFormats()
	}
	if cfg.Position == "" {
		cfg.Position = driver.PositionExternal
	}
	if cfg.MaxZoom == 0 {
		cfg.MinZoom, cfg.MaxZoom = 1, 1
	}

	return &Camera{
		info: driver.CameraInfo{
			ID:                cfg.ID,
			Name:              cfg.Name,
			Position:          cfg.Position,
			HasFlashUnit:      cfg.HasFlashUnit,
			MinZoom:           cfg.MinZoom,
			MaxZoom:           cfg.MaxZoom,
			SensorOrientation: cfg.SensorOrientation,
		},
		formats: formats,
		manual:  cfg.Manual,
	}
}

func (c *Camera) Info() driver.CameraInfo {
	return c.info
}

// FailOpen makes the following Open calls fail with err. nil restores normal behavior.
func (c *Camera) FailOpen(err error) {
	c.mu.Lock()
	c.openErr = err
	c.mu.Unlock()
}

// FailConfigure makes the following Configure calls fail with err.
func (c *Camera) FailConfigure(err error) {
	c.mu.Lock()
	c.configureErr = err
	c.mu.Unlock()
}

// FailApply makes Apply on sessions fail with err.
func (c *Camera) FailApply(err error) {
	c.mu.Lock()
	c.applyErr = err
	c.mu.Unlock()
}

// HangConfigure makes Configure block until its context is done, like a
// device that never confirms the session.
func (c *Camera) HangConfigure(hang bool) {
	c.mu.Lock()
	c.hangConfigure = hang
	c.mu.Unlock()
}

// Disconnect makes the active session fail its next read, as if the device
// was unplugged. It reports whether a session was active.
func (c *Camera) Disconnect() bool {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return false
	}
	s.disconnectOnce.Do(func() { close(s.disconnected) })
	return true
}

// Push hands one frame to the active session of a manual camera. It blocks
// until the frame is read and reports false if there is no active session
// or ctx is done first.
func (c *Camera) Push(ctx context.Context) bool {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return false
	}
	select {
	case s.push <- struct{}{}:
		return true
	case <-s.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

// OpenDevices returns the number of device handles currently open.
func (c *Camera) OpenDevices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices
}

// Sessions returns the number of capture sessions currently open.
func (c *Camera) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

// MaxSessions returns the highest number of sessions ever open at once.
func (c *Camera) MaxSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSessions
}

// Applied returns every control set pushed to a session, oldest first.
func (c *Camera) Applied() []prop.Controls {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]prop.Controls(nil), c.applied...)
}

// Open opens a device handle. Only one handle may be open at a time.
func (c *Camera) Open(ctx context.Context) (driver.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.openErr != nil {
		return nil, c.openErr
	}
	if c.devices > 0 {
		return nil, availability.ErrBusy
	}
	c.devices++
	return &device{camera: c}, nil
}

type device struct {
	camera *Camera
	once   sync.Once
}

func (d *device) Formats() []prop.Video {
	return append([]prop.Video(nil), d.camera.formats...)
}

func (d *device) Configure(ctx context.Context, cfg driver.SessionConfig) (driver.Session, error) {
	c := d.camera

	c.mu.Lock()
	hang, configureErr := c.hangConfigure, c.configureErr
	c.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if configureErr != nil {
		return nil, configureErr
	}

	p := cfg.Format
	if p.FrameRate == 0 {
		p.FrameRate = 30
	}
	s := &session{
		camera:       c,
		p:            p,
		bars:         newColorBars(p.Width, p.Height),
		random:       rand.New(rand.NewSource(0)),
		closed:       make(chan struct{}),
		disconnected: make(chan struct{}),
		push:         make(chan struct{}),
	}
	if !c.manual {
		s.tick = time.NewTicker(time.Duration(float32(time.Second) / p.FrameRate))
	}

	c.mu.Lock()
	c.sessions++
	if c.sessions > c.maxSessions {
		c.maxSessions = c.sessions
	}
	c.applied = append(c.applied, cfg.Controls)
	c.active = s
	c.mu.Unlock()

	return s, nil
}

func (d *device) Close() error {
	d.once.Do(func() {
		d.camera.mu.Lock()
		d.camera.devices--
		d.camera.mu.Unlock()
	})
	return nil
}

type session struct {
	camera *Camera
	p      prop.Video
	bars   *colorBars
	random *rand.Rand
	tick   *time.Ticker

	closed         chan struct{}
	closeOnce      sync.Once
	disconnected   chan struct{}
	disconnectOnce sync.Once
	push           chan struct{}
}

func (s *session) Read() (image.Image, func(), error) {
	var tick <-chan time.Time
	if s.tick != nil {
		tick = s.tick.C
	}

	select {
	case <-s.closed:
		return nil, func() {}, io.EOF
	case <-s.disconnected:
		return nil, func() {}, availability.ErrDisconnected
	case <-tick:
	case <-s.push:
	}
	return s.bars.next(s.random), func() {}, nil
}

func (s *session) Apply(c prop.Controls) error {
	s.camera.mu.Lock()
	defer s.camera.mu.Unlock()

	if s.camera.applyErr != nil {
		return s.camera.applyErr
	}
	s.camera.applied = append(s.camera.applied, c)
	return nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if s.tick != nil {
			s.tick.Stop()
		}
		s.camera.mu.Lock()
		s.camera.sessions--
		if s.camera.active == s {
			s.camera.active = nil
		}
		s.camera.mu.Unlock()
	})
	return nil
}

// colorBars is the SMPTE like pattern with a noise block in the lower right.
type colorBars struct {
	width, height int
	y, cb, cr     []byte
	barEnd        int
	gradationEnd  int
}

func newColorBars(width, height int) *colorBars {
	colors := [][3]byte{
		{235, 128, 128},
		{210, 16, 146},
		{170, 166, 16},
		{145, 54, 34},
		{107, 202, 222},
		{82, 90, 240},
		{41, 240, 110},
	}

	yi := width * height
	ci := yi / 2
	b := &colorBars{
		width:        width,
		height:       height,
		y:            make([]byte, yi),
		cb:           make([]byte, ci),
		cr:           make([]byte, ci),
		barEnd:       height * 3 / 4,
		gradationEnd: width * 5 / 7,
	}
	for y := 0; y < b.barEnd; y++ {
		yi := width * y
		ci := width * y / 2
		for x := 0; x < width; x++ {
			c := x * 7 / width
			b.y[yi+x] = uint8(uint16(colors[c][0]) * 75 / 100)
			b.cb[ci+x/2] = colors[c][1]
			b.cr[ci+x/2] = colors[c][2]
		}
	}
	for y := b.barEnd; y < height; y++ {
		yi := width * y
		ci := width * y / 2
		for x := 0; x < b.gradationEnd; x++ {
			b.y[yi+x] = uint8(x * 255 / b.gradationEnd)
			b.cb[ci+x/2] = 128
			b.cr[ci+x/2] = 128
		}
		for x := b.gradationEnd; x < width; x++ {
			b.cb[ci+x/2] = 128
			b.cr[ci+x/2] = 128
		}
	}
	return b
}

// next returns a fresh frame. Frames never share buffers, consumers may
// keep them.
func (b *colorBars) next(random *rand.Rand) image.Image {
	yy := append([]byte(nil), b.y...)
	cb := append([]byte(nil), b.cb...)
	cr := append([]byte(nil), b.cr...)
	for y := b.barEnd; y < b.height; y++ {
		yi := b.width * y
		for x := b.gradationEnd; x < b.width; x++ {
			yy[yi+x] = uint8(random.Int31n(2) * 255)
		}
	}
	return &image.YCbCr{
		Y:              yy,
		YStride:        b.width,
		Cb:             cb,
		Cr:             cr,
		CStride:        b.width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio422,
		Rect:           image.Rect(0, 0, b.width, b.height),
	}
}
