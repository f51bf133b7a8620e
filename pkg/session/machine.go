// Package session owns the lifecycle of one capture session: the opened
// device, the configured capture session, the optional recorder and the
// goroutine pumping frames out of the device.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/pion/cameraview/internal/logging"
	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/driver/availability"
	"github.com/pion/cameraview/pkg/io/audio"
	"github.com/pion/cameraview/pkg/io/video"
	"github.com/pion/cameraview/pkg/prop"
)

const (
	defaultOpenTimeout  = 5 * time.Second
	defaultCloseTimeout = 2 * time.Second
	// maxFrameErrors consecutive read failures are treated as a disconnect.
	maxFrameErrors = 30
)

var logger = logging.NewLogger("cameraview/session")

var (
	ErrNoCamera         = errors.New("no camera selected")
	ErrNoMicrophone     = errors.New("no microphone selected")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAccess           = errors.New("failed to access device")
	ErrNoFormats        = errors.New("no video formats available")
	ErrNotStarted       = errors.New("no active session")
)

// Mode is what a session is started for.
type Mode int

const (
	ModePreview Mode = iota
	ModeRecord
)

func (m Mode) purpose() driver.Purpose {
	if m == ModeRecord {
		return driver.PurposeRecord
	}
	return driver.PurposePreview
}

// Recorder consumes the frames and audio of a recording session. The machine
// takes ownership of it when Start is called and closes it on Stop.
type Recorder interface {
	WriteVideo(img image.Image) error
	// RecordAudio starts consuming r. It returns once the recorder holds r.
	RecordAudio(r audio.Reader) error
	Close() error
}

// Request describes the session to start.
type Request struct {
	Mode       Mode
	Camera     driver.Camera
	Microphone driver.Microphone
	Recorder   Recorder
	// Controls is the desired control state. It is clamped to the camera
	// limits before use.
	Controls prop.Controls
	// Audio overrides the non-zero fields of Config.Audio for the microphone
	// of a recording session.
	Audio prop.Audio
}

// Config configures a Machine.
type Config struct {
	// OpenTimeout bounds opening and configuring the device.
	OpenTimeout time.Duration
	// CloseTimeout bounds the wait for the frame pump to exit.
	CloseTimeout time.Duration
	// Preview is the format preview sessions aim for.
	Preview prop.Video
	// Audio is what microphones are opened with.
	Audio prop.Audio
	// Transform is applied to the frames of every session before they reach
	// the recorder and OnFrame.
	Transform video.TransformFunc
	// Permission is asked before any device is opened. nil grants everything.
	Permission func(needCamera, needMicrophone bool) bool
	// OnFrame receives every frame read from the device with the generation
	// of the session that read it. It must not block and owns release.
	OnFrame func(gen uint64, img image.Image, release func())
	// OnGeneration is called with the machine lock held whenever a session
	// begins or ends, before the pump of a new session starts. Frames of any
	// other generation are stale from then on.
	OnGeneration func(gen uint64)
	// OnState is called on every transition with the machine lock held.
	OnState func(State)
}

// Active describes the live session.
type Active struct {
	Camera   driver.Camera
	Info     driver.CameraInfo
	Format   prop.Video
	Mode     Mode
	Controls prop.Controls
}

// Slots reports which resources the machine holds.
type Slots struct {
	Device, Session, Recorder bool
}

// Empty reports whether no resource is held.
func (s Slots) Empty() bool {
	return !s.Device && !s.Session && !s.Recorder
}

// Machine is the capture session state machine. At most one capture session
// exists per Machine. All methods are safe for concurrent use.
type Machine struct {
	cfg Config

	// mu serializes Start, Stop and control changes.
	mu       sync.Mutex
	state    State
	gen      uint64
	device   driver.Device
	session  driver.Session
	recorder Recorder
	mic      driver.AudioSession
	pumpDone chan struct{}
	active   *Active

	// stateMu guards reads of state and active from outside mu.
	stateMu    sync.RWMutex
	stateCopy  State
	activeCopy *Active

	pendingMu     sync.Mutex
	cancelPending context.CancelFunc
}

// New creates an idle machine.
func New(cfg Config) *Machine {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaultOpenTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	if cfg.Preview == (prop.Video{}) {
		cfg.Preview = DefaultPreview
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio = prop.Audio{SampleRate: 48000, ChannelCount: 1, Latency: 20 * time.Millisecond}
	}
	if cfg.OnFrame == nil {
		cfg.OnFrame = func(_ uint64, _ image.Image, release func()) { release() }
	}

	return &Machine{
		cfg:       cfg,
		state:     StateIdle,
		stateCopy: StateIdle,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.stateCopy
}

// Active returns the live session, or nil when there is none.
func (m *Machine) Active() *Active {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.activeCopy == nil {
		return nil
	}
	a := *m.activeCopy
	return &a
}

// Slots reports which resources are currently held.
func (m *Machine) Slots() Slots {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Slots{
		Device:   m.device != nil,
		Session:  m.session != nil,
		Recorder: m.recorder != nil,
	}
}

// Start stops any current session, then opens req.Camera and configures a
// session for req.Mode. It returns once the session is live or has failed;
// on failure the machine is idle again with every slot empty.
func (m *Machine) Start(ctx context.Context, req Request) error {
	m.supersede()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, req)
}

// Switch replaces a live session of mode from with the request next builds
// from it, in one step: no other Start or Stop runs in between. It returns
// ErrNotStarted when no session of that mode is live. Unlike Start it does
// not cancel a pending open.
func (m *Machine) Switch(ctx context.Context, from Mode, next func(Active) Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil || m.active.Mode != from || !m.state.Live() {
		return ErrNotStarted
	}
	return m.startLocked(ctx, next(*m.active))
}

func (m *Machine) startLocked(ctx context.Context, req Request) error {
	m.stopLocked()

	if err := m.validate(req); err != nil {
		if req.Recorder != nil {
			req.Recorder.Close()
		}
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, m.cfg.OpenTimeout)
	defer cancel()
	m.setPending(cancel)
	defer m.setPending(nil)

	if err := m.transition(StateOpening, nil); err != nil {
		return err
	}
	m.nextGen()
	m.recorder = req.Recorder

	info := req.Camera.Info()
	logger.Infof("opening %s (%s) for %s", info.Name, info.ID, req.Mode.purpose())

	device, err := await(openCtx, func() (driver.Device, error) {
		return req.Camera.Open(openCtx)
	}, func(d driver.Device) { d.Close() })
	if err != nil {
		return m.failLocked(fmt.Errorf("%w: open %s: %v", ErrAccess, info.ID, err))
	}
	m.device = device

	format, err := Negotiate(device.Formats(), req.Mode, m.cfg.Preview)
	if err != nil {
		return m.failLocked(err)
	}

	controls := req.Controls.Clamp(info.Limits())
	sess, err := await(openCtx, func() (driver.Session, error) {
		return device.Configure(openCtx, driver.SessionConfig{
			Format:   format,
			Controls: controls,
			Purpose:  req.Mode.purpose(),
		})
	}, func(s driver.Session) { s.Close() })
	if err != nil {
		return m.failLocked(fmt.Errorf("%w: configure %s: %v", ErrAccess, format, err))
	}
	m.session = sess

	if req.Mode == ModeRecord {
		mic, err := await(openCtx, func() (driver.AudioSession, error) {
			return req.Microphone.Open(openCtx, m.audioFormat(req.Audio))
		}, func(s driver.AudioSession) { s.Close() })
		if err != nil {
			return m.failLocked(fmt.Errorf("%w: open microphone %s: %v", ErrAccess, req.Microphone.Info().ID, err))
		}
		m.mic = mic
		if err := m.recorder.RecordAudio(mic); err != nil {
			return m.failLocked(fmt.Errorf("%w: record audio: %v", ErrAccess, err))
		}
	}

	next := StatePreviewing
	if req.Mode == ModeRecord {
		next = StateRecording
	}
	active := &Active{
		Camera:   req.Camera,
		Info:     info,
		Format:   format,
		Mode:     req.Mode,
		Controls: controls,
	}
	if err := m.transition(next, active); err != nil {
		return m.failLocked(err)
	}

	var frames video.Reader = sess
	if m.cfg.Transform != nil {
		frames = m.cfg.Transform(sess)
	}
	m.pumpDone = make(chan struct{})
	go m.pump(m.gen, frames, m.recorder, m.pumpDone)

	logger.Infof("%s %s at %s", next, info.Name, format)
	return nil
}

func (m *Machine) nextGen() {
	m.gen++
	if m.cfg.OnGeneration != nil {
		m.cfg.OnGeneration(m.gen)
	}
}

func (m *Machine) audioFormat(override prop.Audio) prop.Audio {
	format := m.cfg.Audio
	if override.SampleRate > 0 {
		format.SampleRate = override.SampleRate
	}
	if override.ChannelCount > 0 {
		format.ChannelCount = override.ChannelCount
	}
	if override.Latency > 0 {
		format.Latency = override.Latency
	}
	return format
}

func (m *Machine) validate(req Request) error {
	if req.Camera == nil {
		return ErrNoCamera
	}
	record := req.Mode == ModeRecord
	if record && req.Microphone == nil {
		return ErrNoMicrophone
	}
	if record && req.Recorder == nil {
		return fmt.Errorf("%w: no recorder", ErrAccess)
	}
	if m.cfg.Permission != nil && !m.cfg.Permission(true, record) {
		return ErrPermissionDenied
	}
	return nil
}

// Stop releases the session. It supersedes a Start that is still opening
// the device. Stopping an idle machine does nothing.
func (m *Machine) Stop() {
	m.supersede()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

// Apply pushes c, clamped to the camera limits, to the live session and
// returns the clamped value.
func (m *Machine) Apply(c prop.Controls) (prop.Controls, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.active == nil {
		return prop.Controls{}, ErrNotStarted
	}

	clamped := c.Clamp(m.active.Info.Limits())
	if err := m.session.Apply(clamped); err != nil {
		return clamped, err
	}

	active := *m.active
	active.Controls = clamped
	m.active = &active
	m.publish(m.state, m.active)
	return clamped, nil
}

func (m *Machine) stopLocked() {
	if m.state == StateIdle {
		return
	}
	// Failures and frames of the pump of this session are stale from now on.
	m.nextGen()

	if err := m.transition(StateClosing, nil); err != nil {
		logger.Errorf("stop: %v", err)
	}
	m.releaseLocked()
	if err := m.transition(StateIdle, nil); err != nil {
		logger.Errorf("stop: %v", err)
	}
}

// failLocked moves through StateError to StateIdle, releasing everything.
func (m *Machine) failLocked(err error) error {
	logger.Errorf("session failed: %v", err)
	m.nextGen()

	if terr := m.transition(StateError, nil); terr != nil {
		logger.Errorf("fail: %v", terr)
	}
	m.releaseLocked()
	if terr := m.transition(StateIdle, nil); terr != nil {
		logger.Errorf("fail: %v", terr)
	}
	return err
}

// fail is called by the pump of session gen when the device went away.
func (m *Machine) fail(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || !m.state.Live() {
		return
	}
	m.failLocked(fmt.Errorf("%w: %v", ErrAccess, err))
}

// releaseLocked releases, in order, recorder, session, device and pump.
// Each failure is logged and does not stop the rest.
func (m *Machine) releaseLocked() {
	if m.mic != nil {
		if err := m.mic.Close(); err != nil {
			logger.Warnf("failed to close microphone: %v", err)
		}
		m.mic = nil
	}
	if m.recorder != nil {
		if err := m.recorder.Close(); err != nil {
			logger.Warnf("failed to close recorder: %v", err)
		}
		m.recorder = nil
	}
	if m.session != nil {
		if err := m.session.Close(); err != nil {
			logger.Warnf("failed to close session: %v", err)
		}
		m.session = nil
	}
	if m.device != nil {
		if err := m.device.Close(); err != nil {
			logger.Warnf("failed to close device: %v", err)
		}
		m.device = nil
	}
	if m.pumpDone != nil {
		select {
		case <-m.pumpDone:
		case <-time.After(m.cfg.CloseTimeout):
			logger.Warnf("frame pump did not exit within %v", m.cfg.CloseTimeout)
		}
		m.pumpDone = nil
	}
}

func (m *Machine) transition(next State, active *Active) error {
	if err := m.state.Update(next, func() error { return nil }); err != nil {
		return err
	}
	if next.Live() {
		m.active = active
	} else {
		m.active = nil
	}
	m.publish(next, m.active)
	if m.cfg.OnState != nil {
		m.cfg.OnState(next)
	}
	return nil
}

func (m *Machine) publish(s State, a *Active) {
	m.stateMu.Lock()
	m.stateCopy = s
	m.activeCopy = a
	m.stateMu.Unlock()
}

func (m *Machine) setPending(cancel context.CancelFunc) {
	m.pendingMu.Lock()
	m.cancelPending = cancel
	m.pendingMu.Unlock()
}

// supersede cancels a Start that is waiting on the device.
func (m *Machine) supersede() {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if m.cancelPending != nil {
		m.cancelPending()
	}
}

func (m *Machine) pump(gen uint64, r video.Reader, rec Recorder, done chan struct{}) {
	defer close(done)

	var failures int
	for {
		img, release, err := r.Read()
		switch {
		case errors.Is(err, io.EOF):
			return
		case err != nil && (availability.IsLost(err) || failures+1 >= maxFrameErrors):
			logger.Warnf("device lost: %v", err)
			go m.fail(gen, err)
			return
		case err != nil:
			failures++
			logger.Debugf("dropped frame: %v", err)
			continue
		}
		failures = 0

		if rec != nil {
			if err := rec.WriteVideo(img); err != nil {
				logger.Debugf("recorder rejected frame: %v", err)
			}
		}
		m.cfg.OnFrame(gen, img, release)
	}
}

// await runs f and waits for it or ctx. When ctx wins, a late successful
// result is handed to cleanup.
func await[T any](ctx context.Context, f func() (T, error), cleanup func(T)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := f()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				cleanup(r.v)
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}
