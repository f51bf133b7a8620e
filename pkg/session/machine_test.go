package session

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/driver/audiotest"
	"github.com/pion/cameraview/pkg/driver/videotest"
	"github.com/pion/cameraview/pkg/io/audio"
	"github.com/pion/cameraview/pkg/io/video"
	"github.com/pion/cameraview/pkg/prop"
)

type fakeRecorder struct {
	mu     sync.Mutex
	frames int
	audio  audio.Reader
	closed bool
}

func (r *fakeRecorder) WriteVideo(image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("closed")
	}
	r.frames++
	return nil
}

func (r *fakeRecorder) RecordAudio(a audio.Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio = a
	return nil
}

func (r *fakeRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRecorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *fakeRecorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type recorded struct {
	mu      sync.Mutex
	states  []State
	gens    []uint64
	frames  atomic.Int64
	lastGen atomic.Uint64
}

func (r *recorded) config() Config {
	return Config{
		OpenTimeout:  time.Second,
		CloseTimeout: time.Second,
		OnState: func(s State) {
			r.mu.Lock()
			r.states = append(r.states, s)
			r.mu.Unlock()
		},
		OnFrame: func(gen uint64, _ image.Image, release func()) {
			r.frames.Add(1)
			r.lastGen.Store(gen)
			release()
		},
		OnGeneration: func(gen uint64) {
			r.mu.Lock()
			r.gens = append(r.gens, gen)
			r.mu.Unlock()
		},
	}
}

func (r *recorded) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorded) Generations() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.gens...)
}

func newCamera(cfg videotest.Config) *videotest.Camera {
	if cfg.ID == "" {
		cfg.ID = "cam"
	}
	return videotest.NewCamera(cfg)
}

func TestPreviewLifecycle(t *testing.T) {
	var rec recorded
	m := New(rec.config())
	cam := newCamera(videotest.Config{})

	require.NoError(t, m.Start(context.Background(), Request{Camera: cam}))
	assert.Equal(t, StatePreviewing, m.State())
	assert.Equal(t, Slots{Device: true, Session: true}, m.Slots())

	active := m.Active()
	require.NotNil(t, active)
	assert.Equal(t, 640, active.Format.Width)
	assert.Equal(t, "cam", active.Info.ID)

	assert.Eventually(t, func() bool { return rec.frames.Load() > 0 }, time.Second, time.Millisecond)

	m.Stop()
	assert.Equal(t, StateIdle, m.State())
	assert.True(t, m.Slots().Empty())
	assert.Nil(t, m.Active())
	assert.Equal(t, 0, cam.Sessions())
	assert.Equal(t, 0, cam.OpenDevices())
	assert.Equal(t, []State{StateOpening, StatePreviewing, StateClosing, StateIdle}, rec.States())

	m.Stop()
	assert.Len(t, rec.States(), 4, "stopping an idle machine must not transition")
}

func TestTransform(t *testing.T) {
	var rec recorded
	cfg := rec.config()
	var sizes sync.Map
	cfg.Transform = video.Merge(
		video.Scale(320, 0, nil),
		func(r video.Reader) video.Reader {
			return video.ReaderFunc(func() (image.Image, func(), error) {
				img, release, err := r.Read()
				if err == nil {
					sizes.Store(img.Bounds().Size(), true)
				}
				return img, release, err
			})
		},
	)
	m := New(cfg)
	cam := newCamera(videotest.Config{})

	require.NoError(t, m.Start(context.Background(), Request{Camera: cam}))
	require.Eventually(t, func() bool { return rec.frames.Load() > 2 }, time.Second, time.Millisecond)
	m.Stop()

	var seen []image.Point
	sizes.Range(func(k, _ any) bool {
		seen = append(seen, k.(image.Point))
		return true
	})
	assert.Equal(t, []image.Point{{X: 320, Y: 240}}, seen)
}

func TestStartValidation(t *testing.T) {
	cam := newCamera(videotest.Config{})
	mic := audiotest.NewMicrophone("mic", "Mic")

	m := New(Config{})
	assert.ErrorIs(t, m.Start(context.Background(), Request{}), ErrNoCamera)

	r := &fakeRecorder{}
	err := m.Start(context.Background(), Request{Mode: ModeRecord, Camera: cam, Recorder: r})
	assert.ErrorIs(t, err, ErrNoMicrophone)
	assert.True(t, r.Closed(), "a rejected recorder must be released")

	denied := New(Config{Permission: func(needCamera, needMicrophone bool) bool { return !needMicrophone }})
	require.NoError(t, denied.Start(context.Background(), Request{Camera: cam}))
	denied.Stop()
	err = denied.Start(context.Background(), Request{Mode: ModeRecord, Camera: cam, Microphone: mic, Recorder: &fakeRecorder{}})
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateIdle, denied.State())
	assert.Equal(t, 0, cam.OpenDevices())
}

func TestNoFormats(t *testing.T) {
	var rec recorded
	m := New(rec.config())
	cam := newCamera(videotest.Config{Formats: []prop.Video{}})

	err := m.Start(context.Background(), Request{Camera: cam})
	assert.ErrorIs(t, err, ErrNoFormats)
	assert.Equal(t, StateIdle, m.State())
	assert.True(t, m.Slots().Empty())
	assert.Equal(t, 0, cam.OpenDevices())
	assert.Equal(t, []State{StateOpening, StateError, StateIdle}, rec.States())
}

func TestOpenFailure(t *testing.T) {
	m := New(Config{})
	cam := newCamera(videotest.Config{})
	cam.FailOpen(errors.New("in use by another process"))

	err := m.Start(context.Background(), Request{Camera: cam})
	assert.ErrorIs(t, err, ErrAccess)
	assert.Equal(t, StateIdle, m.State())
	assert.True(t, m.Slots().Empty())

	cam.FailOpen(nil)
	cam.FailConfigure(errors.New("unsupported"))
	err = m.Start(context.Background(), Request{Camera: cam})
	assert.ErrorIs(t, err, ErrAccess)
	assert.Equal(t, 0, cam.OpenDevices())
}

func TestOpenTimeout(t *testing.T) {
	m := New(Config{OpenTimeout: 20 * time.Millisecond})
	cam := newCamera(videotest.Config{})
	cam.HangConfigure(true)

	start := time.Now()
	err := m.Start(context.Background(), Request{Camera: cam})
	assert.ErrorIs(t, err, ErrAccess)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, cam.OpenDevices())
}

func TestStopSupersedesPendingStart(t *testing.T) {
	var rec recorded
	m := New(Config{OpenTimeout: time.Minute, OnState: rec.config().OnState})
	cam := newCamera(videotest.Config{})
	cam.HangConfigure(true)

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Start(context.Background(), Request{Camera: cam})
	}()
	require.Eventually(t, func() bool { return m.State() == StateOpening }, time.Second, time.Millisecond)

	m.Stop()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrAccess)
	case <-time.After(time.Second):
		t.Fatal("Start was not superseded by Stop")
	}
	assert.Equal(t, StateIdle, m.State())
	assert.True(t, m.Slots().Empty())
}

func TestAtMostOneSession(t *testing.T) {
	m := New(Config{})
	cams := []*videotest.Camera{
		newCamera(videotest.Config{ID: "a"}),
		newCamera(videotest.Config{ID: "b"}),
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 2 {
				m.Stop()
				return
			}
			m.Start(context.Background(), Request{Camera: cams[i%2]})
		}(i)
	}
	wg.Wait()

	total := cams[0].Sessions() + cams[1].Sessions()
	assert.LessOrEqual(t, total, 1)
	assert.LessOrEqual(t, cams[0].MaxSessions(), 1)
	assert.LessOrEqual(t, cams[1].MaxSessions(), 1)

	m.Stop()
	assert.True(t, m.Slots().Empty())
	assert.Equal(t, 0, cams[0].Sessions()+cams[1].Sessions())
	assert.Equal(t, 0, cams[0].OpenDevices()+cams[1].OpenDevices())
}

func TestDisconnect(t *testing.T) {
	var rec recorded
	m := New(rec.config())
	cam := newCamera(videotest.Config{Manual: true})

	require.NoError(t, m.Start(context.Background(), Request{Camera: cam}))
	require.True(t, cam.Disconnect())

	require.Eventually(t, func() bool { return m.State() == StateIdle }, time.Second, time.Millisecond)
	assert.True(t, m.Slots().Empty())
	assert.Equal(t, 0, cam.OpenDevices())
	assert.Equal(t, []State{StateOpening, StatePreviewing, StateError, StateIdle}, rec.States())
}

func TestRecording(t *testing.T) {
	m := New(Config{})
	cam := newCamera(videotest.Config{})
	mic := audiotest.NewMicrophone("mic", "Mic")
	r := &fakeRecorder{}

	require.NoError(t, m.Start(context.Background(), Request{
		Mode:       ModeRecord,
		Camera:     cam,
		Microphone: mic,
		Recorder:   r,
	}))
	assert.Equal(t, StateRecording, m.State())
	assert.Equal(t, Slots{Device: true, Session: true, Recorder: true}, m.Slots())
	assert.Equal(t, 1280, m.Active().Format.Width, "record picks the largest 4:3 size")
	assert.Equal(t, 1, mic.Sessions())

	require.Eventually(t, func() bool { return r.Frames() > 0 }, time.Second, time.Millisecond)

	m.Stop()
	assert.True(t, r.Closed())
	assert.True(t, m.Slots().Empty())
	assert.Equal(t, 0, mic.Sessions())
}

func TestRecordingAudioFormat(t *testing.T) {
	m := New(Config{})
	cam := newCamera(videotest.Config{})
	mic := audiotest.NewMicrophone("mic", "Mic")
	r := &fakeRecorder{}

	require.NoError(t, m.Start(context.Background(), Request{
		Mode:       ModeRecord,
		Camera:     cam,
		Microphone: mic,
		Recorder:   r,
		Audio:      prop.Audio{SampleRate: 44100, ChannelCount: 2},
	}))
	defer m.Stop()

	r.mu.Lock()
	a := r.audio
	r.mu.Unlock()
	require.NotNil(t, a)

	chunk, release, err := a.Read()
	require.NoError(t, err)
	release()
	assert.Equal(t, 44100, chunk.SampleRate)
	assert.Equal(t, 2, chunk.ChannelCount)
	assert.Equal(t, 882*2, len(chunk.Samples), "latency keeps the configured default")
}

func TestGenerations(t *testing.T) {
	var rec recorded
	m := New(rec.config())
	first := newCamera(videotest.Config{ID: "first"})
	second := newCamera(videotest.Config{ID: "second"})

	require.NoError(t, m.Start(context.Background(), Request{Camera: first}))
	require.Eventually(t, func() bool { return rec.lastGen.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, m.Start(context.Background(), Request{Camera: second}))
	require.Eventually(t, func() bool { return rec.lastGen.Load() == 3 }, time.Second, time.Millisecond)

	m.Stop()
	assert.Equal(t, []uint64{1, 2, 3, 4}, rec.Generations())
}

func TestSwitch(t *testing.T) {
	m := New(Config{})
	cam := newCamera(videotest.Config{})
	mic := audiotest.NewMicrophone("mic", "Mic")
	r := &fakeRecorder{}

	toPreview := func(a Active) Request {
		return Request{Mode: ModePreview, Camera: a.Camera, Controls: a.Controls}
	}
	assert.ErrorIs(t, m.Switch(context.Background(), ModeRecord, toPreview), ErrNotStarted)

	require.NoError(t, m.Start(context.Background(), Request{
		Mode:       ModeRecord,
		Camera:     cam,
		Microphone: mic,
		Recorder:   r,
	}))
	require.NoError(t, m.Switch(context.Background(), ModeRecord, toPreview))
	defer m.Stop()

	assert.True(t, r.Closed())
	assert.Equal(t, StatePreviewing, m.State())
	assert.Equal(t, ModePreview, m.Active().Mode)
	assert.Equal(t, "cam", m.Active().Info.ID)
	assert.Equal(t, 1, cam.MaxSessions())

	assert.ErrorIs(t, m.Switch(context.Background(), ModeRecord, toPreview), ErrNotStarted)
	assert.Equal(t, StatePreviewing, m.State(), "a mismatched switch leaves the session alone")
}

func TestRecordingMicrophoneFailure(t *testing.T) {
	m := New(Config{})
	cam := newCamera(videotest.Config{})
	mic := audiotest.NewMicrophone("mic", "Mic")
	mic.FailOpen(errors.New("busy"))
	r := &fakeRecorder{}

	err := m.Start(context.Background(), Request{Mode: ModeRecord, Camera: cam, Microphone: mic, Recorder: r})
	assert.ErrorIs(t, err, ErrAccess)
	assert.True(t, r.Closed())
	assert.Equal(t, 0, cam.Sessions())
}

func TestApply(t *testing.T) {
	m := New(Config{})
	cam := newCamera(videotest.Config{MinZoom: 1, MaxZoom: 4, HasFlashUnit: false})

	_, err := m.Apply(prop.Controls{Zoom: 2})
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, m.Start(context.Background(), Request{Camera: cam, Controls: prop.Controls{Zoom: 9, Torch: true}}))
	defer m.Stop()

	applied := cam.Applied()
	require.Len(t, applied, 1)
	assert.Equal(t, prop.Controls{Zoom: 4}, applied[0], "controls are clamped before the session starts")

	got, err := m.Apply(prop.Controls{Zoom: 0.5, Mirrored: true})
	require.NoError(t, err)
	assert.Equal(t, prop.Controls{Zoom: 1, Mirrored: true}, got)
	assert.Equal(t, got, m.Active().Controls)

	cam.FailApply(errors.New("unsupported"))
	_, err = m.Apply(prop.Controls{Zoom: 3})
	assert.Error(t, err)
	assert.Equal(t, StatePreviewing, m.State(), "control failures never end the session")
}

// flakyCamera fails a few reads before delivering frames.
type flakyCamera struct {
	failures int
	reads    atomic.Int64
	closed   chan struct{}
}

func (c *flakyCamera) Info() driver.CameraInfo {
	return driver.CameraInfo{ID: "flaky", MinZoom: 1, MaxZoom: 1}
}

func (c *flakyCamera) Open(context.Context) (driver.Device, error) { return c, nil }

func (c *flakyCamera) Formats() []prop.Video {
	return []prop.Video{{Width: 4, Height: 3}}
}

func (c *flakyCamera) Configure(context.Context, driver.SessionConfig) (driver.Session, error) {
	c.closed = make(chan struct{})
	return c, nil
}

func (c *flakyCamera) Read() (image.Image, func(), error) {
	select {
	case <-c.closed:
		return nil, func() {}, io.EOF
	default:
	}
	if n := c.reads.Add(1); n <= int64(c.failures) {
		return nil, func() {}, errors.New("corrupt frame")
	}
	time.Sleep(time.Millisecond)
	return image.NewGray(image.Rect(0, 0, 4, 3)), func() {}, nil
}

func (c *flakyCamera) Apply(prop.Controls) error { return nil }

func (c *flakyCamera) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func TestTransientReadErrorsAreDropped(t *testing.T) {
	var rec recorded
	m := New(rec.config())
	cam := &flakyCamera{failures: maxFrameErrors - 1}

	require.NoError(t, m.Start(context.Background(), Request{Camera: cam}))
	require.Eventually(t, func() bool { return rec.frames.Load() > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, StatePreviewing, m.State())
	m.Stop()
}

func TestPersistentReadErrorsStopTheSession(t *testing.T) {
	m := New(Config{})
	cam := &flakyCamera{failures: maxFrameErrors}

	require.NoError(t, m.Start(context.Background(), Request{Camera: cam}))
	require.Eventually(t, func() bool { return m.State() == StateIdle }, time.Second, time.Millisecond)
	assert.True(t, m.Slots().Empty())
}
