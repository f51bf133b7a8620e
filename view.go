// Package cameraview is a camera control. It enumerates capture devices,
// runs one preview or recording session at a time, delivers the latest
// frame to the host and takes snapshots of it.
//
// Backends register themselves on import:
//
//	import (
//		"github.com/pion/cameraview"
//		_ "github.com/pion/cameraview/pkg/driver/camera"     // V4L2 cameras
//		_ "github.com/pion/cameraview/pkg/driver/microphone" // host microphones
//	)
package cameraview

import (
	"context"
	"errors"
	"image"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/cameraview/internal/dispatch"
	"github.com/pion/cameraview/internal/logging"
	"github.com/pion/cameraview/pkg/barcode"
	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/pipeline"
	"github.com/pion/cameraview/pkg/prop"
	"github.com/pion/cameraview/pkg/record"
	"github.com/pion/cameraview/pkg/session"
)

var logger = logging.NewLogger("cameraview")

var (
	ErrNotStarted         = session.ErrNotStarted
	ErrSnapshotInProgress = errors.New("snapshot already in progress")
	ErrNoFrame            = errors.New("no frame delivered yet")
)

// View is a camera control. All methods are safe for concurrent use.
type View struct {
	opts       Options
	machine    *session.Machine
	pipeline   *pipeline.Pipeline
	dispatcher Dispatcher
	divider    *barcode.Divider

	regMu       sync.RWMutex
	inventory   driver.Inventory
	initialized bool

	controlsMu sync.Mutex
	controls   prop.Controls

	snapping atomic.Bool
	taskMu   sync.Mutex
	tasks    sync.WaitGroup
	noTasks  bool

	lastMu sync.Mutex
	last   []byte

	disposed atomic.Bool
	stopTick chan struct{}
	tickDone chan struct{}
}

// New creates a View and enumerates the devices once. Enumeration failures
// leave the registry uninitialized but never fail construction.
func New(opts ...Option) *View {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.dispatcher == nil {
		o.dispatcher = dispatch.NewLoop()
	}
	if o.ticker == nil {
		o.ticker = wallTicker{time.NewTicker(defaultTick)}
	}

	v := &View{
		opts:       o,
		dispatcher: o.dispatcher,
		divider:    barcode.NewDivider(o.barcodeDivider),
		stopTick:   make(chan struct{}),
		tickDone:   make(chan struct{}),
	}
	v.pipeline = pipeline.New(v.deliver)
	v.machine = session.New(session.Config{
		OpenTimeout: o.openTimeout,
		Preview:     o.preview,
		Permission:  o.permission,
		Transform:   o.transform,
		OnFrame: func(gen uint64, img image.Image, release func()) {
			v.pipeline.Put(gen, img, release)
		},
		OnGeneration: v.beginGeneration,
		OnState:      v.stateChanged,
	})

	v.Enumerate()
	go v.schedule()
	return v
}

// Enumerate queries every backend and replaces the device lists. When
// enumeration fails the lists are replaced with empty ones; a registry that
// was never enumerated successfully stays uninitialized.
func (v *View) Enumerate() ([]driver.CameraInfo, []driver.MicrophoneInfo) {
	inv, err := v.opts.manager.Enumerate()
	if err != nil {
		logger.Warnf("device enumeration failed: %v", err)
		inv = driver.Inventory{}
	}

	v.regMu.Lock()
	v.inventory = inv
	v.initialized = v.initialized || err == nil
	initialized := v.initialized
	v.regMu.Unlock()

	if !initialized {
		return nil, nil
	}

	cameras, microphones := describe(inv)
	logger.Infof("found %d cameras and %d microphones", len(cameras), len(microphones))
	if cb := v.opts.handler.DevicesRefreshed; cb != nil {
		cams, mics := slices.Clone(cameras), slices.Clone(microphones)
		v.post(func() { cb(cams, mics) })
	}
	return cameras, microphones
}

func describe(inv driver.Inventory) ([]driver.CameraInfo, []driver.MicrophoneInfo) {
	cameras := make([]driver.CameraInfo, len(inv.Cameras))
	for i, c := range inv.Cameras {
		cameras[i] = c.Info()
	}
	microphones := make([]driver.MicrophoneInfo, len(inv.Microphones))
	for i, m := range inv.Microphones {
		microphones[i] = m.Info()
	}
	return cameras, microphones
}

// Cameras returns the cameras found by the last enumeration.
func (v *View) Cameras() []driver.CameraInfo {
	v.regMu.RLock()
	defer v.regMu.RUnlock()
	cameras, _ := describe(v.inventory)
	return cameras
}

// Microphones returns the microphones found by the last enumeration.
func (v *View) Microphones() []driver.MicrophoneInfo {
	v.regMu.RLock()
	defer v.regMu.RUnlock()
	_, microphones := describe(v.inventory)
	return microphones
}

func (v *View) camera(id string) driver.Camera {
	v.regMu.RLock()
	defer v.regMu.RUnlock()
	return v.inventory.Camera(driver.FilterID(id))
}

func (v *View) microphone(id string) driver.Microphone {
	v.regMu.RLock()
	defer v.regMu.RUnlock()
	return v.inventory.Microphone(id)
}

func (v *View) registryResult() Result {
	v.regMu.RLock()
	defer v.regMu.RUnlock()
	if !v.initialized || v.disposed.Load() {
		return NotInitiated
	}
	return Success
}

// State returns the state of the capture session.
func (v *View) State() session.State {
	return v.machine.State()
}

// StartPreview stops the current session, if any, and starts previewing
// cameraID. It returns once the session is live or has failed.
func (v *View) StartPreview(ctx context.Context, cameraID string) Result {
	if v.disposed.Load() {
		return NotInitiated
	}
	return v.startPreview(ctx, v.camera(cameraID))
}

func (v *View) startPreview(ctx context.Context, cam driver.Camera) Result {
	err := v.machine.Start(ctx, session.Request{
		Mode:     session.ModePreview,
		Camera:   cam,
		Controls: v.Controls(),
	})
	if err != nil {
		logger.Warnf("failed to start preview: %v", err)
	}
	return resultOf(err)
}

// StartRecording stops the current session, if any, and records cameraID
// and micID into path. The audio goes to record.AudioPath(path). Partial
// output files are removed when the session fails to start.
func (v *View) StartRecording(ctx context.Context, cameraID, micID, path string) Result {
	if v.disposed.Load() {
		return NotInitiated
	}
	cam, mic := v.camera(cameraID), v.microphone(micID)

	var (
		rec         session.Recorder
		audioFormat prop.Audio
	)
	if cam != nil && mic != nil {
		params := v.opts.record
		params.Path = path
		params.Rotation = v.rotation(cam.Info())
		r, err := record.New(params)
		if err != nil {
			logger.Errorf("failed to create recorder: %v", err)
			v.Stop()
			return AccessError
		}
		rec = r
		p := r.Params()
		audioFormat = prop.Audio{SampleRate: p.SampleRate, ChannelCount: p.ChannelCount}
	}

	err := v.machine.Start(ctx, session.Request{
		Mode:       session.ModeRecord,
		Camera:     cam,
		Microphone: mic,
		Recorder:   rec,
		Controls:   v.Controls(),
		Audio:      audioFormat,
	})
	if err != nil {
		logger.Warnf("failed to start recording: %v", err)
		if rec != nil {
			removeOutputs(path)
		}
	}
	return resultOf(err)
}

func removeOutputs(path string) {
	for _, p := range []string{path, record.AudioPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("failed to remove %s: %v", p, err)
		}
	}
}

// StopRecording ends the recording session and starts previewing the same
// camera in one step. It does nothing when no recording is running.
func (v *View) StopRecording(ctx context.Context) Result {
	if v.disposed.Load() {
		return NotInitiated
	}
	controls := v.Controls()
	err := v.machine.Switch(ctx, session.ModeRecord, func(a session.Active) session.Request {
		return session.Request{
			Mode:     session.ModePreview,
			Camera:   a.Camera,
			Controls: controls,
		}
	})
	if errors.Is(err, session.ErrNotStarted) {
		return v.registryResult()
	}
	if err != nil {
		logger.Warnf("failed to restart preview: %v", err)
	}
	return resultOf(err)
}

// Stop releases the session. It returns NotInitiated when the registry was
// never initialized and Success otherwise.
func (v *View) Stop() Result {
	v.machine.Stop()
	return v.registryResult()
}

// Dispose stops the session and releases the surface and the dispatcher.
// The View must not be used afterwards.
func (v *View) Dispose() {
	if !v.disposed.CompareAndSwap(false, true) {
		return
	}

	// Stopping ends the generation, so frames still being delivered are
	// dropped; no new deliveries start once the pump is gone.
	v.machine.Stop()
	close(v.stopTick)
	<-v.tickDone
	v.pipeline.Wait()

	v.taskMu.Lock()
	v.noTasks = true
	v.taskMu.Unlock()
	v.tasks.Wait()
	v.pipeline.Reset()

	if s := v.opts.surface; s != nil {
		if err := s.Close(); err != nil {
			logger.Warnf("failed to close surface: %v", err)
		}
	}
	v.dispatcher.Close()
}

// beginGeneration runs with the machine lock held whenever a session
// begins or ends.
func (v *View) beginGeneration(gen uint64) {
	v.pipeline.Begin(gen)
	v.divider.Reset()
}

// spawn runs f on its own goroutine unless the View is being disposed.
func (v *View) spawn(f func()) bool {
	v.taskMu.Lock()
	defer v.taskMu.Unlock()
	if v.noTasks {
		return false
	}
	v.tasks.Add(1)
	go func() {
		defer v.tasks.Done()
		f()
	}()
	return true
}

func (v *View) stateChanged(s session.State) {
	if cb := v.opts.handler.StateChanged; cb != nil {
		v.post(func() { cb(s) })
	}
}
