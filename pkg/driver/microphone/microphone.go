//go:build !nomicrophone

// Package microphone provides the host microphones through miniaudio.
package microphone

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/pion/cameraview/internal/logging"
	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/io/audio"
	"github.com/pion/cameraview/pkg/prop"
)

const chunkBuffer = 4

var logger = logging.NewLogger("cameraview/microphone")

func init() {
	driver.GetManager().Register(&Backend{})
}

// Backend enumerates capture devices of the host audio stack. The miniaudio
// context is created on first use and lives for the rest of the process.
type Backend struct {
	once sync.Once
	ctx  *malgo.AllocatedContext
	err  error
}

func (b *Backend) context() (*malgo.AllocatedContext, error) {
	b.once.Do(func() {
		b.ctx, b.err = malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
			logger.Debugf("%v", message)
		})
	})
	return b.ctx, b.err
}

func (b *Backend) Name() string {
	return "malgo"
}

func (b *Backend) Cameras() ([]driver.Camera, error) {
	return nil, nil
}

func (b *Backend) Microphones() ([]driver.Microphone, error) {
	ctx, err := b.context()
	if err != nil {
		return nil, err
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, err
	}

	mics := make([]driver.Microphone, 0, len(infos))
	for _, info := range infos {
		mics = append(mics, &microphone{
			ctx:    ctx,
			device: info,
			info: driver.MicrophoneInfo{
				ID:   info.ID.String(),
				Name: info.Name(),
			},
		})
	}
	return mics, nil
}

type microphone struct {
	ctx    *malgo.AllocatedContext
	device malgo.DeviceInfo
	info   driver.MicrophoneInfo
}

func (m *microphone) Info() driver.MicrophoneInfo {
	return m.info
}

func (m *microphone) Open(ctx context.Context, p prop.Audio) (driver.AudioSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.SampleRate == 0 {
		p.SampleRate = 48000
	}
	if p.ChannelCount == 0 {
		p.ChannelCount = 1
	}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.Capture.DeviceID = m.device.ID.Pointer()
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = uint32(p.ChannelCount)
	config.SampleRate = uint32(p.SampleRate)
	config.PerformanceProfile = malgo.LowLatency

	s := &session{
		p:      p,
		chunks: make(chan []int16, chunkBuffer),
		closed: make(chan struct{}),
	}
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			// miniaudio only uses the host endian
			samples := make([]int16, len(input)/2)
			for i := range samples {
				samples[i] = int16(binary.NativeEndian.Uint16(input[2*i:]))
			}
			select {
			case s.chunks <- samples:
			default:
				// The reader is behind, drop rather than block the audio thread.
			}
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, config, callbacks)
	if err != nil {
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, err
	}
	s.device = device
	return s, nil
}

type session struct {
	p      prop.Audio
	device *malgo.Device
	chunks chan []int16
	closed chan struct{}
	once   sync.Once
}

func (s *session) Read() (audio.Chunk, func(), error) {
	select {
	case <-s.closed:
		return audio.Chunk{}, func() {}, io.EOF
	case samples := <-s.chunks:
		return audio.Chunk{
			Samples:      samples,
			SampleRate:   s.p.SampleRate,
			ChannelCount: s.p.ChannelCount,
		}, func() {}, nil
	}
}

func (s *session) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.device.Stop()
		s.device.Uninit()
	})
	return err
}
