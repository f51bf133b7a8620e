// Package audiotest provides a dummy microphone backend for testing.
package audiotest

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/pion/cameraview/pkg/driver"
	"github.com/pion/cameraview/pkg/io/audio"
	"github.com/pion/cameraview/pkg/prop"
)

func init() {
	driver.GetManager().Register(NewBackend("audiotest", NewMicrophone("audiotest", "AudioTest")))
}

// Backend is a driver.Backend made of dummy microphones.
type Backend struct {
	name string
	mics []*Microphone
}

// NewBackend creates a backend exposing mics.
func NewBackend(name string, mics ...*Microphone) *Backend {
	return &Backend{name: name, mics: mics}
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Cameras() ([]driver.Camera, error) {
	return nil, nil
}

func (b *Backend) Microphones() ([]driver.Microphone, error) {
	mics := make([]driver.Microphone, len(b.mics))
	for i, m := range b.mics {
		mics[i] = m
	}
	return mics, nil
}

// tone is one period of a 480 Hz sine at 48 kHz.
var tone = func() (t [100]int16) {
	for i := range t {
		t[i] = int16(math.Sin(2*math.Pi*float64(i)/100) * 0.25 * math.MaxInt16)
	}
	return
}()

// Microphone plays a 480 Hz tone at 48 kHz.
type Microphone struct {
	info driver.MicrophoneInfo

	mu      sync.Mutex
	openErr error
	open    int
}

// NewMicrophone creates a dummy microphone.
func NewMicrophone(id, name string) *Microphone {
	return &Microphone{info: driver.MicrophoneInfo{ID: id, Name: name}}
}

func (m *Microphone) Info() driver.MicrophoneInfo {
	return m.info
}

// FailOpen makes the following Open calls fail with err.
func (m *Microphone) FailOpen(err error) {
	m.mu.Lock()
	m.openErr = err
	m.mu.Unlock()
}

// Sessions returns the number of open audio sessions.
func (m *Microphone) Sessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *Microphone) Open(ctx context.Context, p prop.Audio) (driver.AudioSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.openErr != nil {
		return nil, m.openErr
	}

	if p.SampleRate == 0 {
		p.SampleRate = 48000
	}
	if p.ChannelCount == 0 {
		p.ChannelCount = 1
	}
	if p.Latency == 0 {
		p.Latency = 20 * time.Millisecond
	}
	m.open++
	return &session{
		mic:    m,
		p:      p,
		closed: make(chan struct{}),
		next:   time.Now(),
	}, nil
}

type session struct {
	mic   *Microphone
	p     prop.Audio
	phase int
	next  time.Time

	closed chan struct{}
	once   sync.Once
}

func (s *session) Read() (audio.Chunk, func(), error) {
	select {
	case <-s.closed:
		return audio.Chunk{}, func() {}, io.EOF
	case <-time.After(time.Until(s.next)):
	}
	s.next = s.next.Add(s.p.Latency)

	nSample := int(uint64(s.p.SampleRate) * uint64(s.p.Latency) / uint64(time.Second))
	samples := make([]int16, nSample*s.p.ChannelCount)
	for i := 0; i < nSample; i++ {
		s.phase++
		if s.phase >= len(tone) {
			s.phase = 0
		}
		v := tone[s.phase]
		for ch := 0; ch < s.p.ChannelCount; ch++ {
			samples[i*s.p.ChannelCount+ch] = v
		}
	}
	return audio.Chunk{
		Samples:      samples,
		SampleRate:   s.p.SampleRate,
		ChannelCount: s.p.ChannelCount,
	}, func() {}, nil
}

func (s *session) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.mic.mu.Lock()
		s.mic.open--
		s.mic.mu.Unlock()
	})
	return nil
}
