// Package record writes a capture session to disk: video into an IVF or
// H264 Annex B file, audio into an Ogg sidecar next to it.
package record

import (
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/h264writer"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"

	"github.com/pion/cameraview/internal/logging"
	"github.com/pion/cameraview/pkg/codec"
	"github.com/pion/cameraview/pkg/io/audio"
	"github.com/pion/cameraview/pkg/io/video"
)

const (
	DefaultBitRate    = 10_000_000
	DefaultFrameRate  = 30
	DefaultSampleRate = 48000

	defaultAudioCloseTimeout = 2 * time.Second
)

var logger = logging.NewLogger("cameraview/record")

var ErrClosed = errors.New("recorder closed")

// audioCloseTimeout bounds the wait for the audio pump in Close.
var audioCloseTimeout = defaultAudioCloseTimeout

// Params are the encoder parameters of a recording.
type Params struct {
	// Path is the video file. The audio goes to the same path with an .ogg extension.
	Path string
	// VideoCodec is webrtc.MimeTypeVP8 (IVF container) or
	// webrtc.MimeTypeH264 (Annex B). Defaults to VP8.
	VideoCodec string
	// AudioCodec defaults to webrtc.MimeTypeOpus.
	AudioCodec   string
	BitRate      int
	FrameRate    float32
	SampleRate   int
	ChannelCount int
	// Rotation, in degrees clockwise, is applied to every frame before encoding.
	Rotation int
}

func (p *Params) setDefaults() {
	if p.VideoCodec == "" {
		p.VideoCodec = webrtc.MimeTypeVP8
	}
	if p.AudioCodec == "" {
		p.AudioCodec = webrtc.MimeTypeOpus
	}
	if p.BitRate == 0 {
		p.BitRate = DefaultBitRate
	}
	if p.FrameRate == 0 {
		p.FrameRate = DefaultFrameRate
	}
	if p.SampleRate == 0 {
		p.SampleRate = DefaultSampleRate
	}
	if p.ChannelCount == 0 {
		p.ChannelCount = 1
	}
	p.Rotation = video.NormalizeRotation(p.Rotation)
}

// AudioPath returns the sidecar audio file of a video file.
func AudioPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".ogg"
}

type mediaWriter interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// Recorder owns the output files of one recording until Close.
type Recorder struct {
	params Params
	stats  *codec.BitrateTracker

	mu         sync.Mutex
	closed     bool
	videoOut   mediaWriter
	videoEnc   codec.VideoEncoder
	videoPkt   *codec.Packetizer
	frames     int
	audioDone  chan struct{}
	audioOut   mediaWriter
	audioEnc   codec.AudioEncoder
	audioPkt   *codec.Packetizer
	audioTaken bool
	// audioOrphaned hands closing the audio outputs to the pump after Close
	// gave up waiting for it.
	audioOrphaned bool
}

// New prepares a recording. The video file is created right away; the
// video encoder is built on the first frame, once its size is known.
func New(p Params) (*Recorder, error) {
	p.setDefaults()
	if p.Path == "" {
		return nil, errors.New("record: no output path")
	}

	if _, err := codec.ClockRate(p.VideoCodec); err != nil {
		return nil, err
	}
	found := false
	for _, name := range codec.VideoCodecs() {
		if strings.EqualFold(name, p.VideoCodec) {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("record: no %s encoder registered", p.VideoCodec)
	}

	var (
		out mediaWriter
		err error
	)
	switch {
	case strings.EqualFold(p.VideoCodec, webrtc.MimeTypeVP8):
		out, err = ivfwriter.New(p.Path)
	case strings.EqualFold(p.VideoCodec, webrtc.MimeTypeH264):
		out, err = h264writer.New(p.Path)
	default:
		return nil, fmt.Errorf("record: no container for %s", p.VideoCodec)
	}
	if err != nil {
		return nil, err
	}

	return &Recorder{
		params:   p,
		stats:    codec.NewBitrateTracker(time.Second),
		videoOut: out,
	}, nil
}

// Params returns the effective parameters.
func (r *Recorder) Params() Params {
	return r.params
}

// WriteVideo encodes one frame.
func (r *Recorder) WriteVideo(img image.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.params.Rotation != 0 {
		img = video.Orient(img, r.params.Rotation, false)
	}

	if r.videoEnc == nil {
		b := img.Bounds()
		enc, err := codec.BuildVideoEncoder(r.params.VideoCodec, codec.VideoSetting{
			Width:         b.Dx(),
			Height:        b.Dy(),
			TargetBitRate: r.params.BitRate,
			FrameRate:     r.params.FrameRate,
		})
		if err != nil {
			return err
		}
		clockRate, _ := codec.ClockRate(r.params.VideoCodec)
		pkt, err := codec.NewPacketizer(r.params.VideoCodec, codec.NewFrameSampler(clockRate, r.params.FrameRate))
		if err != nil {
			enc.Close()
			return err
		}
		r.videoEnc, r.videoPkt = enc, pkt
		logger.Debugf("video encoder %s %dx%d at %d bps", r.params.VideoCodec, b.Dx(), b.Dy(), r.params.BitRate)
	}

	payload, err := r.videoEnc.Encode(img)
	if err != nil {
		return err
	}
	for _, packet := range r.videoPkt.Packetize(payload) {
		if err := r.videoOut.WriteRTP(packet); err != nil {
			return err
		}
	}
	r.frames++
	r.stats.AddFrame(len(payload), time.Now())
	return nil
}

// RecordAudio starts encoding ar into the sidecar file until ar returns
// io.EOF. Without a registered audio encoder the recording has no audio.
func (r *Recorder) RecordAudio(ar audio.Reader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.audioTaken {
		return errors.New("record: audio already attached")
	}
	if !codec.HasAudioEncoder(r.params.AudioCodec) {
		logger.Warnf("no %s encoder registered, recording without audio", r.params.AudioCodec)
		return nil
	}

	enc, err := codec.BuildAudioEncoder(r.params.AudioCodec, codec.AudioSetting{
		SampleRate:   r.params.SampleRate,
		ChannelCount: r.params.ChannelCount,
	})
	if err != nil {
		return err
	}
	pkt, err := codec.NewPacketizer(r.params.AudioCodec, nil)
	if err != nil {
		enc.Close()
		return err
	}
	out, err := oggwriter.New(AudioPath(r.params.Path), uint32(r.params.SampleRate), uint16(r.params.ChannelCount))
	if err != nil {
		enc.Close()
		return err
	}

	r.audioTaken = true
	r.audioEnc, r.audioPkt, r.audioOut = enc, pkt, out
	r.audioDone = make(chan struct{})
	go r.pumpAudio(ar, r.audioDone)
	return nil
}

func (r *Recorder) pumpAudio(ar audio.Reader, done chan struct{}) {
	defer r.finishAudio(done)

	clockRate, _ := codec.ClockRate(r.params.AudioCodec)
	for {
		chunk, release, err := ar.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warnf("audio stopped: %v", err)
			}
			return
		}

		payload, err := r.audioEnc.Encode(chunk)
		release()
		if err != nil {
			logger.Debugf("dropped audio chunk: %v", err)
			continue
		}

		for _, packet := range r.audioPkt.PacketizeSamples(payload, codec.ChunkSamples(clockRate, chunk)) {
			if err := r.audioOut.WriteRTP(packet); err != nil {
				logger.Warnf("audio stopped: %v", err)
				return
			}
		}
	}
}

func (r *Recorder) finishAudio(done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	close(done)
	if r.audioOrphaned {
		if err := errors.Join(r.audioEnc.Close(), r.audioOut.Close()); err != nil {
			logger.Warnf("failed to close audio: %v", err)
		}
	}
}

// Close flushes and closes the output files. The audio reader passed to
// RecordAudio must be closed first.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	done := r.audioDone
	r.mu.Unlock()

	var errs []error
	if done != nil {
		select {
		case <-done:
		case <-time.After(audioCloseTimeout):
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	audioStopped := true
	if done != nil {
		select {
		case <-done:
		default:
			// The pump still uses the encoder and the writer; it closes them
			// when it returns.
			audioStopped = false
			r.audioOrphaned = true
			errs = append(errs, errors.New("record: audio did not stop"))
		}
	}

	if r.videoEnc != nil {
		errs = append(errs, r.videoEnc.Close())
	}
	errs = append(errs, r.videoOut.Close())
	if r.audioOut != nil && audioStopped {
		errs = append(errs, r.audioEnc.Close(), r.audioOut.Close())
	}

	logger.Infof("recorded %d frames to %s (%d bytes, last second at %.0f bps)", r.frames, r.params.Path, r.stats.Total(), r.stats.Bitrate())
	return errors.Join(errs...)
}

// Frames returns the number of encoded frames.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
