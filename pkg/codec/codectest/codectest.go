// Package codectest provides fake encoders producing well formed, but
// meaningless, VP8, H264 and Opus samples. They let the recorder be tested
// without native codec libraries.
package codectest

import (
	"encoding/binary"
	"errors"
	"image"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/pion/cameraview/pkg/codec"
	"github.com/pion/cameraview/pkg/io/audio"
)

var errClosed = errors.New("encoder closed")

// Register registers the fake encoders under their mime types.
func Register() {
	codec.Register(webrtc.MimeTypeVP8, codec.VideoEncoderBuilder(NewVP8Encoder))
	codec.Register(webrtc.MimeTypeH264, codec.VideoEncoderBuilder(NewH264Encoder))
	codec.Register(webrtc.MimeTypeOpus, codec.AudioEncoderBuilder(NewOpusEncoder))
}

// Encoder counts the samples it produced.
type Encoder struct {
	mu     sync.Mutex
	count  int
	closed bool
}

func (e *Encoder) next() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errClosed
	}
	e.count++
	return e.count, nil
}

// Count returns the number of encoded samples.
func (e *Encoder) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Close can be called any number of times.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// VP8Encoder emits a key frame header per frame.
type VP8Encoder struct {
	Encoder
}

func NewVP8Encoder(s codec.VideoSetting) (codec.VideoEncoder, error) {
	return &VP8Encoder{}, nil
}

func (e *VP8Encoder) Encode(img image.Image) ([]byte, error) {
	n, err := e.next()
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	// Frame tag: key frame, version 0, shown, then the key frame start code.
	frame := []byte{0x10, 0x00, 0x00, 0x9d, 0x01, 0x2a, 0, 0, 0, 0, byte(n)}
	binary.LittleEndian.PutUint16(frame[6:], uint16(b.Dx()&0x3fff))
	binary.LittleEndian.PutUint16(frame[8:], uint16(b.Dy()&0x3fff))
	return frame, nil
}

// H264Encoder emits SPS, PPS and an IDR slice per frame in Annex B.
type H264Encoder struct {
	Encoder
}

func NewH264Encoder(s codec.VideoSetting) (codec.VideoEncoder, error) {
	return &H264Encoder{}, nil
}

func (e *H264Encoder) Encode(img image.Image) ([]byte, error) {
	n, err := e.next()
	if err != nil {
		return nil, err
	}
	return []byte{
		0, 0, 0, 1, 0x67, 0x42, 0xc0, 0x1e,
		0, 0, 0, 1, 0x68, 0xce, 0x3c, 0x80,
		0, 0, 0, 1, 0x65, 0x88, 0x84, byte(n),
	}, nil
}

// OpusEncoder emits one silent CELT frame per chunk.
type OpusEncoder struct {
	Encoder
}

func NewOpusEncoder(s codec.AudioSetting) (codec.AudioEncoder, error) {
	return &OpusEncoder{}, nil
}

func (e *OpusEncoder) Encode(chunk audio.Chunk) ([]byte, error) {
	if _, err := e.next(); err != nil {
		return nil, err
	}
	return []byte{0xf8, 0xff, 0xfe}, nil
}
