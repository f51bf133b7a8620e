// Package codec is the registry of encoder plug-ins used by the recorder.
// Encoders register a builder under the mime type they produce, e.g.
// webrtc.MimeTypeVP8.
package codec

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4"

	"github.com/pion/cameraview/pkg/io/audio"
)

// VideoEncoder compresses frames. Encode may return an empty payload while
// the encoder is still buffering.
type VideoEncoder interface {
	Encode(img image.Image) ([]byte, error)
	Close() error
}

// AudioEncoder compresses PCM chunks.
type AudioEncoder interface {
	Encode(chunk audio.Chunk) ([]byte, error)
	Close() error
}

type VideoSetting struct {
	Width, Height int
	TargetBitRate int
	FrameRate     float32
	// KeyFrameInterval is in frames.
	KeyFrameInterval int
}

type AudioSetting struct {
	SampleRate   int
	ChannelCount int
	Latency      time.Duration
}

type VideoEncoderBuilder func(s VideoSetting) (VideoEncoder, error)
type AudioEncoderBuilder func(s AudioSetting) (AudioEncoder, error)

// ClockRate returns the RTP clock rate of mimeType.
func ClockRate(mimeType string) (uint32, error) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeOpus):
		return 48000, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8),
		strings.EqualFold(mimeType, webrtc.MimeTypeVP9),
		strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		return 90000, nil
	}
	return 0, fmt.Errorf("codec: unsupported mime type %s", mimeType)
}

func payloader(mimeType string) (rtp.Payloader, uint8, error) {
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8):
		return &codecs.VP8Payloader{}, 96, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP9):
		return &codecs.VP9Payloader{}, 98, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		return &codecs.H264Payloader{}, 102, nil
	case strings.EqualFold(mimeType, webrtc.MimeTypeOpus):
		return &codecs.OpusPayloader{}, 111, nil
	}
	return nil, 0, fmt.Errorf("codec: unsupported mime type %s", mimeType)
}
