package codec

import (
	"errors"
	"image"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopVideoEncoder struct{}

func (nopVideoEncoder) Encode(image.Image) ([]byte, error) { return []byte{0}, nil }
func (nopVideoEncoder) Close() error                       { return nil }

func TestRegistry(t *testing.T) {
	const mime = "video/x-test"
	defer Unregister(mime)

	_, err := BuildVideoEncoder(mime, VideoSetting{})
	assert.Error(t, err)

	Register(mime, VideoEncoderBuilder(func(s VideoSetting) (VideoEncoder, error) {
		if s.Width == 0 {
			return nil, errors.New("no size")
		}
		return nopVideoEncoder{}, nil
	}))
	assert.Contains(t, VideoCodecs(), mime)

	_, err = BuildVideoEncoder("VIDEO/X-TEST", VideoSetting{})
	assert.EqualError(t, err, "no size")
	enc, err := BuildVideoEncoder(mime, VideoSetting{Width: 2, Height: 2})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	assert.False(t, HasAudioEncoder(mime))
	assert.Panics(t, func() { Register(mime, 42) })
}

func TestClockRate(t *testing.T) {
	rate, err := ClockRate(webrtc.MimeTypeVP8)
	require.NoError(t, err)
	assert.Equal(t, uint32(90000), rate)

	rate, err = ClockRate(webrtc.MimeTypeOpus)
	require.NoError(t, err)
	assert.Equal(t, uint32(48000), rate)

	_, err = ClockRate("video/mjpeg")
	assert.Error(t, err)
}

func TestPacketizer(t *testing.T) {
	p, err := NewPacketizer(webrtc.MimeTypeVP8, NewFrameSampler(90000, 30))
	require.NoError(t, err)

	assert.Nil(t, p.Packetize(nil))

	first := p.Packetize(make([]byte, 3000))
	require.Greater(t, len(first), 1, "payloads above the MTU are split")
	assert.True(t, first[len(first)-1].Marker)

	second := p.Packetize([]byte{1, 2, 3})
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Timestamp+3000, second[0].Timestamp)
	assert.Equal(t, first[len(first)-1].SequenceNumber+1, second[0].SequenceNumber)
}
