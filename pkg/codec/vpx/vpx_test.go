package vpx

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pion/cameraview/pkg/codec"
)

func frame(w, h int) image.Image {
	return image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
}

// vp8KeyFrame reads the frame type bit of a VP8 frame tag.
func vp8KeyFrame(payload []byte) bool {
	return len(payload) > 0 && payload[0]&0x01 == 0
}

func TestResize(t *testing.T) {
	for name, build := range map[string]codec.VideoEncoderBuilder{
		"VP8": NewVP8Encoder,
		"VP9": NewVP9Encoder,
	} {
		for _, size := range []image.Point{{320, 240}, {640, 480}, {160, 120}} {
			t.Run(name, func(t *testing.T) {
				enc, err := build(codec.VideoSetting{Width: 320, Height: 240, FrameRate: 30})
				require.NoError(t, err)
				defer enc.Close()

				payload, err := enc.Encode(frame(size.X, size.Y))
				require.NoError(t, err)
				assert.NotEmpty(t, payload)
			})
		}
	}
}

func TestKeyFrames(t *testing.T) {
	enc, err := NewVP8Encoder(codec.VideoSetting{
		Width:            64,
		Height:           48,
		FrameRate:        30,
		KeyFrameInterval: 3,
	})
	require.NoError(t, err)
	defer enc.Close()

	var keys []bool
	for i := 0; i < 4; i++ {
		payload, err := enc.Encode(frame(64, 48))
		require.NoError(t, err)
		keys = append(keys, vp8KeyFrame(payload))
	}
	assert.Equal(t, []bool{true, false, false, true}, keys)

	payload, err := enc.Encode(frame(32, 24))
	require.NoError(t, err)
	assert.True(t, vp8KeyFrame(payload), "a size change starts with a key frame")
}

func TestInvalidSize(t *testing.T) {
	_, err := NewVP8Encoder(codec.VideoSetting{})
	assert.Error(t, err)
}

func TestCloseTwice(t *testing.T) {
	enc, err := NewVP8Encoder(codec.VideoSetting{Width: 320, Height: 240})
	require.NoError(t, err)

	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())

	_, err = enc.Encode(frame(2, 2))
	assert.ErrorIs(t, err, ErrClosed)
}
