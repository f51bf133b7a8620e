package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pion/cameraview/pkg/io/audio"
)

func TestFrameSampler(t *testing.T) {
	assert.Equal(t, uint32(3000), NewFrameSampler(90000, 30)())
	assert.Equal(t, uint32(3754), NewFrameSampler(90000, 23.976)())
	assert.Equal(t, uint32(3000), NewFrameSampler(90000, 0)(), "defaults to 30 fps")
}

func TestChunkSamples(t *testing.T) {
	c := audio.Chunk{
		Samples:      make([]int16, 960*2),
		SampleRate:   48000,
		ChannelCount: 2,
	}
	assert.Equal(t, uint32(960), ChunkSamples(48000, c))

	c.SampleRate = 16000
	c.Samples = make([]int16, 320)
	c.ChannelCount = 1
	assert.Equal(t, uint32(960), ChunkSamples(48000, c))

	assert.Zero(t, ChunkSamples(48000, audio.Chunk{}))
}
