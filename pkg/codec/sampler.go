package codec

import (
	"math"

	"github.com/pion/cameraview/pkg/io/audio"
)

// SamplerFunc returns how far, in clock rate units, the next sample
// advances the RTP timestamp.
type SamplerFunc func() uint32

// NewFrameSampler advances by one frame period at frameRate. Encoders stamp
// recorded frames by index, so the container follows the nominal rate
// rather than the capture jitter.
func NewFrameSampler(clockRate uint32, frameRate float32) SamplerFunc {
	if frameRate <= 0 {
		frameRate = 30
	}
	step := uint32(math.Round(float64(clockRate) / float64(frameRate)))
	return func() uint32 {
		return step
	}
}

// ChunkSamples returns the duration of c in clock rate units.
func ChunkSamples(clockRate uint32, c audio.Chunk) uint32 {
	if c.SampleRate <= 0 {
		return 0
	}
	return uint32(uint64(c.Frames()) * uint64(clockRate) / uint64(c.SampleRate))
}
