// Package prop describes capture formats and device controls.
package prop

import (
	"fmt"
	"math"
	"time"

	"github.com/pion/cameraview/pkg/frame"
)

// Video represents a video's properties
type Video struct {
	Width, Height int
	FrameRate     float32
	FrameFormat   frame.Format
}

func (v Video) String() string {
	return fmt.Sprintf("%dx%d@%gfps(%s)", v.Width, v.Height, v.FrameRate, v.FrameFormat)
}

// Is43 reports whether the size has a 4:3 aspect ratio.
func (v Video) Is43() bool {
	return v.Height > 0 && v.Width == v.Height*4/3 && v.Width*3 == v.Height*4
}

// Audio represents an audio's properties
type Audio struct {
	ChannelCount int
	SampleRate   int
	Latency      time.Duration
}

// FitnessDistance is an implementation for https://w3c.github.io/mediacapture-main/#dfn-fitness-distance
// restricted to the fields a capture format negotiates. Zero fields of ideal are ignored.
func FitnessDistance(ideal, actual Video) float64 {
	var dist float64

	numeric := func(i, a float64) {
		if i == 0 || i == a {
			return
		}
		dist += math.Abs(a-i) / math.Max(math.Abs(a), math.Abs(i))
	}
	numeric(float64(ideal.Width), float64(actual.Width))
	numeric(float64(ideal.Height), float64(actual.Height))
	numeric(float64(ideal.FrameRate), float64(actual.FrameRate))

	if ideal.FrameFormat != "" && ideal.FrameFormat != actual.FrameFormat {
		dist++
	}

	return dist
}

// Closest returns the format with the smallest fitness distance to ideal.
// Ties keep the earlier entry.
func Closest(formats []Video, ideal Video) (Video, bool) {
	if len(formats) == 0 {
		return Video{}, false
	}

	best := formats[0]
	minDist := FitnessDistance(ideal, best)
	for _, f := range formats[1:] {
		if d := FitnessDistance(ideal, f); d < minDist {
			best, minDist = f, d
		}
	}
	return best, true
}

// Largest43 returns the 4:3 format with the largest area. When none is 4:3
// the first format is returned.
func Largest43(formats []Video) (Video, bool) {
	if len(formats) == 0 {
		return Video{}, false
	}

	best := formats[0]
	area := 0
	for _, f := range formats {
		if f.Is43() && f.Width*f.Height > area {
			best = f
			area = f.Width * f.Height
		}
	}
	return best, true
}
