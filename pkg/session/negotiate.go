package session

import (
	"github.com/pion/cameraview/pkg/prop"
)

// DefaultPreview is the format preview sessions aim for.
var DefaultPreview = prop.Video{Width: 640, Height: 480, FrameRate: 30}

// Negotiate picks the capture format for mode. Record sessions take the
// largest 4:3 size, falling back to the first supported one. Preview
// sessions take the format closest to preview.
func Negotiate(formats []prop.Video, mode Mode, preview prop.Video) (prop.Video, error) {
	if len(formats) == 0 {
		return prop.Video{}, ErrNoFormats
	}

	var chosen prop.Video
	switch mode {
	case ModeRecord:
		chosen, _ = prop.Largest43(formats)
	default:
		chosen, _ = prop.Closest(formats, preview)
	}

	if chosen.FrameRate <= 0 {
		chosen.FrameRate = DefaultPreview.FrameRate
	}
	return chosen, nil
}
