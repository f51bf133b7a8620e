// Package frame decodes raw capture buffers into images.
package frame

import (
	"fmt"
	"image"
)

// Format is the pixel layout a capture device hands out.
type Format string

const (
	// FormatI420 https://www.fourcc.org/pixel-format/yuv-i420/
	FormatI420 Format = "I420"
	// FormatNV21 https://www.fourcc.org/pixel-format/yuv-nv21/
	FormatNV21 Format = "NV21"
	// FormatNV12 https://www.fourcc.org/pixel-format/yuv-nv12/
	FormatNV12 Format = "NV12"
	// FormatYUY2 https://www.fourcc.org/pixel-format/yuv-yuy2/
	FormatYUY2 Format = "YUY2"
	// FormatUYVY https://www.fourcc.org/pixel-format/yuv-uyvy/
	FormatUYVY Format = "UYVY"
	// FormatMJPEG https://www.fourcc.org/mjpg/
	FormatMJPEG Format = "MJPEG"
	// FormatRGBA is 8 bit RGBA, already in Go's image.RGBA layout
	FormatRGBA Format = "RGBA"
)

// FormatYUYV is an alias of FormatYUY2
const FormatYUYV = FormatYUY2

// Decoder turns one raw buffer into an image. The returned image never aliases buf.
type Decoder interface {
	Decode(buf []byte, width, height int) (image.Image, error)
}

// DecoderFunc is a proxy type for Decoder
type DecoderFunc func(buf []byte, width, height int) (image.Image, error)

func (f DecoderFunc) Decode(buf []byte, width, height int) (image.Image, error) {
	return f(buf, width, height)
}

// NewDecoder returns the decoder for f.
func NewDecoder(f Format) (Decoder, error) {
	switch f {
	case FormatI420:
		return DecoderFunc(decodeI420), nil
	case FormatNV21:
		return DecoderFunc(decodeNV21), nil
	case FormatNV12:
		return DecoderFunc(decodeNV12), nil
	case FormatYUY2:
		return DecoderFunc(decodeYUY2), nil
	case FormatUYVY:
		return DecoderFunc(decodeUYVY), nil
	case FormatMJPEG:
		return DecoderFunc(decodeMJPEG), nil
	case FormatRGBA:
		return DecoderFunc(decodeRGBA), nil
	default:
		return nil, fmt.Errorf("%s is not supported", f)
	}
}

func errShortFrame(got, want int) error {
	return fmt.Errorf("frame length (%d) less than expected (%d)", got, want)
}
