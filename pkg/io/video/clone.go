package video

import (
	"image"
	"slices"

	"golang.org/x/image/draw"
)

// Clone returns a copy of src that owns its memory, so it outlives the
// release of the driver buffer src points into. RGBA, NRGBA, Gray and YCbCr
// keep their layout; anything else is converted to RGBA.
func Clone(src image.Image) image.Image {
	switch src := src.(type) {
	case *image.RGBA:
		dst := *src
		dst.Pix = slices.Clone(src.Pix)
		return &dst
	case *image.NRGBA:
		dst := *src
		dst.Pix = slices.Clone(src.Pix)
		return &dst
	case *image.Gray:
		dst := *src
		dst.Pix = slices.Clone(src.Pix)
		return &dst
	case *image.YCbCr:
		// One allocation for the three planes.
		buf := make([]uint8, 0, len(src.Y)+len(src.Cb)+len(src.Cr))
		buf = append(append(append(buf, src.Y...), src.Cb...), src.Cr...)

		dst := *src
		y, cb := len(src.Y), len(src.Y)+len(src.Cb)
		dst.Y = buf[:y:y]
		dst.Cb = buf[y:cb:cb]
		dst.Cr = buf[cb:]
		return &dst
	}

	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Rect, src, src.Bounds().Min, draw.Src)
	return dst
}
