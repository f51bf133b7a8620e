package video

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// NormalizeRotation maps any multiple of 90 degrees into [0, 360). Other
// values are rounded down to the previous quarter turn.
func NormalizeRotation(degrees int) int {
	degrees = ((degrees % 360) + 360) % 360
	return degrees - degrees%90
}

// Orient rotates img clockwise by degrees and then, when mirror is set, flips
// it horizontally. The result is a new RGBA image; img is returned untouched
// when no correction is needed.
func Orient(img image.Image, degrees int, mirror bool) image.Image {
	degrees = NormalizeRotation(degrees)
	if degrees == 0 && !mirror {
		return img
	}

	sr := img.Bounds()
	w, h := float64(sr.Dx()), float64(sr.Dy())
	dw, dh := sr.Dx(), sr.Dy()

	// s2d maps source pixel coordinates, relative to sr.Min, onto the destination.
	var m f64.Aff3
	switch degrees {
	case 0:
		m = f64.Aff3{1, 0, 0, 0, 1, 0}
	case 90:
		m = f64.Aff3{0, -1, h, 1, 0, 0}
		dw, dh = dh, dw
	case 180:
		m = f64.Aff3{-1, 0, w, 0, -1, h}
	case 270:
		m = f64.Aff3{0, 1, 0, -1, 0, w}
		dw, dh = dh, dw
	}

	if mirror {
		m[0], m[1], m[2] = -m[0], -m[1], float64(dw)-m[2]
	}

	mx, my := float64(sr.Min.X), float64(sr.Min.Y)
	m[2] -= m[0]*mx + m[1]*my
	m[5] -= m[3]*mx + m[4]*my

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.NearestNeighbor.Transform(dst, m, img, sr, draw.Src, nil)
	return dst
}

// OrientFunc returns a transform that corrects every frame with the values
// returned by params at read time.
func OrientFunc(params func() (degrees int, mirror bool)) TransformFunc {
	return func(r Reader) Reader {
		return ReaderFunc(func() (image.Image, func(), error) {
			img, release, err := r.Read()
			if err != nil {
				return nil, noopRelease, err
			}

			degrees, mirror := params()
			oriented := Orient(img, degrees, mirror)
			if oriented == img {
				return img, release, nil
			}

			release()
			return oriented, noopRelease, nil
		})
	}
}
