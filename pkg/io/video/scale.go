package video

import (
	"image"

	"golang.org/x/image/draw"
)

// Scaler represents scaling algorithm
type Scaler draw.Scaler

// List of scaling algorithms
var (
	ScalerNearestNeighbor = Scaler(draw.NearestNeighbor)
	ScalerApproxBiLinear  = Scaler(draw.ApproxBiLinear)
	ScalerBiLinear        = Scaler(draw.BiLinear)
	ScalerCatmullRom      = Scaler(draw.CatmullRom)
)

// Resize scales img into a width x height RGBA image.
// Setting scaler=nil to use default scaler. (ScalerNearestNeighbor)
// A non-positive width or height keeps the aspect ratio of img; when both are
// non-positive, or the size already matches, img is returned as is.
func Resize(img image.Image, width, height int, scaler Scaler) image.Image {
	b := img.Bounds()
	if b.Empty() || (width <= 0 && height <= 0) {
		return img
	}
	if scaler == nil {
		scaler = ScalerNearestNeighbor
	}

	switch {
	case height <= 0:
		height = b.Dy() * width / b.Dx()
	case width <= 0:
		width = b.Dx() * height / b.Dy()
	}
	if width == b.Dx() && height == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	scaler.Scale(dst, dst.Rect, img, b, draw.Src, nil)
	return dst
}

// Scale returns video scaling transform. See Resize for the size rules.
func Scale(width, height int, scaler Scaler) TransformFunc {
	return func(r Reader) Reader {
		return ReaderFunc(func() (image.Image, func(), error) {
			img, release, err := r.Read()
			if err != nil {
				return nil, noopRelease, err
			}

			scaled := Resize(img, width, height, scaler)
			if scaled == img {
				return img, release, nil
			}

			release()
			return scaled, noopRelease, nil
		})
	}
}
