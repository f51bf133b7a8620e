package frame

import (
	"image"
)

func decodeI420(buf []byte, width, height int) (image.Image, error) {
	yi := width * height
	cbi := yi + yi/4
	cri := cbi + yi/4
	if len(buf) < cri {
		return nil, errShortFrame(len(buf), cri)
	}

	pix := make([]byte, cri)
	copy(pix, buf)
	return &image.YCbCr{
		Y:              pix[:yi:yi],
		YStride:        width,
		Cb:             pix[yi:cbi:cbi],
		Cr:             pix[cbi:cri:cri],
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}

// decodeSemiPlanar splits the interleaved chroma plane of NV12/NV21.
// crFirst is true for NV21.
func decodeSemiPlanar(buf []byte, width, height int, crFirst bool) (image.Image, error) {
	yi := width * height
	ci := yi / 4
	fi := yi + 2*ci
	if len(buf) < fi {
		return nil, errShortFrame(len(buf), fi)
	}

	pix := make([]byte, fi)
	copy(pix[:yi], buf[:yi])
	cb := pix[yi : yi+ci : yi+ci]
	cr := pix[yi+ci : fi : fi]
	for i, j := yi, 0; j < ci; i, j = i+2, j+1 {
		if crFirst {
			cr[j], cb[j] = buf[i], buf[i+1]
		} else {
			cb[j], cr[j] = buf[i], buf[i+1]
		}
	}

	return &image.YCbCr{
		Y:              pix[:yi:yi],
		YStride:        width,
		Cb:             cb,
		Cr:             cr,
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}

func decodeNV21(buf []byte, width, height int) (image.Image, error) {
	return decodeSemiPlanar(buf, width, height, true)
}

func decodeNV12(buf []byte, width, height int) (image.Image, error) {
	return decodeSemiPlanar(buf, width, height, false)
}

// decodePacked handles the 4:2:2 packed layouts. yOffset is the index of the
// first luma byte in each 4 byte macropixel.
func decodePacked(buf []byte, width, height int, yOffset int) (image.Image, error) {
	yi := width * height
	ci := yi / 2
	fi := yi + 2*ci
	if len(buf) < fi {
		return nil, errShortFrame(len(buf), fi)
	}

	y := make([]byte, yi)
	cb := make([]byte, ci)
	cr := make([]byte, ci)
	cOffset := 1 - yOffset

	fast := 0
	slow := 0
	for i := 0; i < fi; i += 4 {
		y[fast] = buf[i+yOffset]
		cb[slow] = buf[i+cOffset]
		y[fast+1] = buf[i+yOffset+2]
		cr[slow] = buf[i+cOffset+2]
		fast += 2
		slow++
	}

	return &image.YCbCr{
		Y:              y,
		YStride:        width,
		Cb:             cb,
		Cr:             cr,
		CStride:        width / 2,
		SubsampleRatio: image.YCbCrSubsampleRatio422,
		Rect:           image.Rect(0, 0, width, height),
	}, nil
}

func decodeYUY2(buf []byte, width, height int) (image.Image, error) {
	return decodePacked(buf, width, height, 0)
}

func decodeUYVY(buf []byte, width, height int) (image.Image, error) {
	return decodePacked(buf, width, height, 1)
}
