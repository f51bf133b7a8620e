package frame

import (
	"bytes"
	"image"
	"image/jpeg"
)

func decodeMJPEG(buf []byte, width, height int) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(buf))
}

func decodeRGBA(buf []byte, width, height int) (image.Image, error) {
	size := 4 * width * height
	if len(buf) < size {
		return nil, errShortFrame(len(buf), size)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, buf[:size])
	return img, nil
}
