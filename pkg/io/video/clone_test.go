package video

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomize(arr []uint8) {
	for i := range arr {
		arr[i] = uint8(rand.Uint32())
	}
}

func TestClone(t *testing.T) {
	rect := image.Rect(0, 0, 16, 8)
	for name, testCase := range map[string]struct {
		new      func() image.Image
		scramble func(image.Image)
	}{
		"RGBA": {
			new:      func() image.Image { return image.NewRGBA(rect) },
			scramble: func(img image.Image) { randomize(img.(*image.RGBA).Pix) },
		},
		"NRGBA": {
			new:      func() image.Image { return image.NewNRGBA(rect) },
			scramble: func(img image.Image) { randomize(img.(*image.NRGBA).Pix) },
		},
		"Gray": {
			new:      func() image.Image { return image.NewGray(rect) },
			scramble: func(img image.Image) { randomize(img.(*image.Gray).Pix) },
		},
		"YCbCr": {
			new: func() image.Image { return image.NewYCbCr(rect, image.YCbCrSubsampleRatio420) },
			scramble: func(img image.Image) {
				yuv := img.(*image.YCbCr)
				randomize(yuv.Y)
				randomize(yuv.Cb)
				randomize(yuv.Cr)
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			src := testCase.new()
			testCase.scramble(src)

			clone := Clone(src)
			require.IsType(t, src, clone)
			assert.Equal(t, src, clone)

			testCase.scramble(src)
			assert.NotEqual(t, src, clone, "the clone is detached from the source")
		})
	}
}

func TestCloneYCbCrPlanes(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)
	clone := Clone(src).(*image.YCbCr)

	clone.Y = append(clone.Y, 1)
	assert.Len(t, clone.Cb, len(src.Cb), "appending to one plane leaves the next one alone")
	assert.Zero(t, clone.Cb[0])
}

func TestCloneConvertsOtherFormats(t *testing.T) {
	src := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.RGBA{1, 2, 3, 255}})

	clone, ok := Clone(src).(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, clone.RGBAAt(1, 1))
}
