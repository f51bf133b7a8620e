package video

import (
	"image"
	"image/color"
	"testing"
)

func TestToI420(t *testing.T) {
	yuv := image.NewYCbCr(image.Rect(0, 0, 4, 4), image.YCbCrSubsampleRatio420)
	if got := ToI420(yuv); got != yuv {
		t.Error("a 4:2:0 image must be returned as is")
	}

	src := image.NewRGBA(image.Rect(2, 2, 6, 4))
	for y := 2; y < 4; y++ {
		for x := 2; x < 6; x++ {
			src.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}

	got := ToI420(src)
	if got.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Fatalf("unexpected bounds %v", got.Bounds())
	}
	wantY, wantCb, wantCr := color.RGBToYCbCr(255, 0, 0)
	c := got.YCbCrAt(3, 1)
	if c.Y != wantY || c.Cb != wantCb || c.Cr != wantCr {
		t.Errorf("expected %d,%d,%d, got %d,%d,%d", wantY, wantCb, wantCr, c.Y, c.Cb, c.Cr)
	}
}
