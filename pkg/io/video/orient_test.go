package video

import (
	"image"
	"image/color"
	"testing"
)

// numbered returns a w x h image whose pixel (x, y) has red = 10*y + x.
func numbered(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(10*y + x), A: 255})
		}
	}
	return img
}

func TestOrient(t *testing.T) {
	const w, h = 3, 2
	src := numbered(w, h)

	testCases := map[string]struct {
		degrees int
		mirror  bool
		size    image.Point
		mapping func(x, y int) (int, int)
	}{
		"Rotate90":       {90, false, image.Pt(h, w), func(x, y int) (int, int) { return h - 1 - y, x }},
		"Rotate180":      {180, false, image.Pt(w, h), func(x, y int) (int, int) { return w - 1 - x, h - 1 - y }},
		"Rotate270":      {270, false, image.Pt(h, w), func(x, y int) (int, int) { return y, w - 1 - x }},
		"Mirror":         {0, true, image.Pt(w, h), func(x, y int) (int, int) { return w - 1 - x, y }},
		"Rotate90Mirror": {-270, true, image.Pt(h, w), func(x, y int) (int, int) { return y, x }},
	}

	for name, c := range testCases {
		c := c
		t.Run(name, func(t *testing.T) {
			out := Orient(src, c.degrees, c.mirror)
			if got := out.Bounds().Size(); got != c.size {
				t.Fatalf("expected size %v, got %v", c.size, got)
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					dx, dy := c.mapping(x, y)
					r, _, _, _ := out.At(dx, dy).RGBA()
					if want := uint32(10*y+x) * 0x101; r != want {
						t.Errorf("src (%d,%d) -> dst (%d,%d): expected %d, got %d", x, y, dx, dy, want, r)
					}
				}
			}
		})
	}
}

func TestOrientIdentity(t *testing.T) {
	src := numbered(4, 4)
	if out := Orient(src, 360, false); out != image.Image(src) {
		t.Fatal("expected the source image back when no correction is needed")
	}
}

func TestOrientOffsetBounds(t *testing.T) {
	src := numbered(4, 4).SubImage(image.Rect(1, 1, 3, 4))
	out := Orient(src, 90, false)
	if got := out.Bounds(); got != image.Rect(0, 0, 3, 2) {
		t.Fatalf("unexpected bounds %v", got)
	}
	// src (1,3) is the bottom-left pixel, it becomes the top-left after a clockwise turn.
	r, _, _, _ := out.At(0, 0).RGBA()
	if want := uint32(31) * 0x101; r != want {
		t.Fatalf("expected %d, got %d", want, r)
	}
}

func TestNormalizeRotation(t *testing.T) {
	for in, want := range map[int]int{0: 0, 90: 90, -90: 270, 450: 90, 100: 90, 359: 270} {
		if got := NormalizeRotation(in); got != want {
			t.Errorf("NormalizeRotation(%d): expected %d, got %d", in, want, got)
		}
	}
}

func TestOrientFuncReleasesSource(t *testing.T) {
	var released bool
	r := OrientFunc(func() (int, bool) { return 180, false })(ReaderFunc(func() (image.Image, func(), error) {
		return numbered(2, 2), func() { released = true }, nil
	}))

	img, release, err := r.Read()
	if err != nil {
		t.Fatal(err)
	}
	release()
	if !released {
		t.Error("the source frame must be released once it is transformed")
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r != 11*0x101 {
		t.Errorf("unexpected pixel %d", r)
	}
}
