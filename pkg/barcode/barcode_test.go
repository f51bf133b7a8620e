package barcode

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivider(t *testing.T) {
	d := NewDivider(5)

	var fired []int
	for i := 1; i <= 15; i++ {
		if d.Frame(false) {
			fired = append(fired, i)
		}
	}
	assert.Equal(t, []int{5, 10, 15}, fired)
}

func TestDividerBusy(t *testing.T) {
	d := NewDivider(3)

	assert.False(t, d.Frame(false))
	assert.False(t, d.Frame(false))
	assert.False(t, d.Frame(true), "a busy consumer must not fire")
	assert.True(t, d.Frame(false), "the missed detection runs on the next frame")
	assert.False(t, d.Frame(false))

	d.Reset()
	assert.False(t, d.Frame(false))
	assert.False(t, d.Frame(false))
	assert.True(t, d.Frame(false))

	always := NewDivider(0)
	assert.True(t, always.Frame(false))
	assert.True(t, always.Frame(false))
}

func TestQRNoCode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	results, err := QR{}.Decode(img)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDecoderFunc(t *testing.T) {
	var d Decoder = DecoderFunc(func(image.Image) ([]Result, error) {
		return []Result{{Format: "EAN_13", Text: "4006381333931"}}, nil
	})
	results, err := d.Decode(nil)
	require.NoError(t, err)
	assert.Equal(t, "4006381333931", results[0].Text)
}
