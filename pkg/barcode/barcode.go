// Package barcode feeds frames to a barcode decoder at a frame-rate
// divided cadence.
package barcode

import (
	"image"
	"sync"

	"github.com/liyue201/goqr"
)

// Result is one decoded symbol.
type Result struct {
	Format string
	Text   string
}

// Decoder finds symbols in an image. Finding none is not an error.
type Decoder interface {
	Decode(img image.Image) ([]Result, error)
}

type DecoderFunc func(img image.Image) ([]Result, error)

func (f DecoderFunc) Decode(img image.Image) ([]Result, error) {
	return f(img)
}

// QR decodes QR codes with goqr.
type QR struct{}

func (QR) Decode(img image.Image) ([]Result, error) {
	codes, err := goqr.Recognize(img)
	if err != nil || len(codes) == 0 {
		// goqr reports an empty frame as an error.
		return nil, nil
	}

	results := make([]Result, 0, len(codes))
	for _, code := range codes {
		results = append(results, Result{Format: "QR_CODE", Text: string(code.Payload)})
	}
	return results, nil
}

// Divider fires on every Nth frame. A frame arriving while the consumer is
// busy does not fire and does not reset the count, so detection resumes on
// the next frame.
type Divider struct {
	mu    sync.Mutex
	n     int
	count int
}

// NewDivider creates a divider firing every n frames. n < 1 fires on every frame.
func NewDivider(n int) *Divider {
	if n < 1 {
		n = 1
	}
	return &Divider{n: n}
}

// Frame counts one frame and reports whether it fires.
func (d *Divider) Frame(busy bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.count++
	if d.count < d.n || busy {
		return false
	}
	d.count = 0
	return true
}

// Reset restarts the count.
func (d *Divider) Reset() {
	d.mu.Lock()
	d.count = 0
	d.mu.Unlock()
}
