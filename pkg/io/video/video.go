// Package video contains the pull based frame source used by capture drivers
// and transforms that operate on it.
package video

import (
	"image"
)

// Reader produces frames. release must be called once the caller is done
// with img; the driver may reuse the memory afterwards.
type Reader interface {
	Read() (img image.Image, release func(), err error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func() (img image.Image, release func(), err error)

func (rf ReaderFunc) Read() (image.Image, func(), error) {
	return rf()
}

// TransformFunc wraps a Reader, e.g. to scale, rotate or drop frames.
type TransformFunc func(r Reader) Reader

// Merge chains transforms; the first one sees the frames first. nil
// transforms are skipped.
func Merge(transforms ...TransformFunc) TransformFunc {
	return func(r Reader) Reader {
		for _, t := range transforms {
			if t != nil {
				r = t(r)
			}
		}
		return r
	}
}

func noopRelease() {}
