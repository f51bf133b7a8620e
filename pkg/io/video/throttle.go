package video

import (
	"image"
	"time"
)

// Throttle drops frames so that at most rate frames per second pass. Dropped
// frames are released right away. A non-positive rate disables it.
func Throttle(rate float32) TransformFunc {
	return throttle(rate, time.Now)
}

func throttle(rate float32, now func() time.Time) TransformFunc {
	return func(r Reader) Reader {
		if rate <= 0 {
			return r
		}

		period := time.Duration(float64(time.Second) / float64(rate))
		var due time.Time
		return ReaderFunc(func() (image.Image, func(), error) {
			for {
				img, release, err := r.Read()
				if err != nil {
					return nil, noopRelease, err
				}

				t := now()
				if t.Before(due) {
					release()
					continue
				}
				// Early frames keep the schedule; a stall restarts it.
				due = due.Add(period)
				if due.Before(t) {
					due = t.Add(period)
				}
				return img, release, nil
			}
		})
	}
}
