package video

import (
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	start := time.Unix(1000, 0)
	clock := start

	var pushed, released int
	// 100 fps source throttled to 25 fps.
	r := throttle(25, func() time.Time { return clock })(ReaderFunc(func() (image.Image, func(), error) {
		clock = clock.Add(10 * time.Millisecond)
		pushed++
		return img, func() { released++ }, nil
	}))

	var stamps []time.Duration
	for i := 0; i < 5; i++ {
		_, release, err := r.Read()
		require.NoError(t, err)
		stamps = append(stamps, clock.Sub(start))
		release()
	}

	assert.Equal(t, []time.Duration{
		10 * time.Millisecond,
		50 * time.Millisecond,
		90 * time.Millisecond,
		130 * time.Millisecond,
		170 * time.Millisecond,
	}, stamps)
	assert.Equal(t, 17, pushed)
	assert.Equal(t, pushed, released, "every frame is released")
}

func TestThrottleStall(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	clock := time.Unix(1000, 0)
	gaps := []time.Duration{0, time.Second, 10 * time.Millisecond, 100 * time.Millisecond}

	r := throttle(10, func() time.Time { return clock })(ReaderFunc(func() (image.Image, func(), error) {
		clock = clock.Add(gaps[0])
		gaps = gaps[1:]
		return img, noopRelease, nil
	}))

	for i := 0; i < 3; i++ {
		_, _, err := r.Read()
		require.NoError(t, err)
	}
	assert.Empty(t, gaps, "the frame 10ms after a stall is dropped")
}

func TestThrottleDisabled(t *testing.T) {
	src := ReaderFunc(func() (image.Image, func(), error) { return nil, noopRelease, nil })
	r := Throttle(0)(src)
	_, isFunc := r.(ReaderFunc)
	assert.True(t, isFunc)
}

func TestThrottleForwardsError(t *testing.T) {
	errBroken := errors.New("broken")
	r := Throttle(30)(ReaderFunc(func() (image.Image, func(), error) {
		return nil, noopRelease, errBroken
	}))

	_, _, err := r.Read()
	assert.ErrorIs(t, err, errBroken)
}
