package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopOrder(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	l.Flush()

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoopSingleGoroutine(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Post(func() {
					mu.Lock()
					running++
					if running > maxSeen {
						maxSeen = running
					}
					mu.Unlock()
					time.Sleep(10 * time.Microsecond)
					mu.Lock()
					running--
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	l.Flush()

	assert.Equal(t, 1, maxSeen)
}

func TestLoopCloseDrains(t *testing.T) {
	l := NewLoop()

	var n int
	block := make(chan struct{})
	l.Post(func() { <-block })
	for i := 0; i < 10; i++ {
		l.Post(func() { n++ })
	}
	l.Close()
	assert.False(t, l.Post(func() { n += 100 }))
	close(block)

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}
	assert.Equal(t, 10, n)

	// Flush after close returns instead of blocking.
	l.Flush()
}

func TestLoopCloseFromPostedFunction(t *testing.T) {
	l := NewLoop()
	l.Post(l.Close)

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}
}

func TestSync(t *testing.T) {
	var s Sync
	ran := false
	assert.True(t, s.Post(func() { ran = true }))
	assert.True(t, ran)

	s.Close()
	assert.False(t, s.Post(func() { t.Fatal("ran after close") }))
}
