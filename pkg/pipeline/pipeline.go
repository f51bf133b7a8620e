// Package pipeline moves frames from a capture session to consumers through
// a single slot. A newer frame replaces an unconsumed older one, so slow
// consumers only ever see the most recent frame. Frames carry the generation
// of the session that produced them; only the current generation is kept.
package pipeline

import (
	"image"
	"sync"
	"sync/atomic"
	"time"
)

// Frame is one captured image. Frames are reference counted; the pipeline
// holds one reference and the underlying buffer is released when the last
// one is dropped.
type Frame struct {
	Image image.Image
	Seq   uint64
	Gen   uint64
	Time  time.Time

	refs    atomic.Int32
	release func()
}

// Retain adds a reference. It must only be called by a holder of a reference.
func (f *Frame) Retain() *Frame {
	f.refs.Add(1)
	return f
}

// Release drops a reference.
func (f *Frame) Release() {
	if f.refs.Add(-1) == 0 && f.release != nil {
		f.release()
	}
}

// Pipeline is the latest-frame exchange. Only one delivery loop runs at a
// time; it is started on demand by Put.
type Pipeline struct {
	deliver func(*Frame)

	slot    atomic.Pointer[Frame]
	running atomic.Bool
	seq     atomic.Uint64
	loops   sync.WaitGroup

	// gen is written under mu and read without it on the hot path.
	gen    atomic.Uint64
	mu     sync.Mutex
	latest *Frame

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a pipeline calling deliver for every frame it drains. The
// frame is only borrowed for the duration of the call.
func New(deliver func(*Frame)) *Pipeline {
	if deliver == nil {
		deliver = func(*Frame) {}
	}
	return &Pipeline{deliver: deliver}
}

// Put hands img of generation gen to the pipeline and returns its sequence
// number. It never blocks. release runs once the pipeline and every consumer
// are done with img, right away when gen is not the current generation.
func (p *Pipeline) Put(gen uint64, img image.Image, release func()) uint64 {
	f := &Frame{
		Image:   img,
		Seq:     p.seq.Add(1),
		Gen:     gen,
		Time:    time.Now(),
		release: release,
	}
	f.refs.Store(1)

	if gen != p.gen.Load() {
		p.dropped.Add(1)
		f.Release()
		return f.Seq
	}

	if old := p.slot.Swap(f); old != nil {
		p.dropped.Add(1)
		old.Release()
	}
	p.kick()
	return f.Seq
}

func (p *Pipeline) kick() {
	if p.running.CompareAndSwap(false, true) {
		p.loops.Add(1)
		go p.loop()
	}
}

func (p *Pipeline) loop() {
	defer p.loops.Done()

	for {
		for f := p.slot.Swap(nil); f != nil; f = p.slot.Swap(nil) {
			if f.Gen != p.gen.Load() {
				p.dropped.Add(1)
				f.Release()
				continue
			}
			p.deliver(f)
			p.setLatest(f)
			p.delivered.Add(1)
		}

		p.running.Store(false)
		// A frame stored between the last Swap and the Store above has
		// seen running as true and not started a loop.
		if p.slot.Load() == nil || !p.running.CompareAndSwap(false, true) {
			return
		}
	}
}

// setLatest keeps f as the latest frame unless its generation ended while
// it was being delivered.
func (p *Pipeline) setLatest(f *Frame) {
	p.mu.Lock()
	if f.Gen != p.gen.Load() {
		p.mu.Unlock()
		f.Release()
		return
	}
	old := p.latest
	p.latest = f
	p.mu.Unlock()

	if old != nil {
		old.Release()
	}
}

// Latest returns the most recently delivered frame with a reference the
// caller must Release, or nil if nothing was delivered since the last Reset.
func (p *Pipeline) Latest() *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.latest == nil {
		return nil
	}
	return p.latest.Retain()
}

// Begin makes gen the current generation and drops the pending and the
// latest frame. Frames of other generations, including those being
// delivered, are released instead of kept.
func (p *Pipeline) Begin(gen uint64) {
	p.mu.Lock()
	p.gen.Store(gen)
	old := p.latest
	p.latest = nil
	p.mu.Unlock()

	if old != nil {
		old.Release()
	}
	if f := p.slot.Swap(nil); f != nil {
		p.dropped.Add(1)
		f.Release()
	}
}

// Reset drops the pending and the latest frame and keeps the generation.
func (p *Pipeline) Reset() {
	p.Begin(p.gen.Load())
}

// Wait blocks until no delivery loop is running. It must not be called
// concurrently with Put.
func (p *Pipeline) Wait() {
	p.loops.Wait()
}

// Stats returns the number of delivered and dropped frames.
func (p *Pipeline) Stats() (delivered, dropped uint64) {
	return p.delivered.Load(), p.dropped.Load()
}
