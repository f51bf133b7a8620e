// Package dispatch runs host-facing callbacks on one goroutine, in the order
// they were posted.
package dispatch

import (
	"sync"
)

// Dispatcher executes posted functions. Post must not block the caller on
// the execution of f.
type Dispatcher interface {
	Post(f func()) bool
	Close()
}

var (
	_ Dispatcher = (*Loop)(nil)
	_ Dispatcher = (*Sync)(nil)
)

// Loop drains a FIFO of functions on a single goroutine.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewLoop starts a loop.
func NewLoop() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post appends f to the queue. It reports false once the loop is closed.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, f)
	l.cond.Signal()
	return true
}

// Close stops accepting functions. What is already queued still runs; Done
// is closed after the last of it.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.cond.Signal()
	}
}

// Done is closed once the loop has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Flush blocks until every function posted before the call has run. It must
// not be called from a posted function.
func (l *Loop) Flush() {
	ch := make(chan struct{})
	if !l.Post(func() { close(ch) }) {
		<-l.done
		return
	}
	<-ch
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		f := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		f()
	}
}

// Sync runs every posted function immediately on the caller's goroutine.
type Sync struct {
	mu     sync.Mutex
	closed bool
}

func (s *Sync) Post(f func()) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	f()
	return true
}

func (s *Sync) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
