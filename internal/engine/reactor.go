package engine

import (
	"context"
	"sync"
)

// Reactor is the single-threaded run loop the engine serializes all
// state mutation on. Work is submitted as closures from any goroutine
// and executed in order on the goroutine that called Run.
//
// The signal channel has capacity one so concurrent submits coalesce:
// the loop drains the whole queue per wakeup.
type Reactor struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}

	stopped  bool
	stopErr  error
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewReactor creates an idle reactor.
func NewReactor() *Reactor {
	return &Reactor{
		signal: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

// Submit enqueues fn for execution on the reactor goroutine. Safe to
// call from any goroutine, including from inside another submitted fn.
// Submissions after stop are dropped.
func (r *Reactor) Submit(fn func()) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, fn)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// StopError requests the loop stop with err as Run's return value. The
// first call wins. Already-queued work ahead of the stop still runs.
func (r *Reactor) StopError(err error) {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopErr = err
		r.mu.Unlock()
		close(r.stopCh)
	})
}

// Stop requests a clean shutdown of the loop.
func (r *Reactor) Stop() { r.StopError(nil) }

// Run executes submitted work until Stop, StopError, or context
// cancellation. It drains the queue once more after a stop request so
// in-flight completions are not lost, then refuses further submits.
func (r *Reactor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.StopError(ctx.Err())
			r.shutdown()
			return r.stopErr
		case <-r.stopCh:
			r.shutdown()
			return r.stopErr
		case <-r.signal:
			r.drain()
		}
	}
}

// drain runs every closure currently queued, including closures queued
// by the closures themselves.
func (r *Reactor) drain() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}
		batch := r.queue
		r.queue = nil
		r.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}

func (r *Reactor) shutdown() {
	r.drain()
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}
