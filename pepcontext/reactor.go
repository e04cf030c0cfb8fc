package pepcontext

import "context"

// Reactor is a single-goroutine command loop: every party (am/ts/ks/sf)
// runs one, so request handling never races against ledger/cache state,
// and no per-request goroutines touch shared state directly.
type Reactor struct {
	commands chan func()
	done     chan struct{}
}

// NewReactor starts the reactor's worker goroutine. queueDepth bounds how
// many submitted commands may be pending before Submit blocks.
func NewReactor(queueDepth int) *Reactor {
	r := &Reactor{
		commands: make(chan func(), queueDepth),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Reactor) run() {
	defer close(r.done)
	for cmd := range r.commands {
		cmd()
	}
}

// Submit enqueues fn to run on the reactor goroutine, blocking until it
// completes or ctx is cancelled. Cancellation after fn has started running
// does not interrupt fn; it only stops Submit from waiting on it.
func (r *Reactor) Submit(ctx context.Context, fn func()) error {
	result := make(chan struct{})
	wrapped := func() {
		fn()
		close(result)
	}
	select {
	case r.commands <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-result:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the command queue and waits for the worker goroutine to
// drain it.
func (r *Reactor) Stop() {
	close(r.commands)
	<-r.done
}
