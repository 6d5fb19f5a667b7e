package supervisor

import "sync"

// StopBus is a one-shot global stop event. Subscribers register a callback
// that runs exactly once when Trigger fires; the returned func deregisters
// the callback if it has not fired yet. Mirrors the host-shutdown listener
// the supervisor hangs transport teardown on.
type StopBus struct {
	mu        sync.Mutex
	triggered bool
	next      int
	subs      map[int]func()
}

// NewStopBus creates an empty, untriggered bus
func NewStopBus() *StopBus {
	return &StopBus{subs: make(map[int]func())}
}

// Subscribe registers fn to run on Trigger. If the bus already fired, fn
// runs immediately. The returned cancel func is idempotent.
func (b *StopBus) Subscribe(fn func()) (cancel func()) {
	b.mu.Lock()
	if b.triggered {
		b.mu.Unlock()
		fn()
		return func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Trigger fires the bus. Every registered callback runs once; later
// Trigger calls are no-ops.
func (b *StopBus) Trigger() {
	b.mu.Lock()
	if b.triggered {
		b.mu.Unlock()
		return
	}
	b.triggered = true
	subs := b.subs
	b.subs = make(map[int]func())
	b.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}
