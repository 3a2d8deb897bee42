package session

import "sync"

// Outbox is the FIFO buffer a bot pushes its replies into.
//
// The buffer is unbounded so a bot can emit any number of replies in one
// turn without blocking. Push is safe from any goroutine; the session drains
// the whole buffer after each turn.
type Outbox struct {
	mu     sync.Mutex
	items  []Output
	closed bool
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{items: make([]Output, 0, 8)}
}

// Push appends an output. Returns false if the outbox is closed.
func (o *Outbox) Push(out Output) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return false
	}
	o.items = append(o.items, out)
	return true
}

// DrainAll removes and returns every buffered output in push order.
// Returns an empty (non-nil) slice when nothing is buffered.
func (o *Outbox) DrainAll() []Output {
	o.mu.Lock()
	defer o.mu.Unlock()

	drained := make([]Output, len(o.items))
	copy(drained, o.items)

	// Drop references so payloads can be collected.
	clear(o.items)
	o.items = o.items[:0]
	return drained
}

// Len returns the number of buffered outputs.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// Close rejects further pushes. Buffered outputs are kept.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}
