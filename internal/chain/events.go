package chain

import (
	"context"
	"sync"
	"time"
)

// Fields carries an event's payload. Amounts are decimal strings in wei and
// addresses are checksummed hex.
type Fields map[string]string

// Event is a log entry emitted by a committed transaction.
type Event struct {
	TxID     string    `json:"tx_id"`
	Seq      uint64    `json:"seq"`
	Index    int       `json:"index"`
	Time     time.Time `json:"time"`
	Contract Address   `json:"contract"`
	Name     string    `json:"name"`
	Fields   Fields    `json:"fields"`
}

// Sink receives the events of every committed transaction, in commit order.
type Sink interface {
	Publish(ctx context.Context, events []Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, events []Event) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, events []Event) error {
	return f(ctx, events)
}

// Recorder is an in-memory Sink that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Sink.
func (r *Recorder) Publish(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Named returns the recorded events called name.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
