package events

import (
	"context"
	"sync"
)

// Recorder is an in-memory Publisher that retains every envelope. Tests use
// it to assert on what the gateway published.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
}

var _ Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(_ context.Context, e Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.events))
	copy(out, r.events)
	return out
}
