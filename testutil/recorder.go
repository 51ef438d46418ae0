package testutil

import (
	"slices"
	"strings"
	"sync"
)

// Recorder collects events in the order they happen. The zero value is
// ready to use and safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// Add appends an event.
func (r *Recorder) Add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// String joins the events with spaces.
func (r *Recorder) String() string {
	return strings.Join(r.Events(), " ")
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
