// Package notify posts workshop events (job card saved, card updated) to
// chat channels. Delivery is best effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"sync"
)

// Sidebar colors.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#439fe0"
	ColorWarning = "#daa038"
)

// Notifier delivers an Event to one destination.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// Event is a message with an optional structured attachment.
type Event struct {
	Title  string
	Body   string
	Color  string
	URL    string
	Fields []Field
}

// Field is a key-value pair rendered in the attachment.
type Field struct {
	Name  string
	Value string
	Short bool // render side-by-side
}

// Text renders the event as plain text, used as a fallback body.
func (e Event) Text() string {
	if e.Body == "" {
		return e.Title
	}
	return e.Title + "\n" + e.Body
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, evt Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps every event it receives. Used in tests and dry runs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Notify(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
