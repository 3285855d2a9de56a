// Package notify publishes change events for metadata records.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lepinkainen/bookmeta/internal/metadata"
)

// EventType names what happened to a record.
type EventType string

const (
	// MetadataUpdated is sent after a record was written by a refresh or an
	// explicit edit.
	MetadataUpdated EventType = "book.metadata.updated"
	// CoverUpdated is sent after a cover upload.
	CoverUpdated EventType = "book.cover.updated"
)

// Event describes a change to a book's record.
type Event struct {
	ID     string
	Type   EventType
	BookID int64
	Title  string
	At     time.Time
	Record *metadata.Record
}

// NewEvent creates an event with a fresh ULID.
func NewEvent(typ EventType, rec *metadata.Record) Event {
	return Event{
		ID:     ulid.Make().String(),
		Type:   typ,
		BookID: rec.BookID,
		Title:  rec.DisplayTitle(),
		At:     time.Now().UTC(),
		Record: rec,
	}
}

// Notifier receives change events. Implementations must not block for long.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier writes events to the process logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, ev Event) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	msg := "Book metadata updated: " + ev.Title
	if ev.Type == CoverUpdated {
		msg = "Book cover updated: " + ev.Title
	}
	logger.InfoContext(ctx, msg, "event_id", ev.ID, "book_id", ev.BookID)
}

// Fanout delivers every event to each notifier in order.
type Fanout []Notifier

// Notify implements Notifier.
func (f Fanout) Notify(ctx context.Context, ev Event) {
	for _, n := range f {
		n.Notify(ctx, ev)
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
