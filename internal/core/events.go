package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a change notification.
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventUpdated      EventKind = "updated"
	EventDeleted      EventKind = "deleted"
	EventBulkImported EventKind = "bulk_imported"
)

// Event is a change notification delivered to every connected observer.
//
// Payload is a [Bridge] for created and updated, a [DeletedPayload] for
// deleted and an [ImportResult] for bulk_imported.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// NewEvent stamps a payload with a fresh id and time.
func NewEvent(kind EventKind, payload any) Event {
	return Event{
		ID:      uuid.New(),
		Kind:    kind,
		Payload: payload,
		At:      time.Now().UTC(),
	}
}

// DeletedPayload identifies a removed record.
type DeletedPayload struct {
	BIN string `json:"bin"`
}

// Notifier receives change events. Notify must not block: it is called
// while the mutation lock is held.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

type discardNotifier struct{}

func (discardNotifier) Notify(Event) {}
