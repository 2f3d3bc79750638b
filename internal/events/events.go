// Package events publishes import lifecycle events for downstream
// consumers (search indexing, notifications).
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

// Type names an event.
type Type string

const (
	TypePreviewed Type = "import.previewed"
	TypeCompleted Type = "import.completed"
	TypeDiscarded Type = "import.discarded"
)

// Event is the JSON payload written to the topic.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	OwnerID    string    `json:"ownerId"`
	PreviewID  string    `json:"previewId"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`

	// Set for previews.
	Rows     int `json:"rows,omitempty"`
	Errors   int `json:"errors,omitempty"`
	Warnings int `json:"warnings,omitempty"`

	// Set for completed commits.
	Options *importer.Options `json:"options,omitempty"`
	Result  *importer.Result  `json:"result,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(t Type, ownerID, previewID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OwnerID:    ownerID,
		PreviewID:  previewID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent
// use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. Used when Kafka is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
