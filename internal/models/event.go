package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// EventTypeBeforeAnnotationCreated fires when the user starts a new
	// annotation, before it is stored.
	EventTypeBeforeAnnotationCreated EventType = "annotation.before_created"
	EventTypeAnnotationCreated       EventType = "annotation.created"
	EventTypeAnnotationUpdated       EventType = "annotation.updated"
	EventTypeAnnotationDeleted       EventType = "annotation.deleted"
	EventTypeAnnotationsLoaded       EventType = "annotations.loaded"

	// System events
	EventTypeError EventType = "error"
)

// Event represents an append-only log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// URI is the document the event relates to.
	URI string `json:"uri,omitempty"`

	// AnnotationID is the id (or local tag) of the related annotation.
	AnnotationID string `json:"annotation_id,omitempty"`

	// Annotation carries the annotation for in-process subscribers. It is not
	// persisted; Payload holds the stored form.
	Annotation *Annotation `json:"-"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewAnnotationEvent builds an event for an annotation lifecycle change.
func NewAnnotationEvent(eventType EventType, ann *Annotation) *Event {
	event := &Event{Type: eventType, Annotation: ann}
	if ann != nil {
		event.URI = ann.URI
		event.AnnotationID = ann.Key()
	}
	return event
}

// AnnotationsLoadedPayload is the payload for annotations.loaded events.
type AnnotationsLoadedPayload struct {
	Count  int    `json:"count"`
	Source string `json:"source"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}
