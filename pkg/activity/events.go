package activity

import (
	"strings"
	"time"
)

// ResourceEventInput describes one resource lifecycle step.
type ResourceEventInput struct {
	Store         string
	ResourceID    string
	ConstructorID string
	Name          string
	Duration      time.Duration
	Err           error
	OccurredAt    time.Time
}

// ResourceEvent builds the event for one of the resource verbs. Metadata
// carries constructor_id, name, duration_ms and error when known.
func ResourceEvent(verb string, input ResourceEventInput) Event {
	metadata := map[string]any{}
	if input.ConstructorID != "" {
		metadata["constructor_id"] = input.ConstructorID
	}
	if input.Name != "" {
		metadata["name"] = input.Name
	}
	if input.Duration > 0 {
		metadata["duration_ms"] = input.Duration.Milliseconds()
	}
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}
	return Event{
		Verb:       verb,
		Store:      input.Store,
		ObjectType: ObjectResource,
		ObjectID:   strings.TrimSpace(input.ResourceID),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

// SavedEvent builds the event emitted after a store is persisted.
func SavedEvent(store string, entries int, occurredAt time.Time) Event {
	return Event{
		Verb:       VerbSaved,
		Store:      store,
		ObjectType: ObjectContext,
		ObjectID:   store,
		Metadata:   map[string]any{"entries": entries},
		OccurredAt: occurredAt,
	}
}
