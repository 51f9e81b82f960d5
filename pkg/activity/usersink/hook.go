// Package usersink records store activity in a go-users activity sink, so
// generation runs appear next to the other audit records of the user that
// triggered them.
package usersink

import (
	"context"
	"maps"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-declare/pkg/activity"
)

// Hook is an activity.Hook writing ActivityRecords to Sink.
type Hook struct {
	Sink usertypes.ActivitySink
	// UserID owns every record.
	UserID uuid.UUID
	// TenantID scopes every record; uuid.Nil leaves it unscoped.
	TenantID uuid.UUID
}

var _ activity.Hook = Hook{}

// Notify writes event as an ActivityRecord. The store name lands in
// Data["store"]; an actor that is not a UUID lands in Data["actor"].
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.Normalize(event)
	if !event.Valid() {
		return nil
	}

	data := maps.Clone(event.Metadata)
	if data == nil {
		data = map[string]any{}
	}
	if event.Store != "" {
		data["store"] = event.Store
	}
	actor, err := uuid.Parse(event.ActorID)
	if err != nil {
		actor = uuid.Nil
		if event.ActorID != "" {
			data["actor"] = event.ActorID
		}
	}
	if len(data) == 0 {
		data = nil
	}

	return h.Sink.Log(ctx, usertypes.ActivityRecord{
		UserID:     h.UserID,
		ActorID:    actor,
		TenantID:   h.TenantID,
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	})
}
