// Package activity reports resource store lifecycle events to hooks.
//
// The store builds one Event per hydration, creation, update, reuse, failure
// and save. An Emitter stamps defaults and fans each event out to its hooks;
// hook failures never fail the store operation that produced the event.
package activity

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "declare"

// Verbs emitted by the resource store.
const (
	VerbHydrated = "resource.hydrated"
	VerbCreated  = "resource.created"
	VerbUpdated  = "resource.updated"
	VerbReused   = "resource.reused"
	VerbFailed   = "resource.failed"
	VerbSaved    = "context.saved"
)

// Object types carried by events.
const (
	ObjectResource = "resource"
	ObjectContext  = "context"
)

// Event describes one lifecycle occurrence in a named store.
type Event struct {
	Verb       string
	Store      string
	ObjectType string
	ObjectID   string
	ActorID    string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Valid reports whether the event names a verb and an object.
func (e Event) Valid() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Normalize trims identifiers, copies metadata and stamps a missing time.
func Normalize(event Event) Event {
	event.Verb = strings.TrimSpace(event.Verb)
	event.Store = strings.TrimSpace(event.Store)
	event.ObjectType = strings.TrimSpace(event.ObjectType)
	event.ObjectID = strings.TrimSpace(event.ObjectID)
	event.ActorID = strings.TrimSpace(event.ActorID)
	event.Channel = strings.TrimSpace(event.Channel)
	if len(event.Metadata) == 0 {
		event.Metadata = nil
	} else {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return event
}

// Hook receives normalized events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Config sets the defaults an Emitter stamps on events.
type Config struct {
	Channel string
	ActorID string
}

// Emitter fans events out to hooks. A nil Emitter, or one without hooks,
// drops everything.
type Emitter struct {
	hooks   []Hook
	channel string
	actorID string
}

// NewEmitter returns an emitter for the non-nil hooks.
func NewEmitter(cfg Config, hooks ...Hook) *Emitter {
	e := &Emitter{
		channel: strings.TrimSpace(cfg.Channel),
		actorID: strings.TrimSpace(cfg.ActorID),
	}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	for _, hook := range hooks {
		if hook != nil {
			e.hooks = append(e.hooks, hook)
		}
	}
	return e
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit normalizes event, fills channel and actor when missing and notifies
// every hook. Invalid events are dropped. Hook errors are joined.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	event = Normalize(event)
	if !event.Valid() {
		return nil
	}
	if event.Channel == "" {
		event.Channel = e.channel
	}
	if event.ActorID == "" {
		event.ActorID = e.actorID
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, hook := range e.hooks {
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
