package state_test

import (
	"context"
	"errors"
	"testing"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/pkg/state"
)

func sampleState() declare.ContextState {
	return declare.ContextState{Entries: []declare.StateEntry{
		{ID: "static-request:b", ConstructorID: "constructor:static-request", Data: map[string]any{"prompt": "b"}},
		{ID: "json-request:a", ConstructorID: "constructor:json-request", Data: map[string]any{"prompt": "a"}},
	}}
}

func TestPersistenceRoundTripKeepsOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := state.NewPersistence(state.NewFileStore[declare.ContextState](dir))

	if _, found, err := p.Load(ctx, "story"); err != nil || found {
		t.Fatalf("expected nothing persisted, found=%v err=%v", found, err)
	}
	if err := p.Save(ctx, "story", sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, found, err := state.NewPersistence(state.NewFileStore[declare.ContextState](dir)).Load(ctx, "story")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	ids := loaded.IDs()
	if len(ids) != 2 || ids[0] != "static-request:b" || ids[1] != "json-request:a" {
		t.Fatalf("unexpected order %v", ids)
	}
}

func TestPersistenceDetectsConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	backing := state.NewMemoryStore[declare.ContextState]()
	first := state.NewPersistence(backing)
	second := state.NewPersistence(backing)

	if err := first.Save(ctx, "story", sampleState()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, _, err := second.Load(ctx, "story"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := first.Save(ctx, "story", declare.ContextState{}); err != nil {
		t.Fatalf("second save by owner: %v", err)
	}
	err := second.Save(ctx, "story", sampleState())
	if !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}

	meta, ok := first.Meta("story")
	if !ok || meta.SnapshotID == "" {
		t.Fatalf("expected remembered meta, got %+v", meta)
	}
}

func TestMutateRemovesEntry(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore[declare.ContextState]()
	ref := state.Ref{Name: "story"}
	if _, err := store.Save(ctx, ref, sampleState(), state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, meta, err := state.Mutate(ctx, store, ref, state.Meta{}, func(s *declare.ContextState) error {
		if !s.Remove("json-request:a") {
			return errors.New("entry not found")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got.Len() != 1 || meta.ETag == "" {
		t.Fatalf("unexpected result len=%d meta=%+v", got.Len(), meta)
	}
	reloaded, _, _, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := reloaded.Lookup("json-request:a"); ok {
		t.Fatalf("entry still present after mutate")
	}
}

func TestMutateFailureDoesNotSave(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore[declare.ContextState]()
	ref := state.Ref{Name: "story"}
	saved, err := store.Save(ctx, ref, sampleState(), state.Meta{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	boom := errors.New("boom")
	_, _, err = state.Mutate(ctx, store, ref, state.Meta{}, func(*declare.ContextState) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	_, meta, _, _ := store.Load(ctx, ref)
	if meta.ETag != saved.ETag {
		t.Fatalf("snapshot changed after failed mutate")
	}
}

func TestMutateRejectsStaleETag(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore[declare.ContextState]()
	ref := state.Ref{Name: "story"}
	if _, err := store.Save(ctx, ref, sampleState(), state.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_, _, err := state.Mutate(ctx, store, ref, state.Meta{ETag: "stale"}, func(*declare.ContextState) error { return nil })
	if !errors.Is(err, state.ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
}
