package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrETagMismatch  = errors.New("state: etag mismatch")
	ErrInvalidRef    = errors.New("state: invalid ref")
	ErrStoreRequired = errors.New("state: store is required")
)

// Ref identifies one persisted snapshot.
type Ref struct {
	Name string
}

// Identifier returns the storage key for r. FileStore uses names as file
// names, so path separators and dot segments are rejected everywhere.
func (r Ref) Identifier() (string, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidRef)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q is not a plain name", ErrInvalidRef, name)
	}
	return name, nil
}

// Meta is storage-owned metadata. SnapshotID changes on every save; ETag is
// the sha256 of the encoded snapshot.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

func (m Meta) clone() Meta {
	m.Extra = maps.Clone(m.Extra)
	return m
}

// overlay returns m with every field set in o replacing its own.
func (m Meta) overlay(o Meta) Meta {
	if o.SnapshotID != "" {
		m.SnapshotID = o.SnapshotID
	}
	if o.ETag != "" {
		m.ETag = o.ETag
	}
	if !o.UpdatedAt.IsZero() {
		m.UpdatedAt = o.UpdatedAt
	}
	if o.Extra != nil {
		m.Extra = o.Extra
	}
	return m
}

// stamped is the Meta reported for payload saved at now.
func (m Meta) stamped(payload []byte, now time.Time) Meta {
	out := m.clone()
	out.SnapshotID = newSnapshotID()
	out.ETag = etagOf(payload)
	out.UpdatedAt = now.UTC().Truncate(time.Millisecond)
	return out
}

// Store loads and saves one snapshot per Ref. Save overwrites the whole
// snapshot. When meta.ETag is set, Save fails with ErrETagMismatch unless it
// matches the stored snapshot.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits a loaded snapshot in place.
type Mutator[T any] func(*T) error

// Mutate loads the snapshot for ref, applies fn and saves the result with
// the loaded ETag, so a concurrent writer surfaces as ErrETagMismatch. A
// missing snapshot starts from the zero value. A non-empty meta.ETag must
// match the loaded snapshot.
func Mutate[T any](ctx context.Context, store Store[T], ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	switch {
	case store == nil:
		return zero, Meta{}, ErrStoreRequired
	case fn == nil:
		return zero, Meta{}, errors.New("state: mutator is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return zero, Meta{}, err
	}

	snapshot, loaded, ok, err := store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("state: load %q: %w", ref.Name, err)
	}
	if !ok {
		snapshot, loaded = zero, Meta{}
	}
	if meta.ETag != "" && loaded.ETag != "" && meta.ETag != loaded.ETag {
		return zero, loaded, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loaded.ETag)
	}
	if err := fn(&snapshot); err != nil {
		return zero, loaded, err
	}
	saved, err := store.Save(ctx, ref, snapshot, loaded.overlay(meta))
	if err != nil {
		return zero, loaded, fmt.Errorf("state: save %q: %w", ref.Name, err)
	}
	return snapshot, saved, nil
}

func encode[T any](snapshot T) ([]byte, error) {
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("state: encode: %w", err)
	}
	return payload, nil
}

func decode[T any](payload []byte) (T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("state: decode: %w", err)
	}
	return out, nil
}

func etagOf(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// checkETag compares an expected ETag with the stored one. An empty
// expectation always passes.
func checkETag(expected, current string, exists bool) error {
	if expected == "" || (exists && expected == current) {
		return nil
	}
	return fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, expected, current)
}

func newSnapshotID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
