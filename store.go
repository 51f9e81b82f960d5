package declare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-declare/pkg/activity"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Store memoizes named resources across runs. Each declaration resolves to
// a content id; live resources are reused unless their constructor's update
// policy asks for a rebuild.
type Store struct {
	name             string
	registry         *Registry
	persistence      Persistence
	logger           *zap.Logger
	emitter          *activity.Emitter
	skipUnknown      bool
	retainUndeclared bool
	hydrateLimit     int
	now              func() time.Time

	mu       sync.Mutex
	entries  map[string]*liveEntry
	owners   map[string]string
	order    []string
	reserved map[string]int
	declared map[string]struct{}
	hydrated []string

	flights singleflight.Group
}

type liveEntry struct {
	resource *Resource
	data     any
}

// Open builds the store called name. Persisted entries are hydrated through
// the registry; an entry naming an unregistered constructor fails with
// ErrUnknownConstructor unless WithSkipUnknown is set.
func Open(ctx context.Context, name string, registry *Registry, opts ...StoreOption) (*Store, error) {
	if registry == nil {
		registry = &Registry{}
	}
	s := &Store{
		name:     name,
		registry: registry,
		logger:   zap.NewNop(),
		now:      time.Now,
		entries:  map[string]*liveEntry{},
		owners:   map[string]string{},
		reserved: map[string]int{},
		declared: map[string]struct{}{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With(zap.String("store", name))
	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) hydrate(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	state, found, err := s.persistence.Load(ctx, s.name)
	if err != nil {
		return fmt.Errorf("declare: load %s: %w", s.name, err)
	}
	if !found {
		s.logger.Debug("no persisted state")
		return nil
	}

	type job struct {
		entry       StateEntry
		constructor Constructor
	}
	jobs := make([]job, 0, state.Len())
	for _, entry := range state.Entries {
		c, ok := s.registry.Lookup(entry.ConstructorID)
		if !ok {
			if s.skipUnknown {
				s.logger.Warn("skipping entry with unknown constructor",
					zap.String("id", entry.ID),
					zap.String("constructor_id", entry.ConstructorID))
				continue
			}
			return fmt.Errorf("%w: %q for entry %s", ErrUnknownConstructor, entry.ConstructorID, entry.ID)
		}
		jobs = append(jobs, job{entry: entry, constructor: c})
	}

	built := make([]*Resource, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if s.hydrateLimit > 0 {
		g.SetLimit(s.hydrateLimit)
	}
	for i, j := range jobs {
		g.Go(func() error {
			start := time.Now()
			res, err := j.constructor.Create(gctx, j.entry.ID, j.entry.Data)
			if err == nil && res == nil {
				err = ErrNilResource
			}
			if err != nil {
				return &ConstructorError{ID: j.entry.ID, ConstructorID: j.entry.ConstructorID, Err: err}
			}
			if res.ConstructorID == "" {
				res.ConstructorID = j.constructor.Identity()
			}
			built[i] = res
			s.emit(ctx, activity.VerbHydrated, activity.ResourceEventInput{
				ResourceID:    j.entry.ID,
				ConstructorID: res.ConstructorID,
				Duration:      time.Since(start),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("declare: hydrate %s: %w", s.name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range jobs {
		s.entries[j.entry.ID] = &liveEntry{resource: built[i], data: j.entry.Data}
		s.owners[j.entry.ID] = built[i].ConstructorID
		s.hydrated = append(s.hydrated, j.entry.ID)
	}
	s.logger.Info("hydrated", zap.Int("entries", len(jobs)))
	return nil
}

// Declare resolves name against decl and returns the live instance.
//
// The id derived from name is appended to the declaration log. A live
// resource is reused unless the constructor's update policy reports that the
// new data requires a rebuild; a missing resource is built. Create failures
// come back as *ConstructorError and leave the store unchanged.
func (s *Store) Declare(ctx context.Context, name string, decl Declaration) (any, error) {
	c := decl.Constructor
	if c == nil {
		return nil, ErrNilConstructor
	}
	identity := c.Identity()
	if _, ok := s.registry.Lookup(identity); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConstructor, identity)
	}
	data, err := Normalize(decl.Data)
	if err != nil {
		return nil, err
	}
	id := c.GenerateID(name)

	s.mu.Lock()
	if owner, taken := s.owners[id]; taken && owner != identity {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q owned by %s, declared by %s", ErrIdentifierCollision, id, owner, identity)
	}
	s.owners[id] = identity
	if s.reserved[id] > 0 {
		s.reserved[id]--
	} else {
		s.order = append(s.order, id)
	}
	s.declared[id] = struct{}{}
	current := s.entries[id]
	s.mu.Unlock()

	if current != nil {
		previous, err := s.serialize(current)
		if err != nil {
			return nil, err
		}
		update, err := c.UpdatePolicy().RequiresUpdate(ctx, UpdateCheck{ID: id, Data: data, Previous: previous})
		if err != nil {
			return nil, fmt.Errorf("declare: update check %s: %w", id, err)
		}
		if !update {
			s.logger.Debug("reused", zap.String("id", id))
			s.emit(ctx, activity.VerbReused, activity.ResourceEventInput{
				ResourceID:    id,
				ConstructorID: identity,
				Name:          name,
			})
			return current.resource.Instance, nil
		}
	}

	res, err := s.build(ctx, c, name, id, data, current != nil)
	if err != nil {
		return nil, err
	}
	return res.Instance, nil
}

func (s *Store) build(ctx context.Context, c Constructor, name, id string, data any, replacing bool) (*Resource, error) {
	identity := c.Identity()
	key, err := flightKey(id, data)
	if err != nil {
		return nil, err
	}
	v, err, _ := s.flights.Do(key, func() (any, error) {
		start := time.Now()
		res, err := c.Create(ctx, id, data)
		if err == nil && res == nil {
			err = ErrNilResource
		}
		if err != nil {
			return nil, &ConstructorError{ID: id, ConstructorID: identity, Err: err}
		}
		if res.ConstructorID == "" {
			res.ConstructorID = identity
		}
		s.mu.Lock()
		s.entries[id] = &liveEntry{resource: res, data: data}
		s.mu.Unlock()

		verb, msg := activity.VerbCreated, "created"
		if replacing {
			verb, msg = activity.VerbUpdated, "updated"
		}
		elapsed := time.Since(start)
		s.logger.Info(msg, zap.String("id", id), zap.Duration("duration", elapsed))
		s.emit(ctx, verb, activity.ResourceEventInput{
			ResourceID:    id,
			ConstructorID: identity,
			Name:          name,
			Duration:      elapsed,
		})
		return res, nil
	})
	if err != nil {
		s.logger.Error("build failed", zap.String("id", id), zap.Error(err))
		s.emit(ctx, activity.VerbFailed, activity.ResourceEventInput{
			ResourceID:    id,
			ConstructorID: identity,
			Name:          name,
			Err:           err,
		})
		return nil, err
	}
	return v.(*Resource), nil
}

func flightKey(id string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDataNotEncodable, err)
	}
	return id + "\x00" + string(raw), nil
}

func (s *Store) serialize(entry *liveEntry) (any, error) {
	if entry.resource.Serialize == nil {
		return entry.data, nil
	}
	return Normalize(entry.resource.Serialize())
}

// Resolve declares name and asserts the instance type.
func Resolve[T any](ctx context.Context, s *Store, name string, decl Declaration) (T, error) {
	var zero T
	v, err := s.Declare(ctx, name, decl)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %T", ErrInstanceType, name, v, zero)
	}
	return typed, nil
}

// State snapshots the live entries in first-declaration order. Ids whose
// build failed are skipped. Hydrated entries that were not declared are
// dropped unless the store was opened WithRetainUndeclared.
func (s *Store) State() (ContextState, error) {
	type pending struct {
		id    string
		entry *liveEntry
	}
	s.mu.Lock()
	seen := make(map[string]struct{}, len(s.order))
	list := make([]pending, 0, len(s.entries))
	for _, id := range s.order {
		if _, dup := seen[id]; dup {
			continue
		}
		if _, ok := s.declared[id]; !ok {
			continue
		}
		seen[id] = struct{}{}
		if entry, ok := s.entries[id]; ok {
			list = append(list, pending{id: id, entry: entry})
		}
	}
	if s.retainUndeclared {
		for _, id := range s.hydrated {
			if _, ok := seen[id]; ok {
				continue
			}
			if entry, ok := s.entries[id]; ok {
				list = append(list, pending{id: id, entry: entry})
			}
		}
	}
	s.mu.Unlock()

	state := ContextState{Entries: make([]StateEntry, 0, len(list))}
	for _, p := range list {
		data, err := s.serialize(p.entry)
		if err != nil {
			return ContextState{}, fmt.Errorf("declare: serialize %s: %w", p.id, err)
		}
		state.Entries = append(state.Entries, StateEntry{
			ID:            p.id,
			ConstructorID: p.entry.resource.ConstructorID,
			Data:          data,
		})
	}
	return state, nil
}

// Save persists State through the configured Persistence.
func (s *Store) Save(ctx context.Context) error {
	if s.persistence == nil {
		return ErrNoPersistence
	}
	state, err := s.State()
	if err != nil {
		return err
	}
	if err := s.persistence.Save(ctx, s.name, state); err != nil {
		return fmt.Errorf("declare: save %s: %w", s.name, err)
	}
	s.logger.Info("saved", zap.Int("entries", state.Len()))
	if s.emitter.Enabled() {
		if err := s.emitter.Emit(ctx, activity.SavedEvent(s.name, state.Len(), s.now())); err != nil {
			s.logger.Warn("activity emit failed", zap.Error(err))
		}
	}
	return nil
}

// Name returns the store name.
func (s *Store) Name() string { return s.name }

// Reserve appends the id c derives from name to the declaration log without
// declaring it. The next Declare of that id fills the reserved slot instead
// of appending, so callers that declare concurrently can fix the saved order
// up front. A reserved id that is never declared is left out of State.
func (s *Store) Reserve(name string, c Constructor) {
	if c == nil {
		return
	}
	id := c.GenerateID(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append(s.order, id)
	s.reserved[id]++
}

// Order returns every declared or reserved id in issuance order, duplicates
// included.
func (s *Store) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Lookup returns the live instance stored under id.
func (s *Store) Lookup(id string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return entry.resource.Instance, true
}

// Len reports the number of live resources.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) emit(ctx context.Context, verb string, input activity.ResourceEventInput) {
	if !s.emitter.Enabled() {
		return
	}
	input.Store = s.name
	if input.OccurredAt.IsZero() {
		input.OccurredAt = s.now()
	}
	if err := s.emitter.Emit(ctx, activity.ResourceEvent(verb, input)); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("activity emit failed", zap.String("verb", verb), zap.Error(err))
	}
}
