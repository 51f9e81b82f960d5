package state

import (
	"context"
	"sync"

	declare "github.com/goliatone/go-declare"
)

// Persistence adapts a Store of context snapshots to declare.Persistence.
// It remembers the ETag of the last snapshot loaded or saved per name, so a
// save over a snapshot written by someone else fails with ErrETagMismatch.
type Persistence struct {
	store Store[declare.ContextState]

	mu    sync.Mutex
	metas map[string]Meta
}

var _ declare.Persistence = (*Persistence)(nil)

func NewPersistence(store Store[declare.ContextState]) *Persistence {
	return &Persistence{store: store, metas: map[string]Meta{}}
}

func (p *Persistence) Load(ctx context.Context, name string) (declare.ContextState, bool, error) {
	if p.store == nil {
		return declare.ContextState{}, false, ErrStoreRequired
	}
	snapshot, meta, ok, err := p.store.Load(ctx, Ref{Name: name})
	if err != nil || !ok {
		return declare.ContextState{}, false, err
	}
	p.mu.Lock()
	p.metas[name] = meta
	p.mu.Unlock()
	return snapshot, true, nil
}

func (p *Persistence) Save(ctx context.Context, name string, snapshot declare.ContextState) error {
	if p.store == nil {
		return ErrStoreRequired
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	meta, err := p.store.Save(ctx, Ref{Name: name}, snapshot, Meta{ETag: p.metas[name].ETag})
	if err != nil {
		return err
	}
	p.metas[name] = meta
	return nil
}

// Meta returns the metadata of the last snapshot loaded or saved for name.
func (p *Persistence) Meta(name string) (Meta, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	meta, ok := p.metas[name]
	return meta.clone(), ok
}
