package declare

import (
	"time"

	"github.com/goliatone/go-declare/pkg/activity"
	"go.uber.org/zap"
)

// StoreOption configures Open.
type StoreOption func(*Store)

// WithPersistence sets where the store is loaded from and saved to. Without
// it the store starts empty and Save fails with ErrNoPersistence.
func WithPersistence(p Persistence) StoreOption {
	return func(s *Store) {
		s.persistence = p
	}
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivityHooks emits resource lifecycle events to hooks.
func WithActivityHooks(hooks ...activity.Hook) StoreOption {
	return func(s *Store) {
		s.emitter = activity.NewEmitter(activity.Config{}, hooks...)
	}
}

// WithEmitter emits resource lifecycle events through a preconfigured emitter.
func WithEmitter(emitter *activity.Emitter) StoreOption {
	return func(s *Store) {
		s.emitter = emitter
	}
}

// WithSkipUnknown drops persisted entries whose constructor is not
// registered instead of failing Open.
func WithSkipUnknown() StoreOption {
	return func(s *Store) {
		s.skipUnknown = true
	}
}

// WithRetainUndeclared keeps hydrated entries that were never declared
// when saving. They are written after the declared ones.
func WithRetainUndeclared() StoreOption {
	return func(s *Store) {
		s.retainUndeclared = true
	}
}

// WithHydrateConcurrency bounds the number of concurrent Create calls
// during Open. Values below one mean no limit.
func WithHydrateConcurrency(n int) StoreOption {
	return func(s *Store) {
		s.hydrateLimit = n
	}
}

// WithClock overrides the time source used for events.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
