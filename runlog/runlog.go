// Package runlog records every completion exchange of a run and writes them
// as a single timestamped JSON artifact. Artifacts are write-once and never
// read back by the store.
package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-declare/completion"
)

// Exchange is one request/response pair.
type Exchange struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	DurationMS int64                `json:"duration_ms"`
	Messages   []completion.Message `json:"messages"`
	Response   string               `json:"response,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Sink receives exchanges as they complete.
type Sink interface {
	Record(Exchange)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Exchange)

// Record implements Sink.
func (f SinkFunc) Record(exchange Exchange) {
	if f != nil {
		f(exchange)
	}
}

// Log accumulates exchanges in memory for one run.
type Log struct {
	runID   string
	started time.Time
	now     func() time.Time

	mu      sync.Mutex
	entries []Exchange
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// New starts a run log.
func New(opts ...Option) *Log {
	l := &Log{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	l.started = l.now().UTC()
	l.runID = newID()
	return l
}

// RunID identifies the run.
func (l *Log) RunID() string { return l.runID }

// Record implements Sink.
func (l *Log) Record(exchange Exchange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, exchange)
}

// Entries returns a copy of the recorded exchanges.
func (l *Log) Entries() []Exchange {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Exchange, len(l.entries))
	copy(out, l.entries)
	return out
}

type document struct {
	RunID     string     `json:"run_id"`
	StartedAt time.Time  `json:"started_at"`
	Exchanges []Exchange `json:"exchanges"`
}

// FileName returns the artifact name derived from the run start time, with
// characters that are awkward in file names replaced by underscores.
func (l *Log) FileName() string {
	stamp := l.started.Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.NewReplacer(":", "_", ".", "_").Replace(stamp)
	return stamp + ".json"
}

// WriteFile writes the run artifact under dir and returns its path.
func (l *Log) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("runlog: create dir: %w", err)
	}
	payload, err := json.MarshalIndent(document{
		RunID:     l.runID,
		StartedAt: l.started,
		Exchanges: l.Entries(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("runlog: encode: %w", err)
	}
	path := filepath.Join(dir, l.FileName())
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("runlog: write: %w", err)
	}
	return path, nil
}

// Wrap records every call made through svc into sink.
func Wrap(svc completion.Service, sink Sink) completion.Service {
	if svc == nil || sink == nil {
		return svc
	}
	return completion.ServiceFunc(func(ctx context.Context, messages []completion.Message) (string, error) {
		started := time.Now()
		reply, err := svc.Complete(ctx, messages)
		exchange := Exchange{
			ID:         newID(),
			StartedAt:  started.UTC(),
			DurationMS: time.Since(started).Milliseconds(),
			Messages:   append([]completion.Message(nil), messages...),
			Response:   reply,
		}
		if err != nil {
			exchange.Error = err.Error()
		}
		sink.Record(exchange)
		return reply, err
	})
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
