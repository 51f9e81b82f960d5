package activity

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LogHook writes every event to logger at debug level, failures at warn.
func LogHook(logger *zap.Logger) Hook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return HookFunc(func(_ context.Context, event Event) error {
		fields := []zap.Field{
			zap.String("verb", event.Verb),
			zap.String("store", event.Store),
			zap.String("object_id", event.ObjectID),
		}
		if ms, ok := event.Metadata["duration_ms"]; ok {
			fields = append(fields, zap.Any("duration_ms", ms))
		}
		if msg, ok := event.Metadata["error"].(string); ok {
			logger.Warn("store activity", append(fields, zap.String("error", msg))...)
			return nil
		}
		logger.Debug("store activity", fields...)
		return nil
	})
}

// CaptureHook records events; tests and examples read them back.
type CaptureHook struct {
	// Err is returned from every Notify.
	Err error

	mu     sync.Mutex
	events []Event
}

func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.Err
}

// Events returns a copy of the recorded events.
func (h *CaptureHook) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

// Verbs returns the recorded verbs in order.
func (h *CaptureHook) Verbs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, len(h.events))
	for i, event := range h.events {
		verbs[i] = event.Verb
	}
	return verbs
}
