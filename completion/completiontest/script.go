// Package completiontest provides a scripted completion.Service for tests.
package completiontest

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-declare/completion"
)

// ErrScriptExhausted is returned when more calls arrive than replies queued.
var ErrScriptExhausted = errors.New("completiontest: script exhausted")

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Script answers calls with queued replies in order, or with Respond when the
// queue is empty and Respond is set. Every call is recorded.
type Script struct {
	Respond func(messages []completion.Message) (string, error)

	mu      sync.Mutex
	replies []Reply
	calls   [][]completion.Message
}

// NewScript queues texts as successful replies.
func NewScript(texts ...string) *Script {
	s := &Script{}
	for _, text := range texts {
		s.replies = append(s.replies, Reply{Text: text})
	}
	return s
}

// Push queues additional replies.
func (s *Script) Push(replies ...Reply) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
	return s
}

// Fail queues a failing reply.
func (s *Script) Fail(err error) *Script {
	return s.Push(Reply{Err: err})
}

// Complete implements completion.Service.
func (s *Script) Complete(ctx context.Context, messages []completion.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	copied := make([]completion.Message, len(messages))
	copy(copied, messages)
	s.calls = append(s.calls, copied)
	if len(s.replies) > 0 {
		next := s.replies[0]
		s.replies = s.replies[1:]
		s.mu.Unlock()
		return next.Text, next.Err
	}
	respond := s.Respond
	s.mu.Unlock()

	if respond != nil {
		return respond(copied)
	}
	return "", ErrScriptExhausted
}

// Calls returns the number of calls received.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Call returns the messages of call i.
func (s *Script) Call(i int) []completion.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.calls) {
		return nil
	}
	return s.calls[i]
}

// Last returns the messages of the most recent call.
func (s *Script) Last() []completion.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}
