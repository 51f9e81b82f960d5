// Package completion defines the contract with an external text-completion
// service together with wrappers that bound, trace and record calls.
package completion

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a completion request.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Assistant returns an assistant message.
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// Service produces a reply for a list of messages.
type Service interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, messages []Message) (string, error)

// Complete implements Service.
func (f ServiceFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

var (
	// ErrEmptyReply marks a reply without content.
	ErrEmptyReply = errors.New("completion: empty reply")
	// ErrTimeout marks a call that exceeded its deadline.
	ErrTimeout = errors.New("completion: timeout")
	// ErrNoMessages rejects requests without messages.
	ErrNoMessages = errors.New("completion: no messages")
)

// Error wraps a failure reported by, or on the way to, a provider.
type Error struct {
	Provider string
	Model    string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Model != "" {
		return fmt.Sprintf("completion: %s(%s): %v", e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("completion: %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func wrapError(provider, model string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Provider: provider, Model: model, Err: err}
}

// IsEmptyReply reports whether err marks an empty reply.
func IsEmptyReply(err error) bool {
	return errors.Is(err, ErrEmptyReply)
}

func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return ErrNoMessages
	}
	return nil
}
