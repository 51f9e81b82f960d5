package declare

import (
	"context"
	"fmt"

	"github.com/goliatone/go-declare/internal/hydrate"
)

// CreateFunc builds a resource for id from plain JSON data.
type CreateFunc func(ctx context.Context, id string, data any) (*Resource, error)

// NewConstructor returns a Constructor whose ids are prefix followed by the
// declared name.
func NewConstructor(identity, prefix string, create CreateFunc, policy UpdatePolicy) Constructor {
	return &funcConstructor{
		identity: identity,
		prefix:   prefix,
		create:   create,
		policy:   policy,
	}
}

type funcConstructor struct {
	identity string
	prefix   string
	create   CreateFunc
	policy   UpdatePolicy
}

func (c *funcConstructor) Identity() string              { return c.identity }
func (c *funcConstructor) GenerateID(name string) string { return c.prefix + name }
func (c *funcConstructor) UpdatePolicy() UpdatePolicy    { return c.policy }

func (c *funcConstructor) Create(ctx context.Context, id string, data any) (*Resource, error) {
	if c.create == nil {
		return nil, fmt.Errorf("declare: constructor %s has no create function", c.identity)
	}
	return c.create(ctx, id, data)
}

// DecodeData hydrates constructor data into T.
func DecodeData[T any](id string, data any) (T, error) {
	return hydrate.Into[T](id, data)
}

// Normalize converts v into plain JSON values so it can be compared with
// serialized data and persisted.
func Normalize(v any) (any, error) {
	out, err := hydrate.Clone(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataNotEncodable, err)
	}
	return out, nil
}
