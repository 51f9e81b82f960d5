// Package hydrate turns loosely typed JSON values (maps, slices, primitives)
// into typed Go values and back.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNil is returned by Into for a nil value.
var ErrNil = errors.New("hydrate: value is nil")

// Option configures Into.
type Option func(*options)

type options struct {
	strict    bool
	useNumber bool
	allowNil  bool
}

// Strict rejects object keys with no matching struct field.
func Strict() Option { return func(o *options) { o.strict = true } }

// UseNumber keeps numbers as json.Number inside interface values.
func UseNumber() Option { return func(o *options) { o.useNumber = true } }

// AllowNil makes a nil value decode to the zero value of T.
func AllowNil() Option { return func(o *options) { o.allowNil = true } }

// Into converts value into T through a JSON round trip. source names the
// value in errors. value itself is never mutated.
func Into[T any](source string, value any, opts ...Option) (T, error) {
	var (
		out T
		o   options
	)
	for _, opt := range opts {
		opt(&o)
	}
	if source == "" {
		source = "<value>"
	}
	if value == nil {
		if o.allowNil {
			return out, nil
		}
		return out, fmt.Errorf("%w: %s", ErrNil, source)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return out, fmt.Errorf("hydrate: %s: encode: %w", source, err)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	if o.strict {
		dec.DisallowUnknownFields()
	}
	if o.useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("hydrate: %s: decode: %w", source, err)
	}
	return out, nil
}

// Clone returns a deep copy of value made of plain JSON types
// (map[string]any, []any, string, float64, bool, nil).
func Clone(value any) (any, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
