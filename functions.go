package declare

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Function is a helper callable from update rules.
type Function func(args ...any) (any, error)

// Functions maps helper names to implementations. Evaluators copy the map
// they are given, so later edits do not leak into compiled rules.
type Functions map[string]Function

// DefaultFunctions returns the helpers update rules commonly need:
//
//	equal(a, b)        deep equality of plain JSON values
//	changed(a, b)      negation of equal
//	field(obj, key)    obj[key], or nil when obj is not an object
func DefaultFunctions() Functions {
	return Functions{
		"equal": binary("equal", func(a, b any) (any, error) {
			return reflect.DeepEqual(a, b), nil
		}),
		"changed": binary("changed", func(a, b any) (any, error) {
			return !reflect.DeepEqual(a, b), nil
		}),
		"field": binary("field", func(obj, key any) (any, error) {
			m, ok := obj.(map[string]any)
			if !ok {
				return nil, nil
			}
			name, _ := key.(string)
			return m[name], nil
		}),
	}
}

func binary(name string, fn func(a, b any) (any, error)) Function {
	return func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("declare: %s expects 2 arguments, got %d", name, len(args))
		}
		return fn(args[0], args[1])
	}
}

// With returns a copy of f that also holds fn under name.
func (f Functions) With(name string, fn Function) Functions {
	out := make(Functions, len(f)+1)
	maps.Copy(out, f)
	out[name] = fn
	return out
}

// Call runs the helper registered under name.
func (f Functions) Call(name string, args ...any) (any, error) {
	fn := f[name]
	if fn == nil {
		return nil, fmt.Errorf("declare: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the helper names sorted.
func (f Functions) Names() []string {
	return slices.Sorted(maps.Keys(f))
}
