package declare

import (
	"context"
	"reflect"
	"strings"
)

// UpdateCheck is handed to update predicates. Data is the newly declared
// data and Previous the serialized data of the live resource, both as plain
// JSON values.
type UpdateCheck struct {
	ID       string
	Data     any
	Previous any
}

// Predicate decides whether a live resource must be rebuilt.
type Predicate func(ctx context.Context, check UpdateCheck) (bool, error)

// UpdatePolicy is either AlwaysReuse (the zero value) or Conditional.
type UpdatePolicy struct {
	predicate Predicate
	label     string
}

// AlwaysReuse keeps a live resource no matter what data is declared.
func AlwaysReuse() UpdatePolicy {
	return UpdatePolicy{}
}

// Conditional rebuilds when predicate returns true. A nil predicate yields
// AlwaysReuse.
func Conditional(predicate Predicate) UpdatePolicy {
	if predicate == nil {
		return AlwaysReuse()
	}
	return UpdatePolicy{predicate: predicate, label: "conditional"}
}

// WhenChanged rebuilds when there is no previous data or when any of keys
// differs between the declared and previous data. Without keys the whole
// values are compared.
func WhenChanged(keys ...string) UpdatePolicy {
	selected := append([]string(nil), keys...)
	policy := Conditional(func(_ context.Context, check UpdateCheck) (bool, error) {
		if check.Previous == nil {
			return true, nil
		}
		if len(selected) == 0 {
			return !reflect.DeepEqual(check.Data, check.Previous), nil
		}
		next, _ := check.Data.(map[string]any)
		prev, _ := check.Previous.(map[string]any)
		for _, key := range selected {
			if !reflect.DeepEqual(next[key], prev[key]) {
				return true, nil
			}
		}
		return false, nil
	})
	policy.label = "when-changed(" + strings.Join(selected, ",") + ")"
	return policy
}

// AnyOf rebuilds when any of policies asks for it. Policies are checked in
// order and the first error stops the check. AlwaysReuse members are skipped.
func AnyOf(policies ...UpdatePolicy) UpdatePolicy {
	active := make([]UpdatePolicy, 0, len(policies))
	labels := make([]string, 0, len(policies))
	for _, p := range policies {
		if p.Conditional() {
			active = append(active, p)
			labels = append(labels, p.String())
		}
	}
	switch len(active) {
	case 0:
		return AlwaysReuse()
	case 1:
		return active[0]
	}
	policy := Conditional(func(ctx context.Context, check UpdateCheck) (bool, error) {
		for _, p := range active {
			update, err := p.RequiresUpdate(ctx, check)
			if err != nil || update {
				return update, err
			}
		}
		return false, nil
	})
	policy.label = "any(" + strings.Join(labels, ", ") + ")"
	return policy
}

// Conditional reports whether the policy can trigger rebuilds.
func (p UpdatePolicy) Conditional() bool {
	return p.predicate != nil
}

// RequiresUpdate evaluates the policy.
func (p UpdatePolicy) RequiresUpdate(ctx context.Context, check UpdateCheck) (bool, error) {
	if p.predicate == nil {
		return false, nil
	}
	return p.predicate(ctx, check)
}

func (p UpdatePolicy) String() string {
	if p.predicate == nil {
		return "always-reuse"
	}
	return p.label
}
