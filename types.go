package declare

import (
	"context"
	"time"
)

// Declaration pairs a constructor with the data a resource is built from.
// Data must be encodable as plain JSON values.
type Declaration struct {
	Constructor Constructor
	Data        any
}

// Constructor knows how to derive ids for, build and refresh one kind of
// resource. Identity must be stable across processes because it is persisted
// alongside each entry and used to hydrate it again.
type Constructor interface {
	Identity() string
	GenerateID(name string) string
	Create(ctx context.Context, id string, data any) (*Resource, error)
	UpdatePolicy() UpdatePolicy
}

// Resource is a live, built entry of the store.
type Resource struct {
	ConstructorID string
	// Serialize returns the data needed to rebuild the resource. It is called
	// on save and before every update check.
	Serialize func() any
	Instance  any
}

// Persistence loads and saves whole store snapshots by store name.
type Persistence interface {
	Load(ctx context.Context, name string) (ContextState, bool, error)
	Save(ctx context.Context, name string, state ContextState) error
}

// RuleContext carries the bindings visible to update rule expressions.
type RuleContext struct {
	ID       string
	Data     any
	Previous any
	Now      *time.Time
	Args     map[string]any
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) label() string {
	if ctx.ID != "" {
		return ctx.ID
	}
	return "unknown"
}

func (ctx RuleContext) bindings() map[string]any {
	ctx = ctx.withDefaults()
	return map[string]any{
		"id":       ctx.ID,
		"data":     ctx.Data,
		"previous": ctx.Previous,
		"now":      *ctx.Now,
		"args":     ctx.Args,
	}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}
