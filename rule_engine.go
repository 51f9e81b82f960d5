package declare

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"
)

// DefaultJSTimeout bounds a single JavaScript rule evaluation.
const DefaultJSTimeout = 250 * time.Millisecond

var errEmptyRule = errors.New("expression must not be empty")

// EvaluationError reports a rule that failed to compile or evaluate.
// Resource is empty for compile failures.
type EvaluationError struct {
	Engine   string
	Expr     string
	Resource string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Resource == "" {
		return fmt.Sprintf("declare: %s rule %q: %v", e.Engine, e.Expr, e.Err)
	}
	return fmt.Sprintf("declare: %s rule %q on %s: %v", e.Engine, e.Expr, e.Resource, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ruleError attaches rule metadata to err. An EvaluationError already in the
// chain keeps what it has and only gets its gaps filled.
func ruleError(engine, expr, resource string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EvaluationError
	if !errors.As(err, &existing) {
		return &EvaluationError{Engine: engine, Expr: expr, Resource: resource, Err: err}
	}
	if existing.Engine == "" {
		existing.Engine = engine
	}
	if existing.Expr == "" {
		existing.Expr = expr
	}
	if existing.Resource == "" {
		existing.Resource = resource
	}
	return existing
}

// ProgramCache stores compiled rule programs keyed by engine and source.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewProgramCache returns an unbounded, concurrency-safe ProgramCache.
func NewProgramCache() ProgramCache {
	return &syncProgramCache{}
}

type syncProgramCache struct {
	entries sync.Map
}

func (c *syncProgramCache) Get(key string) (any, bool) { return c.entries.Load(key) }
func (c *syncProgramCache) Set(key string, value any)  { c.entries.Store(key, value) }

// EvaluatorOption configures NewExprEvaluator, NewCELEvaluator and
// NewJSEvaluator.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache     ProgramCache
	functions Functions
	timeout   time.Duration
}

// WithProgramCache reuses compiled programs across rules with the same
// source.
func WithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctions replaces the helpers rules can call. DefaultFunctions is used
// otherwise; nil leaves rules without helpers.
func WithFunctions(functions Functions) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.functions = maps.Clone(functions)
	}
}

// WithEvalTimeout interrupts JavaScript rules running longer than d. Zero
// disables the limit. The expr and CEL engines ignore it.
func WithEvalTimeout(d time.Duration) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if d >= 0 {
			cfg.timeout = d
		}
	}
}

func newEvaluatorConfig(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{functions: DefaultFunctions(), timeout: DefaultJSTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// ruleEngine adapts one expression language to Evaluator. P is the
// language's compiled program type.
type ruleEngine[P any] struct {
	name    string
	cache   ProgramCache
	compile func(source string) (P, error)
	run     func(program P, ctx RuleContext) (any, error)
}

func (e *ruleEngine[P]) Engine() string { return e.name }

func (e *ruleEngine[P]) Evaluate(ctx RuleContext, source string) (any, error) {
	rule, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *ruleEngine[P]) Compile(source string) (CompiledRule, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ruleError(e.name, source, "", errEmptyRule)
	}
	key := e.name + ":" + source
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(P); ok {
				return engineRule[P]{engine: e, program: program, source: source}, nil
			}
		}
	}
	program, err := e.compile(source)
	if err != nil {
		return nil, ruleError(e.name, source, "", err)
	}
	if e.cache != nil {
		e.cache.Set(key, program)
	}
	return engineRule[P]{engine: e, program: program, source: source}, nil
}

type engineRule[P any] struct {
	engine  *ruleEngine[P]
	program P
	source  string
}

func (r engineRule[P]) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	value, err := r.engine.run(r.program, ctx)
	if err != nil {
		return nil, ruleError(r.engine.name, r.source, ctx.label(), err)
	}
	return value, nil
}
