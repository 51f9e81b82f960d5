package declare

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

const exprEngine = "expr"

// NewExprEvaluator returns an Evaluator for github.com/expr-lang/expr rules.
// Rules see id, data, previous, now and args; unknown names evaluate to nil
// so a rule can probe optional keys of data. Helpers are callable by name and
// through call(name, args...).
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	cfg := newEvaluatorConfig(opts)
	compileOpts := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range cfg.functions.Names() {
		compileOpts = append(compileOpts, exprlang.Function(name, cfg.functions[name]))
	}
	return &ruleEngine[*exprvm.Program]{
		name:  exprEngine,
		cache: cfg.cache,
		compile: func(source string) (*exprvm.Program, error) {
			return exprlang.Compile(source, compileOpts...)
		},
		run: func(program *exprvm.Program, ctx RuleContext) (any, error) {
			env := ctx.bindings()
			env["call"] = cfg.functions.Call
			return exprlang.Run(program, env)
		},
	}
}
