//go:build js_eval

package declare

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

const jsEngine = "js"

// NewJSEvaluator returns an Evaluator backed by goja. Helpers are globals and
// also reachable through call(name, ...args).
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	cfg := newEvaluatorConfig(opts)
	return &ruleEngine[*goja.Program]{
		name:  jsEngine,
		cache: cfg.cache,
		compile: func(source string) (*goja.Program, error) {
			return goja.Compile("rule", "(function(){ return ("+source+"); })()", true)
		},
		run: func(program *goja.Program, ctx RuleContext) (any, error) {
			return runJS(program, ctx, cfg)
		},
	}
}

// runJS uses a fresh runtime per call; goja runtimes are not safe for
// concurrent use.
func runJS(program *goja.Program, ctx RuleContext, cfg evaluatorConfig) (any, error) {
	vm := goja.New()
	for key, value := range ctx.bindings() {
		if err := vm.Set(key, value); err != nil {
			return nil, err
		}
	}
	if err := vm.Set("call", cfg.functions.Call); err != nil {
		return nil, err
	}
	for name, fn := range cfg.functions {
		if err := vm.Set(name, fn); err != nil {
			return nil, err
		}
	}
	if cfg.timeout > 0 {
		timer := time.AfterFunc(cfg.timeout, func() {
			vm.Interrupt(fmt.Sprintf("rule exceeded %s", cfg.timeout))
		})
		defer timer.Stop()
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}
