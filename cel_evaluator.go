package declare

import (
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

const celEngine = "cel"

// NewCELEvaluator returns an Evaluator backed by cel-go. Rules see id as a
// string, now as a timestamp and data, previous and args as dynamic values.
// Helpers are reachable through call(name, [args...]).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	cfg := newEvaluatorConfig(opts)
	env, envErr := celEnv(cfg.functions)
	return &ruleEngine[celgo.Program]{
		name:  celEngine,
		cache: cfg.cache,
		compile: func(source string) (celgo.Program, error) {
			if envErr != nil {
				return nil, envErr
			}
			ast, issues := env.Compile(source)
			if issues != nil && issues.Err() != nil {
				return nil, issues.Err()
			}
			return env.Program(ast)
		},
		run: func(program celgo.Program, ctx RuleContext) (any, error) {
			out, _, err := program.Eval(ctx.bindings())
			if err != nil {
				return nil, err
			}
			return out.Value(), nil
		},
	}
}

func celEnv(functions Functions) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("id", celgo.StringType),
		celgo.Variable("data", celgo.DynType),
		celgo.Variable("previous", celgo.DynType),
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
	}
	if len(functions) > 0 {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(celCall(functions)),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

// celCall backs call(name, [args...]); CEL has no variadic overloads.
func celCall(functions Functions) func(ref.Val, ref.Val) ref.Val {
	return func(nameVal, argsVal ref.Val) ref.Val {
		name, ok := nameVal.Value().(string)
		if !ok {
			return types.NewErr("call name must be a string")
		}
		list, ok := argsVal.(traits.Lister)
		if !ok {
			return types.NewErr("call arguments must be a list")
		}
		var args []any
		for it := list.Iterator(); it.HasNext() == types.True; {
			args = append(args, it.Next().Value())
		}
		result, err := functions.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}
