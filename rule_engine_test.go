package declare

import (
	"errors"
	"strings"
	"testing"
)

func TestRuleErrorFillsGaps(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{Engine: "expr", Err: base}

	err := ruleError("cel", "data.prompt", "static-request:draft", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("engine overwritten: %q", existing.Engine)
	}
	if existing.Expr != "data.prompt" || existing.Resource != "static-request:draft" {
		t.Fatalf("gaps not filled: %+v", existing)
	}
	if got := err.Error(); got != `declare: expr rule "data.prompt" on static-request:draft: compile failure` {
		t.Fatalf("message = %q", got)
	}
	if ruleError("expr", "x", "", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestRuleEngineCachesPrograms(t *testing.T) {
	compiles := 0
	engine := &ruleEngine[string]{
		name:  "upper",
		cache: NewProgramCache(),
		compile: func(source string) (string, error) {
			compiles++
			return strings.ToUpper(source), nil
		},
		run: func(program string, ctx RuleContext) (any, error) {
			return program + "@" + ctx.label(), nil
		},
	}

	for range 3 {
		got, err := engine.Evaluate(RuleContext{ID: "json-request:hero"}, "hero")
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if got != "HERO@json-request:hero" {
			t.Fatalf("got %v", got)
		}
	}
	if compiles != 1 {
		t.Fatalf("expected one compile, got %d", compiles)
	}

	_, err := engine.Compile("  ")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || !errors.Is(err, errEmptyRule) || evalErr.Engine != "upper" {
		t.Fatalf("expected empty rule error, got %v", err)
	}
}

func TestEvaluatorsShareOptions(t *testing.T) {
	helpers := DefaultFunctions().With("twice", func(args ...any) (any, error) {
		s, _ := args[0].(string)
		return s + s, nil
	})
	ctx := RuleContext{ID: "x", Data: map[string]any{"prompt": "ab"}}

	exprValue, err := NewExprEvaluator(WithFunctions(helpers)).Evaluate(ctx, `twice(data.prompt)`)
	if err != nil || exprValue != "abab" {
		t.Fatalf("expr: %v %v", exprValue, err)
	}
	celValue, err := NewCELEvaluator(WithFunctions(helpers)).Evaluate(ctx, `call("twice", [data.prompt])`)
	if err != nil || celValue != "abab" {
		t.Fatalf("cel: %v %v", celValue, err)
	}

	_, err = NewExprEvaluator(WithFunctions(nil)).Evaluate(ctx, `call("twice", data.prompt)`)
	if err == nil {
		t.Fatalf("expected missing helper to fail")
	}
	if _, ok := DefaultFunctions()["twice"]; ok {
		t.Fatalf("With must not modify the receiver")
	}
}
