package declare

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RuleOption configures RuleUpdate.
type RuleOption func(*ruleConfig)

type ruleConfig struct {
	evaluator    Evaluator
	evaluatorSet bool
	logger       *zap.Logger
	args         map[string]any
	now          func() time.Time
}

// WithRuleEvaluator selects the engine; expr with DefaultFunctions is used
// otherwise. Passing nil (for example NewJSEvaluator without the js_eval
// build tag) makes RuleUpdate fail with ErrNoEvaluator.
func WithRuleEvaluator(evaluator Evaluator) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.evaluator = evaluator
		cfg.evaluatorSet = true
	}
}

// WithRuleLogger logs every evaluation at debug level and failures at warn.
func WithRuleLogger(logger *zap.Logger) RuleOption {
	return func(cfg *ruleConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithRuleArgs exposes args to the expression.
func WithRuleArgs(args map[string]any) RuleOption {
	return func(cfg *ruleConfig) {
		cfg.args = args
	}
}

// WithRuleClock overrides the value bound to now.
func WithRuleClock(now func() time.Time) RuleOption {
	return func(cfg *ruleConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// RuleUpdate compiles expression into a Conditional policy. The expression
// sees id, data, previous, now and args and must produce a boolean:
//
//	data.prompt != previous.prompt
//	changed(data.systemCore, previous.systemCore)
func RuleUpdate(expression string, opts ...RuleOption) (UpdatePolicy, error) {
	cfg := ruleConfig{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evaluator == nil {
		if cfg.evaluatorSet {
			return UpdatePolicy{}, ErrNoEvaluator
		}
		cfg.evaluator = NewExprEvaluator()
	}
	engine := evaluatorEngineName(cfg.evaluator)
	rule, err := cfg.evaluator.Compile(expression)
	if err != nil {
		return UpdatePolicy{}, ruleError(engine, expression, "", err)
	}

	policy := Conditional(func(_ context.Context, check UpdateCheck) (bool, error) {
		now := cfg.now()
		rc := RuleContext{
			ID:       check.ID,
			Data:     check.Data,
			Previous: check.Previous,
			Now:      &now,
			Args:     cfg.args,
		}
		start := time.Now()
		value, evalErr := rule.Evaluate(rc)
		result, ok := value.(bool)
		if evalErr == nil && !ok {
			evalErr = fmt.Errorf("rule must evaluate to bool, got %T", value)
		}
		evalErr = ruleError(engine, expression, rc.label(), evalErr)
		fields := []zap.Field{
			zap.String("engine", engine),
			zap.String("expr", expression),
			zap.String("resource", rc.label()),
			zap.Duration("duration", time.Since(start)),
		}
		if evalErr != nil {
			cfg.logger.Warn("update rule failed", append(fields, zap.Error(evalErr))...)
			return false, evalErr
		}
		cfg.logger.Debug("update rule evaluated", append(fields, zap.Bool("result", result))...)
		return result, nil
	})
	policy.label = "rule(" + engine + ": " + expression + ")"
	return policy, nil
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}
