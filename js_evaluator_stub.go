//go:build !js_eval

package declare

// NewJSEvaluator needs the js_eval build tag; without it the result is nil
// and RuleUpdate reports ErrNoEvaluator.
func NewJSEvaluator(...EvaluatorOption) Evaluator {
	return nil
}
