package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-declare/request"
)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	logger      *zap.Logger
	concurrency int
}

// WithLogger sets the logger used for step progress.
func WithLogger(logger *zap.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConcurrency caps the steps of one level that run at once. Zero or
// less means no cap.
func WithConcurrency(n int) RunOption {
	return func(c *runConfig) {
		c.concurrency = n
	}
}

// Run declares every step against store, level by level, and returns each
// step's decoded value keyed by step name. The first failing step cancels
// the rest of its level and stops the run. The system framing is the
// compiler's. When store is a request.Reserver the entries of each level are
// reserved in file order first, so the saved order does not depend on which
// step reaches the store first.
func (p *Pipeline) Run(ctx context.Context, store request.Declarer, compiler *request.Compiler, opts ...RunOption) (map[string]any, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	levels, err := p.Plan()
	if err != nil {
		return nil, err
	}
	logger := cfg.logger.With(zap.String("pipeline", p.Name))

	var mu sync.Mutex
	outputs := make(map[string]any, len(p.Steps))

	for depth, steps := range levels {
		g, gctx := errgroup.WithContext(ctx)
		if cfg.concurrency > 0 {
			g.SetLimit(cfg.concurrency)
		}
		mu.Lock()
		inputs := make([]map[string]any, len(steps))
		for i, step := range steps {
			inputs[i] = p.input(step, outputs)
		}
		mu.Unlock()
		if r, ok := store.(request.Reserver); ok {
			for _, step := range steps {
				compiler.ReserveSchemaRequest(r, step.Name, step.Mode == ModeTwoStage)
			}
		}

		for i, step := range steps {
			input := inputs[i]
			g.Go(func() error {
				start := time.Now()
				value, err := p.runStep(gctx, store, compiler, step, input)
				if err != nil {
					logger.Error("step failed", zap.String("step", step.Name), zap.Error(err))
					return fmt.Errorf("pipeline %s: step %s: %w", p.Name, step.Name, err)
				}
				logger.Info("step done",
					zap.String("step", step.Name),
					zap.Int("level", depth),
					zap.Duration("duration", time.Since(start)),
				)
				mu.Lock()
				outputs[step.Name] = value
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

func (p *Pipeline) runStep(ctx context.Context, store request.Declarer, compiler *request.Compiler, step Step, input map[string]any) (any, error) {
	props := request.Props{Name: step.Name, Input: input, Schema: step.Schema, Rebuild: step.Rebuild}
	if step.Mode == ModeTwoStage {
		return compiler.TwoStageSchemaRequest(ctx, store, props)
	}
	return compiler.SchemaRequest(ctx, store, props)
}

// input gathers the values a step reads.
func (p *Pipeline) input(step Step, outputs map[string]any) map[string]any {
	input := make(map[string]any, len(step.Inputs)+1)
	for _, name := range step.Inputs {
		if value, ok := outputs[name]; ok {
			input[name] = value
			continue
		}
		input[name] = p.Context[name]
	}
	if step.Instructions != "" {
		input["instructions"] = step.Instructions
	}
	return input
}
