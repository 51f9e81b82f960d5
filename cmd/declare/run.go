package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	declare "github.com/goliatone/go-declare"
	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/pipeline"
	"github.com/goliatone/go-declare/pkg/activity"
	"github.com/goliatone/go-declare/pkg/state"
	"github.com/goliatone/go-declare/request"
	"github.com/goliatone/go-declare/runlog"
)

func newRunCmd(a *app) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run a pipeline, reusing every cached step",
		Long: `Runs every step of the pipeline against the store named after it.
Steps whose prompt did not change since the last saved run are not sent to
the completion service. The store is saved only when every step succeeds.
Every exchange with the service is written to the run log directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args[0], concurrency)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "steps of one level run at once")
	return cmd
}

func (a *app) run(ctx context.Context, path string, concurrency int) error {
	p, err := readPipeline(path)
	if err != nil {
		return err
	}

	svc, err := a.newService(ctx, a.cfg.Completion)
	if err != nil {
		return err
	}
	runLog := runlog.New()
	svc = completion.WithTimeout(svc, a.cfg.Completion.Timeout())
	svc = completion.Traced(svc, a.cfg.Completion.Provider)
	svc = runlog.Wrap(svc, runLog)
	defer a.writeRunLog(runLog)

	systemCore := p.SystemCore
	if systemCore == "" {
		systemCore = a.cfg.SystemCore
	}
	compiler := request.New(svc,
		request.WithSystemCore(systemCore),
		request.WithLogger(a.logger.Named("request")),
	)
	registry, err := compiler.Registry()
	if err != nil {
		return err
	}

	backing, release, err := openStateStore(a.cfg.State)
	if err != nil {
		return err
	}
	defer release()

	store, err := declare.Open(ctx, p.Name, registry,
		declare.WithPersistence(state.NewPersistence(backing)),
		declare.WithLogger(a.logger),
		declare.WithEmitter(activity.NewEmitter(activity.Config{Channel: "cli"}, activity.LogHook(a.logger.Named("store")))),
	)
	if err != nil {
		return err
	}

	outputs, err := p.Run(ctx, store, compiler,
		pipeline.WithLogger(a.logger),
		pipeline.WithConcurrency(concurrency),
	)
	if err != nil {
		return err
	}
	if err := store.Save(ctx); err != nil {
		return err
	}

	for _, step := range p.Steps {
		encoded, err := json.MarshalIndent(outputs[step.Name], "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", step.Name, err)
		}
		fmt.Fprintf(a.out, "== %s ==\n%s\n", step.Name, encoded)
	}
	return nil
}

func (a *app) writeRunLog(log *runlog.Log) {
	if len(log.Entries()) == 0 {
		return
	}
	path, err := log.WriteFile(a.cfg.Log.Dir)
	if err != nil {
		a.logger.Warn("run log not written", zap.Error(err))
		return
	}
	a.logger.Info("run log written", zap.String("path", path), zap.String("run_id", log.RunID()))
}

func readPipeline(path string) (*pipeline.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pipeline.Parse(f)
}
