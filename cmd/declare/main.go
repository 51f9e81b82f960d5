// Command declare runs generation pipelines against a persisted declare
// store and inspects what was stored.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-declare/completion"
	"github.com/goliatone/go-declare/internal/config"
	"github.com/goliatone/go-declare/internal/logger"
)

// app holds what the commands share once flags are parsed.
type app struct {
	configPath string
	overrides  config.Overrides
	verbose    bool

	cfg    config.Config
	result config.Result
	logger *zap.Logger
	out    io.Writer

	environment map[string]string
	newService  func(ctx context.Context, cfg config.CompletionConfig) (completion.Service, error)
}

func newApp(out io.Writer) *app {
	return &app{
		out:        out,
		logger:     zap.NewNop(),
		newService: newCompletionService,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "declare",
		Short:         "Run cached, schema-driven generation pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags().Changed("config"))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetOut(a.out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "declare.yaml", "configuration file")
	flags.StringVar(&a.overrides.StateBackend, "state-backend", "", "state backend: file, sqlite, redis or memory")
	flags.StringVar(&a.overrides.StateDir, "state-dir", "", "directory of the file state backend")
	flags.StringVar(&a.overrides.LogDir, "log-dir", "", "directory for run logs")
	flags.StringVar(&a.overrides.Provider, "provider", "", "completion provider: openai or gemini")
	flags.StringVar(&a.overrides.Model, "model", "", "completion model")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(a),
		newStateCmd(a),
		newSchemaCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger. The default config
// file may be absent; one named on the command line may not.
func (a *app) setup(explicitConfig bool) error {
	res, err := config.Load(config.LoadOptions{
		Path:        a.configPath,
		Required:    explicitConfig,
		Environment: a.environment,
		Overrides:   a.overrides,
	})
	if err != nil {
		return err
	}
	a.result = res
	a.cfg = res.Config

	level := a.cfg.Log.Level
	if a.verbose {
		level = "debug"
	}
	log, err := logger.New(a.cfg.Log.Mode, level)
	if err != nil {
		return err
	}
	a.logger = log
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(newApp(os.Stdout)).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "declare:", err)
		os.Exit(1)
	}
}
