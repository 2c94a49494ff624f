// Command roster manages the employee roster from the command line and
// serves it over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"roster/internal/config"
)

// rootOptions carries the persistent flags and the state built from them.
type rootOptions struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Employee roster manager",
		Long: `roster keeps a small employee roster in durable storage.

Log in once, then list, add, update, remove and print employees, or run
"roster serve" to expose the same operations over a JSON HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			zcfg := zap.NewProductionConfig()
			zcfg.Level = zap.NewAtomicLevelAt(cfg.Level())
			if opts.verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err := zcfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newUpdateCmd(opts),
		newRemoveCmd(opts),
		newPrintCmd(opts),
		newPruneImagesCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
