package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roster/internal/adapters/httpapi"
	"roster/internal/core"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr  string
		trace bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the roster JSON API",
		Long: `Serves the roster over HTTP until interrupted.

Routes live under /api/v1; /metrics exposes Prometheus metrics and
/debug/vars the expvar counters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = opts.cfg.HTTPAddr
			}
			var extra []core.ServiceOption
			if trace {
				extra = append(extra, core.WithTracer(core.NewJSONTracer(os.Stderr)))
			}
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				handler := httpapi.NewRouter(a.svc,
					httpapi.WithLogger(a.logger),
					httpapi.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})),
				)
				a.logger.Info("starting roster api", zap.String("addr", addr), zap.String("storage", opts.cfg.StorageDriver))
				return httpapi.ListenAndServe(ctx, addr, handler, a.logger)
			}, extra...)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from ROSTER_HTTP_ADDR)")
	cmd.Flags().BoolVar(&trace, "trace", false, "write JSON trace spans to stderr")
	return cmd
}
