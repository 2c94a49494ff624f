package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"roster/internal/blob"
	"roster/internal/core"
)

var errLoginRequired = errors.New("not logged in; run \"roster login\" first")

// app is a loaded service together with the resources backing it.
type app struct {
	svc      *core.Service
	storage  core.DurableStorage
	registry *prometheus.Registry
	logger   *zap.Logger
}

func openApp(ctx context.Context, opts *rootOptions, extra ...core.ServiceOption) (*app, error) {
	cfg, logger := opts.cfg, opts.logger

	storage, err := core.OpenDurableStorage(ctx, cfg.Storage())
	if err != nil {
		return nil, err
	}

	store := core.NewRecordStore(storage,
		core.WithRulesEngine(core.NewDefaultRulesEngine()),
		core.WithStoreLogger(logger),
		core.WithNotifier(core.NewLogNotifier(logger)),
	)
	source := store.Load(ctx)
	logger.Debug("roster loaded", zap.String("source", string(source)), zap.Int("employees", len(store.List())))

	gate := core.NewSessionGate(storage, logger)
	gate.Restore(ctx)

	var blobs blob.Store
	mode := core.ImageMode(cfg.ImageMode)
	if mode == core.ImageModeBlob {
		blobs, err = blob.Open(ctx, cfg.Blob())
		if err != nil {
			_ = storage.Close()
			return nil, fmt.Errorf("open blob store: %w", err)
		}
	}
	images, err := core.NewImageEncoder(mode, cfg.ImageMaxBytes, blobs)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		_ = storage.Close()
		return nil, err
	}

	svc := core.NewService(store, gate, append([]core.ServiceOption{
		core.WithLogger(logger),
		core.WithLatency(cfg.SimulatedLatency),
		core.WithImageEncoder(images),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promMetrics, core.NewExpvarMetricsRecorder("roster_service")}),
		core.WithAuditRecorder(core.NewLogAuditRecorder(logger)),
	}, extra...)...)
	return &app{svc: svc, storage: storage, registry: registry, logger: logger}, nil
}

func (a *app) Close() error {
	return a.storage.Close()
}

// requireLogin mirrors the route guard of the HTTP API.
func (a *app) requireLogin(ctx context.Context) (context.Context, error) {
	user, ok := a.svc.CurrentUser()
	if !ok {
		return ctx, errLoginRequired
	}
	return core.WithActor(ctx, user.Username), nil
}

// withApp opens the app, runs fn and closes it.
func withApp(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, a *app) error, extra ...core.ServiceOption) error {
	a, err := openApp(ctx, opts, extra...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			a.logger.Warn("close storage", zap.Error(cerr))
		}
	}()
	return fn(ctx, a)
}
