package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dray-io/objaccess/internal/config"
	"github.com/dray-io/objaccess/internal/logging"
	"github.com/dray-io/objaccess/internal/metrics"
	"github.com/dray-io/objaccess/internal/objectstore"
	"github.com/dray-io/objaccess/internal/objectstore/oss"
	"github.com/dray-io/objaccess/internal/objectstore/s3"
)

// storeFactory opens the backend named by cfg.
type storeFactory func(ctx context.Context, cfg *config.Config) (objectstore.Store, error)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *logging.Logger
	openStore  storeFactory
	registry   *prometheus.Registry
	metrics    *metrics.StoreMetrics
}

func newApp() *app {
	reg := prometheus.NewRegistry()
	return &app{
		openStore: openStore,
		registry:  reg,
		metrics:   metrics.NewStoreMetricsWithRegistry(reg),
	}
}

// load reads the configuration and installs the global logger.
func (a *app) load() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFromPath(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.logger = logging.Configure(a.cfg.Observability.LogLevel, a.cfg.Observability.LogFormat)
	return nil
}

// store opens the configured backend wrapped with metrics.
func (a *app) store(ctx context.Context) (objectstore.Store, error) {
	backend, err := a.openStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	return objectstore.NewInstrumentedStore(backend, a.metrics), nil
}

// startMetrics serves the registry when a metrics address is configured.
// The returned stop function is always safe to call.
func (a *app) startMetrics() (func(), error) {
	addr := a.cfg.Observability.MetricsAddr
	if addr == "" {
		return func() {}, nil
	}
	srv := metrics.NewServerWithRegistry(addr, a.registry)
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start metrics server: %w", err)
	}
	a.logger.Infof("metrics server listening", map[string]any{"addr": srv.Addr()})
	return func() { _ = srv.Close() }, nil
}

func openStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	osc := cfg.ObjectStore
	switch osc.Backend {
	case config.BackendS3:
		return s3.New(ctx, s3.Config{
			Bucket:          osc.Bucket,
			Region:          osc.Region,
			Endpoint:        osc.Endpoint,
			AccessKeyID:     osc.AccessKey,
			SecretAccessKey: osc.SecretKey,
			UsePathStyle:    osc.UsePathStyle,
			MaxAttempts:     osc.MaxAttempts,
		})
	case config.BackendOSS:
		return oss.New(oss.Config{
			Endpoint:        osc.Endpoint,
			Bucket:          osc.Bucket,
			AccessKeyID:     osc.AccessKey,
			AccessKeySecret: osc.SecretKey,
			UsePathStyle:    osc.UsePathStyle,
			MaxAttempts:     osc.MaxAttempts,
		})
	case config.BackendMemory:
		return objectstore.NewMockStore(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", osc.Backend)
	}
}
