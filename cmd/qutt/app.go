package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/thequtt/qutt-client/internal/backend"
	"github.com/thequtt/qutt-client/internal/cart"
	"github.com/thequtt/qutt-client/internal/checkout"
	"github.com/thequtt/qutt-client/pkg/auth/session"
	"github.com/thequtt/qutt-client/pkg/config"
	"github.com/thequtt/qutt-client/pkg/logger"
	"github.com/thequtt/qutt-client/pkg/metrics"
	"github.com/thequtt/qutt-client/pkg/storage"
)

// app is one wired client: storage, backend, session and cart sharing a
// metrics registry.
type app struct {
	cfg      *config.Config
	logg     *logger.Logger
	registry *prometheus.Registry
	storage  *storage.Handle
	api      *backend.Client
	session  *session.Manager
	cart     *cart.Cart
	checkout checkout.Service
}

func newApp(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*app, error) {
	registry := prometheus.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(registry)

	handle, err := storage.Open(ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	api, err := backend.New(cfg.API,
		backend.WithLogger(logg),
		backend.WithMetrics(metrics.NewBackendMetrics(registry)),
	)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("building backend client: %w", err)
	}

	opts := session.OptionsFromConfig(cfg.Auth)
	opts.Store = handle
	opts.Refresher = api
	opts.Logger = logg
	opts.Metrics = metrics.NewSessionMetrics(registry)
	opts.StoreMetrics = storeMetrics
	mgr, err := session.NewManager(opts)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("building session manager: %w", err)
	}
	api.UseTokens(mgr)

	crt, err := cart.New(cart.Options{
		Store:          handle,
		Logger:         logg,
		Metrics:        storeMetrics,
		PersistTimeout: cfg.Cart.PersistTimeout,
	})
	if err != nil {
		mgr.Close()
		_ = handle.Close()
		return nil, fmt.Errorf("building cart: %w", err)
	}

	svc, err := checkout.NewService(crt, api, logg)
	if err != nil {
		mgr.Close()
		_ = crt.Close(ctx)
		_ = handle.Close()
		return nil, fmt.Errorf("building checkout: %w", err)
	}

	mgr.Initialize(ctx)
	crt.Load(ctx)

	return &app{
		cfg:      cfg,
		logg:     logg,
		registry: registry,
		storage:  handle,
		api:      api,
		session:  mgr,
		cart:     crt,
		checkout: svc,
	}, nil
}

// Close flushes the cart, stops the refresh timer and releases storage.
func (a *app) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs error
	errs = multierr.Append(errs, a.cart.Close(ctx))
	a.session.Close()
	errs = multierr.Append(errs, a.storage.Close())
	return errs
}
