package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ecolens/backend/config"
	httpDelivery "github.com/ecolens/backend/internal/delivery/http"
	"github.com/ecolens/backend/internal/infrastructure/cache"
	"github.com/ecolens/backend/internal/infrastructure/htmldoc"
	"github.com/ecolens/backend/internal/infrastructure/metrics"
	"github.com/ecolens/backend/internal/infrastructure/openfoodfacts"
	"github.com/ecolens/backend/internal/usecase"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting EcoLens backend",
		zap.String("version", httpDelivery.Version),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
	)

	store, err := newCache(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("cache close failed", zap.Error(err))
		}
	}()

	det, err := buildDetection(cfg, log)
	if err != nil {
		return err
	}

	client := openfoodfacts.NewClient(openfoodfacts.Config{
		BaseURL:           cfg.OpenFoodFacts.BaseURL,
		UserAgent:         cfg.OpenFoodFacts.UserAgent,
		Timeout:           cfg.OpenFoodFacts.Timeout,
		RetryMax:          cfg.OpenFoodFacts.RetryMax,
		RequestsPerSecond: cfg.OpenFoodFacts.RequestsPerSecond,
		Burst:             cfg.OpenFoodFacts.Burst,
	}, log)

	sustainability := usecase.NewSustainabilityService(store, client, usecase.SustainabilityServiceConfig{
		CacheTTL:         cfg.Cache.TTL,
		CategoryPageSize: cfg.OpenFoodFacts.CategoryPageSize,
	}, log)

	m := metrics.New()
	viewport := cfg.Detection.ViewportHeight

	// Browsing contexts outlive the signal so requests drained during
	// shutdown still reach them.
	registryCtx, cancelRegistry := context.WithCancel(context.Background())
	defer cancelRegistry()

	registry := usecase.NewContextRegistry(registryCtx, usecase.ContextRegistryDeps{
		NewPage:    func() usecase.SnapshotPage { return htmldoc.NewLivePage(viewport) },
		Classifier: det.classifier,
		Extractor:  det.extractor,
		Service:    sustainability,
		Cache:      store,
		Recorder:   m,
		Logger:     log,
	}, usecase.ContextRegistryConfig{
		Orchestrator: usecase.OrchestratorConfig{
			MaxRetries:       cfg.Detection.MaxRetries,
			NavigationDelay:  cfg.Detection.NavigationDelay,
			DebounceDelay:    cfg.Detection.DebounceDelay,
			RetryDelay:       cfg.Detection.RetryDelay,
			SlowRenderHosts:  cfg.Detection.SlowRenderHosts,
			AutoPopupEnabled: cfg.Detection.AutoPopup,
		},
		Confirmation: usecase.ConfirmationFlowConfig{
			LookupTimeout: cfg.Detection.LookupTimeout,
		},
		MaxContexts: cfg.Detection.MaxContexts,
	})
	defer registry.CloseAll()

	watching := cfg.Watch(func(updated *config.Config, err error) {
		if err != nil {
			log.Warn("config reload rejected", zap.Error(err))
			return
		}
		if updated.Detection.AutoPopup != registry.AutoPopup() {
			n := registry.SetAutoPopup(updated.Detection.AutoPopup)
			log.Info("auto popup setting reloaded",
				zap.Bool("enabled", updated.Detection.AutoPopup),
				zap.Int("contexts", n),
			)
		}
	})
	if watching {
		log.Info("watching config file", zap.String("path", cfg.FileUsed()))
	}

	handler := httpDelivery.NewHandler(httpDelivery.HandlerDeps{
		Sustainability: sustainability,
		Detector:       det.detector,
		Contexts:       registry,
		Cache:          store,
		ViewportHeight: viewport,
		Logger:         log,
	})
	router := httpDelivery.SetupRouter(cfg, handler, m.Handler(), log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return drain(shutdownCtx, srv, registry, cancelRegistry)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type contextCloser interface {
	CloseAll()
}

// drain waits for in-flight requests, then closes the browsing contexts and
// cancels their event loops
func drain(ctx context.Context, srv shutdowner, contexts contextCloser, cancelContexts context.CancelFunc) error {
	err := srv.Shutdown(ctx)
	contexts.CloseAll()
	cancelContexts()
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func newCache(cfg *config.Config, log *zap.Logger) (cache.Store, error) {
	cacheCfg := cache.Config{
		Backend: cfg.Cache.Type,
		Memory: cache.MemoryConfig{
			CleanupInterval: cfg.Cache.CleanupInterval,
			MaxEntries:      cfg.Cache.MaxEntries,
		},
	}
	if cfg.Cache.Type == cache.BackendRedis {
		redisCfg, err := cache.RedisConfigFromURL(cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("invalid cache.redis_url: %w", err)
		}
		cacheCfg.Redis = redisCfg
	}

	store, err := cache.New(cacheCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise cache: %w", err)
	}
	return store, nil
}
