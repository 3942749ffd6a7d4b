// Package app wires the model clients, reference data, prompt binder and result cache into
// the flows used by both binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"plant-doctor/api/internal/catalog"
	"plant-doctor/api/internal/config"
	"plant-doctor/api/internal/httpserver"
	"plant-doctor/api/internal/llm"
	"plant-doctor/api/internal/llm/gemini"
	"plant-doctor/api/internal/llm/gpt"
	"plant-doctor/api/internal/plant/flow"
	"plant-doctor/api/internal/plant/prompt"
	"plant-doctor/api/internal/store"
)

type App struct {
	Flows   *flow.Flows
	Binder  *prompt.Binder
	Catalog *catalog.Catalog
	Health  httpserver.HealthFunc

	closers []func() error
}

// Build constructs every long-lived dependency once. Call Close on shutdown.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{}

	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	models := []llm.Model{gemini.New(client, cfg.GeminiModel)}
	if cfg.OpenAIAPIKey != "" {
		models = append(models, gpt.New(cfg.OpenAIAPIKey, cfg.OpenAIModel))
	}
	engines, err := llm.NewEngines(cfg.DefaultLLM, models...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	engines.Wrap(func(m llm.Model) llm.Model { return llm.WithLogging(m, log) })

	a.Catalog, err = catalog.Load()
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Binder, err = prompt.New(a.Catalog, cfg.PromptDir)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	cache, err := a.openCache(ctx, cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Flows = flow.New(engines, a.Binder, a.Catalog, flow.Options{
		Timeout: cfg.ModelTimeout,
		Cache:   cache,
		Logger:  log,
	})
	log.Info("app ready",
		zap.Strings("engines", engines.Names()),
		zap.String("default_llm", engines.Default().Name()),
		zap.String("cache", cfg.CacheBackend),
	)
	return a, nil
}

// openCache connects the configured result cache and sets a.Health to ping it.
func (a *App) openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		rdb, err := store.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		a.Health = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		log.Info("result cache: redis", zap.Duration("ttl", cfg.CacheTTL))
		return store.NewRedisCache(rdb, cfg.CacheTTL), nil

	case config.CachePostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		pg := store.NewPGCache(db, cfg.CacheTTL)
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("cache schema: %w", err)
		}
		a.Health = db.PingContext
		log.Info("result cache: postgres", zap.String("db", config.SafeDSNSummary(cfg.DatabaseURL)))
		return pg, nil
	}
	return nil, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
