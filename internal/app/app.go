// Package app wires the PQP core from a config.Config: storage backend,
// catalog, registry, fetcher, resolver, section store, orchestrator and
// importer. Binaries share it so they resolve tables identically.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Nterah/QualiPro/internal/catalog"
	"github.com/Nterah/QualiPro/internal/config"
	"github.com/Nterah/QualiPro/internal/fetch"
	"github.com/Nterah/QualiPro/internal/hydrate"
	"github.com/Nterah/QualiPro/internal/importer"
	"github.com/Nterah/QualiPro/internal/metrics"
	"github.com/Nterah/QualiPro/internal/metrics/datadog"
	"github.com/Nterah/QualiPro/internal/registry"
	"github.com/Nterah/QualiPro/internal/resolve"
	"github.com/Nterah/QualiPro/internal/sectionstore"
	"github.com/Nterah/QualiPro/internal/storage"
)

// App holds the wired components. Close it once.
type App struct {
	Config       config.Config
	Backend      storage.Backend
	Catalog      *catalog.Catalog
	Registry     *registry.Lookup
	Fetcher      *fetch.Fetcher
	Resolver     *resolve.Resolver
	Store        *sectionstore.Store
	Orchestrator *hydrate.Orchestrator
	Importer     *importer.Importer
}

// LoadEnv loads .env from the working directory when present.
func LoadEnv(logger *log.Logger) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("env: .env not loaded: %v", err)
	}
}

// Open connects the configured backend, ensures the sections table and
// wires every component. logger may be nil.
func Open(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	b, err := storage.New(ctx, cfg.StorageConfig())
	if err != nil {
		return nil, fmt.Errorf("app: open storage: %w", err)
	}
	if err := b.EnsureSchema(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("app: ensure schema: %w", err)
	}

	cat := catalog.New(b, logger)
	reg := registry.New(b, cfg.RegistryConfig())
	reg.Columns = cat
	f := &fetch.Fetcher{Columns: cat, Querier: b, Registry: reg, Options: cfg.FetchOptions(), Logger: logger}
	catalogue := cfg.Catalogue()

	res := &resolve.Resolver{
		Tables:  cat,
		Fetcher: f,
		Schema:  cfg.Resolve.Schema,
		Exclude: cfg.ExcludedTables(),
		Logger:  logger,
	}
	for _, s := range catalogue {
		res.Parts = append(res.Parts, s.Parts...)
	}
	if !cfg.Resolve.DisableGuessCache {
		res.Cache = resolve.NewMemoryCache()
	}

	store := sectionstore.New(b, logger)
	return &App{
		Config:   cfg,
		Backend:  b,
		Catalog:  cat,
		Registry: reg,
		Fetcher:  f,
		Resolver: res,
		Store:    store,
		Orchestrator: &hydrate.Orchestrator{
			Store:       store,
			Resolver:    res,
			Catalogue:   catalogue,
			Persist:     cfg.PersistEnabled(),
			Parallelism: cfg.Hydrate.Parallelism,
			Logger:      logger,
		},
		Importer: &importer.Importer{Store: store, Logger: logger},
	}, nil
}

// Close releases the backend.
func (a *App) Close() { a.Backend.Close() }

// SetupMetrics installs the metrics backend named by name, falling back to
// METRICS_BACKEND. It returns the shutdown func that flushes it.
func SetupMetrics(ctx context.Context, name, job string, logger *log.Logger) func() {
	if name == "" {
		name = os.Getenv("METRICS_BACKEND")
	}
	switch strings.ToLower(name) {
	case "datadog":
		tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(ctx, datadog.Options{JobName: job, Tags: tags, FlushEvery: 60 * time.Second})
		if err != nil {
			logger.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		logger.Printf("metrics: backend=datadog job_name=%v tags=%v", job, tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logger.Printf("metrics: datadog close/flush error: %v", err)
			}
			metrics.SetBackend(nil)
		}
	case "", "none":
		return func() {}
	default:
		logger.Printf("metrics: unknown backend %q; metrics disabled", name)
		return func() {}
	}
}
