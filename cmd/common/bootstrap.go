// Package common wires the application stack shared by the CLI commands.
package common

import (
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gigharvest/internal/change"
	"github.com/jonesrussell/gigharvest/internal/config"
	"github.com/jonesrussell/gigharvest/internal/database"
	"github.com/jonesrussell/gigharvest/internal/ingest"
	"github.com/jonesrussell/gigharvest/internal/logger"
	"github.com/jonesrussell/gigharvest/internal/plugin"
	"github.com/jonesrussell/gigharvest/internal/ratelimit"
	"github.com/jonesrussell/gigharvest/internal/sources"
	"github.com/jonesrussell/gigharvest/internal/storage"
	"github.com/jonesrussell/gigharvest/internal/transform"
	"github.com/jonesrussell/gigharvest/internal/trust"
)

// App is the wired application stack.
type App struct {
	Cfg      *config.Config
	Logger   logger.Interface
	Registry *plugin.Registry
	Runner   *ingest.Runner
	History  ingest.HistoryRepo // nil when the database is not configured

	redis *redis.Client
	db    *sqlx.DB
}

// NewLogger builds the zap logger from configuration.
func NewLogger(cfg *config.Config) (logger.Interface, error) {
	level := cfg.Logger.Level
	if cfg.App.Debug {
		level = string(logger.DebugLevel)
	}
	return logger.New(&logger.Config{
		Level:       logger.Level(level),
		Development: cfg.Logger.Development,
		Encoding:    cfg.Logger.Encoding,
	})
}

// Bootstrap loads configuration and wires every component a run needs:
// source plugins, rate limiter, trust table, snapshot store, sink, and
// optionally the run-history database.
func Bootstrap(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log, err := NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	registry := plugin.NewRegistry(transform.NewRegistry(), log)
	if err := loadSources(cfg, registry, log); err != nil {
		return nil, err
	}

	limiter := ratelimit.New(log,
		ratelimit.WithBackoff(cfg.RateLimit.BaseDelay, cfg.RateLimit.MaxDelay),
	)

	esClient, err := storage.NewClient(&storage.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		APIKey:    cfg.Elasticsearch.APIKey,
		GigIndex:  cfg.Elasticsearch.GigIndex,
	}, log)
	if err != nil {
		return nil, err
	}
	sink := storage.NewESSink(esClient, cfg.Elasticsearch.GigIndex, log)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	snapshots := change.NewRedisSnapshotStore(redisClient)

	app := &App{
		Cfg:      cfg,
		Logger:   log,
		Registry: registry,
		redis:    redisClient,
	}

	opts := []ingest.RunnerOption{
		ingest.WithTrustTable(trustTable(cfg)),
	}

	if cfg.Database.DSN != "" {
		db, dbErr := database.Connect(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if dbErr != nil {
			return nil, fmt.Errorf("connect database: %w", dbErr)
		}
		app.db = db
		app.History = ingest.NewSQLHistory(db)
		opts = append(opts, ingest.WithHistory(app.History))
	}

	app.Runner = ingest.NewRunner(
		registry,
		limiter,
		change.NewDetector(log),
		snapshots,
		sink,
		log,
		opts...,
	)
	return app, nil
}

// ReloadSources re-reads source definitions from disk and swaps them
// into the registry.
func (a *App) ReloadSources() error {
	return loadSources(a.Cfg, a.Registry, a.Logger)
}

// Close releases held connections.
func (a *App) Close() error {
	var firstErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func loadSources(cfg *config.Config, registry *plugin.Registry, log logger.Interface) error {
	configs, err := sources.LoadDir(cfg.Sources.Dir, log)
	if err != nil {
		return fmt.Errorf("load sources from %s: %w", cfg.Sources.Dir, err)
	}
	return registry.Reload(configs)
}

// trustTable builds the trust table from configuration. Patterns are
// registered in sorted order so matching is deterministic.
func trustTable(cfg *config.Config) *trust.Table {
	table := trust.NewTable(cfg.Trust.Scores)
	table.SetDefault(cfg.Trust.Default)

	patterns := make([]string, 0, len(cfg.Trust.Patterns))
	for p := range cfg.Trust.Patterns {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	for _, p := range patterns {
		table.AddPattern(p, cfg.Trust.Patterns[p])
	}
	return table
}
