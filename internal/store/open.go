// Package store opens the inventory backend selected by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shplep/homecontentslistpro-sub000/internal/config"
	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/store/memory"
	"github.com/shplep/homecontentslistpro-sub000/internal/store/migrations"
	"github.com/shplep/homecontentslistpro-sub000/internal/store/postgres"
	"github.com/shplep/homecontentslistpro-sub000/internal/store/sqlite"
)

// Handle is an open backend. Close releases it.
type Handle struct {
	Store importer.Store
	// Ping is nil for backends with nothing to reach.
	Ping  func(ctx context.Context) error
	Close func()
}

// Open connects to the configured driver. Postgres migrations run only
// when AutoMigrate is set; SQLite always migrates on open.
func Open(ctx context.Context, cfg *config.Config) (*Handle, error) {
	switch cfg.Store.Driver {
	case "memory":
		slog.Warn("using in-memory store; data is lost on exit")
		return &Handle{Store: memory.New(), Close: func() {}}, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		slog.Info("opened sqlite store", "path", cfg.Store.SQLitePath)
		return &Handle{Store: db, Ping: db.Ping, Close: func() { _ = db.Close() }}, nil

	case "postgres":
		if cfg.Store.AutoMigrate {
			if err := migrations.Postgres(cfg.Database.URL); err != nil {
				return nil, err
			}
		}
		pool, err := connectPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st := postgres.New(pool)
		return &Handle{Store: st, Ping: st.Ping, Close: pool.Close}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

// Migrate applies migrations for the configured driver without keeping a
// connection open.
func Migrate(cfg *config.Config) error {
	switch cfg.Store.Driver {
	case "postgres":
		return migrations.Postgres(cfg.Database.URL)
	case "sqlite":
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		return db.Close()
	case "memory":
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewNormalizer builds the row normalizer from the configured aliases and
// state handling.
func NewNormalizer(cfg *config.Config) (*importer.Normalizer, error) {
	return importer.NewNormalizer(
		importer.WithAliases(cfg.Aliases),
		importer.WithStateNormalization(cfg.Import.NormalizeStates),
	)
}
