// Package migrations embeds the inventory schema and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// migrateLogger adapts slog to migrate.Logger.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }

// Postgres applies all pending migrations to the database at url. It opens
// its own connection and closes it when done.
func Postgres(url string) error {
	src, err := iofs.New(postgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("open postgres migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(url))
	if err != nil {
		return fmt.Errorf("init postgres migrations: %w", err)
	}
	defer m.Close()

	return up(m, "postgres")
}

// SQLite applies all pending migrations to an open SQLite handle. The
// handle stays open so in-memory databases keep their schema.
func SQLite(db *sql.DB) error {
	src, err := iofs.New(sqliteFS, "sqlite")
	if err != nil {
		return fmt.Errorf("open sqlite migrations: %w", err)
	}

	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("init sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("init sqlite migrations: %w", err)
	}

	return up(m, "sqlite")
}

func up(m *migrate.Migrate, name string) error {
	m.Log = migrateLogger{logger: slog.Default().With("component", "migrate", "driver", name)}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply %s migrations: %w", name, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read %s migration version: %w", name, err)
	}
	if dirty {
		return fmt.Errorf("%s schema is dirty at version %d", name, version)
	}
	slog.Info("schema up to date", "driver", name, "version", version)
	return nil
}

// pgx5URL rewrites a postgres:// connection string to the scheme the
// pgx/v5 migrate driver registers.
func pgx5URL(url string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(url, scheme) {
			return "pgx5://" + strings.TrimPrefix(url, scheme)
		}
	}
	return url
}
