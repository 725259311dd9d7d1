package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = FULL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// OpenSqlite opens the mirror database at path and brings its schema up to
// date. The parent directory is created if needed.
func OpenSqlite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for SQLite: %w", err)
	}
	sqlite, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	if err := prepareSqlite(sqlite); err != nil {
		if cerr := sqlite.Close(); cerr != nil {
			zap.L().Error("Failed to close SQLite", zap.Error(cerr))
		}
		return nil, err
	}
	zap.L().Info("Opened SQLite database", zap.String("path", path))
	return sqlite, nil
}

func prepareSqlite(sqlite *sql.DB) error {
	for _, pragma := range sqlitePragmas {
		if _, err := sqlite.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set SQLite pragma %q: %w", pragma, err)
		}
	}
	if err := migrateUp(sqlite); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := sqlite.Ping(); err != nil {
		return fmt.Errorf("failed to ping SQLite: %w", err)
	}
	return nil
}

func migrateUp(sqlite *sql.DB) error {
	driver, err := sqlite3.WithInstance(sqlite, &sqlite3.Config{NoTxWrap: true})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	// m.Close would close sqlite as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, err := m.Version()
	if err == nil {
		zap.L().Debug("Mirror schema ready", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}
