package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// goose keeps its dialect, filesystem and logger in package globals.
var gooseMu sync.Mutex

// migrate applies embedded migrations up to version, or all of them when
// version is zero.
func migrate(ctx context.Context, conn *sql.DB, logger *logrus.Logger, version int64) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(logger)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if version > 0 {
		return goose.UpToContext(ctx, conn, migrationsDir, version)
	}
	return goose.UpContext(ctx, conn, migrationsDir)
}

// SchemaVersion returns the currently applied migration version.
func (db *Database) SchemaVersion(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect("sqlite3"); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db.conn)
}

// migrateOrReset runs migrations and, when allowed, falls back to dropping
// every table and migrating from an empty schema.
func (db *Database) migrateOrReset(ctx context.Context, allowReset bool) error {
	err := migrate(ctx, db.conn, db.logger, 0)
	if err == nil {
		return nil
	}
	if !allowReset {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	db.logger.WithError(err).Warn("Migration failed, resetting catalog schema")
	if err := db.dropAllTables(ctx); err != nil {
		return fmt.Errorf("failed to reset schema: %w", err)
	}
	if err := migrate(ctx, db.conn, db.logger, 0); err != nil {
		return fmt.Errorf("failed to apply migrations after reset: %w", err)
	}
	return nil
}

func (db *Database) dropAllTables(ctx context.Context) error {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return err
	}
	defer conn.ExecContext(context.Background(), "PRAGMA foreign_keys=ON")

	rows, err := conn.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range tables {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
			return err
		}
		db.logger.WithField("table", name).Debug("Dropped table")
	}
	return nil
}
