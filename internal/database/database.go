package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"mediaplus/internal/config"
)

const retryDelay = 25 * time.Millisecond

// Database wraps a *sql.DB holding the media catalog. Reads go through
// Queries; writes go through Update so observers are told about them. It is
// safe for concurrent use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn     *sql.DB
	logger   *logrus.Logger
	notifier *Notifier
	retries  int
}

// NewDatabase opens (or creates) the SQLite catalog at cfg.Path and brings
// its schema up to date. Every pooled connection gets foreign keys, WAL,
// a busy timeout and immediate write transactions through the DSN. Caller
// should Close() it when finished.
func NewDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (*Database, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d&_txlock=immediate",
		cfg.Path, cfg.BusyTimeoutMs)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns := cfg.MaxConnections
	if maxConns < 1 {
		maxConns = 1
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns)
	conn.SetConnMaxLifetime(15 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := FromConn(conn, logger)
	if cfg.BusyRetries > 0 {
		db.retries = cfg.BusyRetries
	}

	if err := db.migrateOrReset(ctx, cfg.ResetOnMigrationFailure); err != nil {
		conn.Close()
		return nil, err
	}

	logger.WithField("db_path", cfg.Path).Info("Database initialized successfully")
	return db, nil
}

// FromConn wraps an already opened connection without running migrations.
func FromConn(conn *sql.DB, logger *logrus.Logger) *Database {
	return &Database{
		conn:     conn,
		logger:   logger,
		notifier: NewNotifier(),
		retries:  3,
	}
}

// Queries returns a query set bound to the connection pool, for reads and
// single-statement writes that do not need to be observed.
func (db *Database) Queries() *Queries {
	return &Queries{db: db.conn}
}

// Notifier exposes the change notifier backing live queries.
func (db *Database) Notifier() *Notifier {
	return db.notifier
}

// Update runs fn inside one write transaction and commits it. After a
// successful commit, observers of tables are notified. Lock conflicts are
// retried; any other error from fn rolls the transaction back and is
// returned unchanged.
func (db *Database) Update(ctx context.Context, fn func(q *Queries) error, tables ...Table) error {
	attempts := db.retries
	if attempts < 1 {
		attempts = 1
	}

	err := retry.Do(
		func() error { return db.inTx(ctx, fn) },
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.RetryIf(isBusy),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			db.logger.WithError(err).WithField("attempt", n+1).Debug("Retrying busy transaction")
		}),
	)
	if err != nil {
		return err
	}

	db.notifier.Publish(tables...)
	return nil
}

func (db *Database) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}

	if err := fn(&Queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.WithError(rbErr).Warn("Failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (db *Database) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}
