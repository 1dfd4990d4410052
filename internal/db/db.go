package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/tgienger/taskdesk/internal/logger"
)

//go:embed schema.sql
var schema string

const (
	defaultMaxOpenConns    = 8
	defaultMaxIdleConns    = 4
	defaultConnMaxLifetime = 30 * time.Minute
	defaultAcquireTimeout  = 5 * time.Second
	defaultBusyTimeout     = 5 * time.Second
)

// Config captures the pool bounds for one SQLite database file.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
	BusyTimeout     time.Duration
}

// DB owns the connection pool and implements Repository. It is safe for
// concurrent use and is meant to be shared by every caller in the process.
type DB struct {
	pool           *sql.DB
	path           string
	acquireTimeout time.Duration
}

var _ Repository = (*DB)(nil)

// Open creates the connection pool and initializes the schema
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, internal("open", "database path must not be empty", nil)
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageFault("open", fmt.Errorf("create data directory: %w", err))
		}
	}
	applyDefaults(&cfg)

	pool, err := sql.Open("sqlite3", buildDSN(cfg))
	if err != nil {
		return nil, storageFault("open", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, storageFault("open", fmt.Errorf("ping: %w", err))
	}

	db := &DB{pool: pool, path: cfg.Path, acquireTimeout: cfg.AcquireTimeout}
	if err := db.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.FromContext(ctx).Debug("database ready",
		"path", cfg.Path,
		"max_open_conns", cfg.MaxOpenConns,
		"acquire_timeout", cfg.AcquireTimeout,
	)
	return db, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = defaultBusyTimeout
	}
}

// buildDSN enables foreign keys on every pooled connection. Transactions take
// the write lock up front so concurrent writers wait on busy_timeout instead
// of failing on lock upgrade.
func buildDSN(cfg Config) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout.Milliseconds()))
	q.Set("_txlock", "immediate")
	return cfg.Path + "?" + q.Encode()
}

// InitSchema creates the tables if they do not exist. It is safe to call on every start.
func (db *DB) InitSchema(ctx context.Context) error {
	conn, err := db.acquire(ctx, "init schema")
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return storageFault("init schema", err)
	}
	return nil
}

// acquire takes a connection from the pool, waiting at most acquireTimeout.
// Callers must Close the connection to hand it back.
func (db *DB) acquire(ctx context.Context, op string) (*sql.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, db.acquireTimeout)
	defer cancel()
	conn, err := db.pool.Conn(actx)
	if err != nil {
		return nil, internal(op, "connection pool unavailable", err)
	}
	return conn, nil
}

// querier is the subset shared by *sql.Conn and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction on a single pooled connection and rolls
// back if fn or the commit fails.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	conn, err := db.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return storageFault(op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			if rb := tx.Rollback(); rb != nil && !errors.Is(rb, sql.ErrTxDone) {
				logger.FromContext(ctx).Warn("sqlite: rollback failed", "op", op, "error", rb)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return storageFault(op, err)
	}
	if err = tx.Commit(); err != nil {
		return storageFault(op, fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// rowsAffected turns an update or delete that touched nothing into NotFound.
func rowsAffected(op string, res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageFault(op, fmt.Errorf("rows affected: %w", err))
	}
	if n == 0 {
		return notFound(op, format, args...)
	}
	return nil
}

// IsConstraint reports whether err was caused by a SQLite constraint violation
// such as a duplicate email or tag name.
func IsConstraint(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

// Path returns the database file location
func (db *DB) Path() string {
	return db.path
}

// Close releases the pool
func (db *DB) Close() error {
	if db == nil || db.pool == nil {
		return nil
	}
	return db.pool.Close()
}
