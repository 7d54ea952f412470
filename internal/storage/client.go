package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,39}$`)

// Options configures the connection pool and the log table.
type Options struct {
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// AcquireTimeout bounds each storage operation, including the wait for a
	// free pooled connection.
	AcquireTimeout time.Duration
}

// DefaultOptions targets reading_logs with at most five connections.
func DefaultOptions() Options {
	return Options{
		Table:           "reading_logs",
		MaxOpenConns:    5,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
		AcquireTimeout:  5 * time.Second,
	}
}

// Client owns the bounded connection pool and the reading log table.
type Client struct {
	db             *sql.DB
	dialect        Dialect
	table          string
	acquireTimeout time.Duration
}

// Open parses databaseURL, opens a bounded pool and verifies connectivity.
func Open(ctx context.Context, databaseURL string, opts Options) (*Client, error) {
	dialect, dsn, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	client, err := NewClient(db, dialect, opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	if dialect == DialectSQLite && isSQLiteMemory(dsn) {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	if err := client.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s database: %w", dialect, err)
	}

	return client, nil
}

// NewClient wraps an already opened pool; pass a configured instance from main.
func NewClient(db *sql.DB, dialect Dialect, opts Options) (*Client, error) {
	defaults := DefaultOptions()
	if opts.Table == "" {
		opts.Table = defaults.Table
	}
	if !tableNamePattern.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaults.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = defaults.MaxIdleConns
	}
	if opts.MaxIdleConns > opts.MaxOpenConns {
		opts.MaxIdleConns = opts.MaxOpenConns
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaults.AcquireTimeout
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	return &Client{
		db:             db,
		dialect:        dialect,
		table:          opts.Table,
		acquireTimeout: opts.AcquireTimeout,
	}, nil
}

// Dialect reports the SQL flavour of the pool.
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// Table returns the log table name.
func (c *Client) Table() string {
	return c.table
}

// DB exposes the pool for maintenance tasks.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Stats exposes pool counters for health reporting.
func (c *Client) Stats() sql.DBStats {
	return c.db.Stats()
}

// Ping checks that a connection can be acquired and used.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	return c.db.PingContext(ctx)
}

// Close releases every pooled connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// bound applies the acquire timeout to one storage operation.
func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.acquireTimeout)
}
