package storage

import (
	"context"
	"fmt"
)

// SchemaError reports a failed schema step. Startup treats it as fatal unless
// the operator chose to run degraded.
type SchemaError struct {
	Table string
	Step  string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ensure schema for %s: %s: %v", e.Table, e.Step, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// EnsureSchema creates the log table when absent and additively brings an
// older table up to date. Existing rows are never touched, so it is safe to
// call on every startup.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, c.dialect.createTableDDL(c.table)); err != nil {
		return c.schemaErr("create table", err)
	}

	// tables created before urls were recorded lack the column
	if err := c.ensureColumn(ctx, "url", "url TEXT"); err != nil {
		return err
	}

	if err := c.ensureIndex(ctx, "idx_"+c.table+"_token_created"); err != nil {
		return err
	}

	return nil
}

func (c *Client) ensureColumn(ctx context.Context, column, columnDDL string) error {
	exists, err := c.hasColumn(ctx, column)
	if err != nil {
		return c.schemaErr("inspect column "+column, err)
	}
	if exists {
		return nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", c.table, columnDDL)
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		// a concurrent starter may have added it first
		if exists, checkErr := c.hasColumn(ctx, column); checkErr == nil && exists {
			return nil
		}
		return c.schemaErr("add column "+column, err)
	}
	return nil
}

func (c *Client) hasColumn(ctx context.Context, column string) (bool, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, c.dialect.columnExistsQuery(), c.table, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (c *Client) ensureIndex(ctx context.Context, index string) error {
	var count int
	if err := c.db.QueryRowContext(ctx, c.dialect.indexExistsQuery(), c.table, index).Scan(&count); err != nil {
		return c.schemaErr("inspect index "+index, err)
	}
	if count > 0 {
		return nil
	}
	if _, err := c.db.ExecContext(ctx, c.dialect.createIndexDDL(c.table, index)); err != nil {
		return c.schemaErr("create index "+index, err)
	}
	return nil
}

func (c *Client) schemaErr(step string, err error) error {
	return &SchemaError{Table: c.table, Step: step, Err: err}
}
