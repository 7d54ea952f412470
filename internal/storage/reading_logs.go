package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhima/reading-log/internal/models"
)

// InsertLogIfChanged appends an entry unless the newest entry of the same
// token already carries the same title and url. Writers of one token are
// serialized, so concurrent identical saves insert at most one row.
//
// A suppressed duplicate is not an error: the result has Outcome
// SaveOutcomeDuplicate and the identity of the existing newest row.
func (c *Client) InsertLogIfChanged(ctx context.Context, token, title string, url *string) (result models.SaveResult, err error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return result, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	lock := lockName(c.table, token)
	release, err := c.dialect.acquireSessionLock(ctx, conn, lock)
	if err != nil {
		return result, err
	}
	defer release()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = c.dialect.lockInTx(ctx, tx, lock); err != nil {
		return result, err
	}

	result, err = c.conditionalInsert(ctx, tx, token, title, url)
	if err != nil {
		return result, err
	}

	if !result.Inserted() {
		var newest *models.LogEntry
		newest, err = c.newest(ctx, tx, token)
		if err != nil {
			return result, err
		}
		if newest == nil {
			err = errors.New("duplicate suppressed but no previous entry found")
			return result, err
		}
		result = models.SaveResult{
			Outcome:   models.SaveOutcomeDuplicate,
			ID:        newest.ID,
			CreatedAt: newest.CreatedAt,
		}
	}

	if err = tx.Commit(); err != nil {
		return result, fmt.Errorf("commit transaction: %w", err)
	}

	return result, nil
}

func (c *Client) conditionalInsert(ctx context.Context, tx *sql.Tx, token, title string, url *string) (models.SaveResult, error) {
	if !c.dialect.guardedInsertSupported() {
		return c.checkThenInsert(ctx, tx, token, title, url)
	}

	query := c.dialect.guardedInsertSQL(c.table)
	args := []any{token, title, nullable(url), token, title, nullable(url)}

	var id int64
	var createdAt any
	err := tx.QueryRowContext(ctx, query, args...).Scan(&id, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SaveResult{Outcome: models.SaveOutcomeDuplicate}, nil
	}
	if err != nil {
		return models.SaveResult{}, fmt.Errorf("insert log: %w", err)
	}
	ts, err := scanTime(createdAt)
	if err != nil {
		return models.SaveResult{}, err
	}
	return models.SaveResult{Outcome: models.SaveOutcomeInserted, ID: id, CreatedAt: ts}, nil
}

// checkThenInsert is the MySQL form of the guarded insert. MySQL cannot read
// the target table from a subquery of the same INSERT, so the newest entry is
// read first; the session lock held by the caller keeps the pair atomic.
func (c *Client) checkThenInsert(ctx context.Context, tx *sql.Tx, token, title string, url *string) (models.SaveResult, error) {
	newest, err := c.newest(ctx, tx, token)
	if err != nil {
		return models.SaveResult{}, err
	}
	if newest != nil && newest.Title == title && sameURL(newest.URL, url) {
		return models.SaveResult{Outcome: models.SaveOutcomeDuplicate}, nil
	}

	res, err := tx.ExecContext(ctx, c.dialect.plainInsertSQL(c.table), token, title, nullable(url))
	if err != nil {
		return models.SaveResult{}, fmt.Errorf("insert log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.SaveResult{}, fmt.Errorf("insert log: last insert id: %w", err)
	}

	var createdAt any
	row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT created_at FROM %s WHERE id = ?", c.table), id)
	if err := row.Scan(&createdAt); err != nil {
		return models.SaveResult{}, fmt.Errorf("read inserted log: %w", err)
	}
	ts, err := scanTime(createdAt)
	if err != nil {
		return models.SaveResult{}, err
	}
	return models.SaveResult{Outcome: models.SaveOutcomeInserted, ID: id, CreatedAt: ts}, nil
}

// sameURL compares optional urls: nil equals nil and never equals "".
func sameURL(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// newest returns the most recent entry of token, or nil when there is none.
func (c *Client) newest(ctx context.Context, tx *sql.Tx, token string) (*models.LogEntry, error) {
	query := c.dialect.rebind(fmt.Sprintf(`
		SELECT id, title, url, created_at FROM %s
		WHERE token = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, c.table))

	entry, err := scanEntry(tx.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read newest log: %w", err)
	}
	entry.Token = token
	return entry, nil
}

// ListLogsByToken returns every entry of token, newest first. A token without
// entries yields an empty, non-nil slice.
func (c *Client) ListLogsByToken(ctx context.Context, token string) ([]models.LogEntry, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	query := c.dialect.rebind(fmt.Sprintf(`
		SELECT id, title, url, created_at FROM %s
		WHERE token = ?
		ORDER BY created_at DESC, id DESC`, c.table))

	rows, err := c.db.QueryContext(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	entries := []models.LogEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		entry.Token = token
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LogEntry, error) {
	var entry models.LogEntry
	var url sql.NullString
	var createdAt any

	if err := row.Scan(&entry.ID, &entry.Title, &url, &createdAt); err != nil {
		return nil, err
	}

	if url.Valid {
		entry.URL = &url.String
	}

	ts, err := scanTime(createdAt)
	if err != nil {
		return nil, err
	}
	entry.CreatedAt = ts

	return &entry, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
}

// scanTime normalizes the timestamp representations returned by the
// supported drivers. Stored timestamps carry no zone and are read as UTC.
func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseTimestamp(string(t))
	case string:
		return parseTimestamp(t)
	case nil:
		return time.Time{}, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at %q", s)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
