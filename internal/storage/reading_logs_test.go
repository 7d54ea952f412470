package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dhima/reading-log/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// setupTestClient opens a file-backed SQLite pool with the schema in place.
func setupTestClient(t *testing.T) *Client {
	t.Helper()
	opts := DefaultOptions()
	opts.AcquireTimeout = 30 * time.Second

	client, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "reading.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.EnsureSchema(context.Background()))
	return client
}

func countRows(t *testing.T, c *Client, token string) int {
	t.Helper()
	var n int
	err := c.db.QueryRow("SELECT COUNT(*) FROM "+c.table+" WHERE token = ?", token).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestInsertLogIfChanged_WhenFirstEntry_ThenInserts(t *testing.T) {
	// Arrange
	client := setupTestClient(t)
	ctx := context.Background()

	// Act
	res, err := client.InsertLogIfChanged(ctx, "tok1", "Chapter 1", nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.SaveOutcomeInserted, res.Outcome)
	assert.Equal(t, int64(1), res.ID)
	assert.False(t, res.CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), res.CreatedAt, time.Minute)
}

func TestInsertLogIfChanged_WhenConsecutiveDuplicate_ThenNoOp(t *testing.T) {
	// Arrange
	client := setupTestClient(t)
	ctx := context.Background()
	first, err := client.InsertLogIfChanged(ctx, "tok1", "Chapter 1", nil)
	require.NoError(t, err)

	// Act
	second, err := client.InsertLogIfChanged(ctx, "tok1", "Chapter 1", nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.SaveOutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.Equal(t, 1, countRows(t, client, "tok1"))

	logs, err := client.ListLogsByToken(ctx, "tok1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(1), logs[0].ID)
	assert.Equal(t, "Chapter 1", logs[0].Title)
	assert.Nil(t, logs[0].URL)
	assert.True(t, first.CreatedAt.Equal(logs[0].CreatedAt))
}

func TestInsertLogIfChanged_WhenDuplicateIsNotConsecutive_ThenInserts(t *testing.T) {
	// Arrange
	client := setupTestClient(t)
	ctx := context.Background()

	// Act
	for _, title := range []string{"X", "Y", "X"} {
		res, err := client.InsertLogIfChanged(ctx, "tok", title, nil)
		require.NoError(t, err)
		require.True(t, res.Inserted(), "title %s", title)
	}

	// Assert
	logs, err := client.ListLogsByToken(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, []string{"X", "Y", "X"}, []string{logs[0].Title, logs[1].Title, logs[2].Title})
	assert.Greater(t, logs[0].ID, logs[1].ID)
	assert.Greater(t, logs[1].ID, logs[2].ID)
}

func TestInsertLogIfChanged_URLEquality(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	t.Run("null url differs from empty url", func(t *testing.T) {
		res, err := client.InsertLogIfChanged(ctx, "url-tok", "Book", nil)
		require.NoError(t, err)
		assert.True(t, res.Inserted())

		res, err = client.InsertLogIfChanged(ctx, "url-tok", "Book", strPtr(""))
		require.NoError(t, err)
		assert.True(t, res.Inserted())
	})

	t.Run("empty url equals empty url", func(t *testing.T) {
		res, err := client.InsertLogIfChanged(ctx, "url-tok", "Book", strPtr(""))
		require.NoError(t, err)
		assert.Equal(t, models.SaveOutcomeDuplicate, res.Outcome)
	})

	t.Run("empty url differs from null url", func(t *testing.T) {
		res, err := client.InsertLogIfChanged(ctx, "url-tok", "Book", nil)
		require.NoError(t, err)
		assert.True(t, res.Inserted())
	})

	t.Run("same title with different url inserts", func(t *testing.T) {
		res, err := client.InsertLogIfChanged(ctx, "url-tok", "Book", strPtr("https://example.com/a"))
		require.NoError(t, err)
		assert.True(t, res.Inserted())

		res, err = client.InsertLogIfChanged(ctx, "url-tok", "Book", strPtr("https://example.com/a"))
		require.NoError(t, err)
		assert.False(t, res.Inserted())
	})

	logs, err := client.ListLogsByToken(ctx, "url-tok")
	require.NoError(t, err)
	require.Len(t, logs, 4)
	require.NotNil(t, logs[0].URL)
	assert.Equal(t, "https://example.com/a", *logs[0].URL)
	assert.Nil(t, logs[1].URL)
	require.NotNil(t, logs[2].URL)
	assert.Equal(t, "", *logs[2].URL)
	assert.Nil(t, logs[3].URL)
}

func TestInsertLogIfChanged_WhenTokensDiffer_ThenHistoriesAreIndependent(t *testing.T) {
	// Arrange
	client := setupTestClient(t)
	ctx := context.Background()
	_, err := client.InsertLogIfChanged(ctx, "alice", "Dune", nil)
	require.NoError(t, err)

	// Act
	res, err := client.InsertLogIfChanged(ctx, "bob", "Dune", nil)

	// Assert
	require.NoError(t, err)
	assert.True(t, res.Inserted())
	assert.Equal(t, 1, countRows(t, client, "alice"))
	assert.Equal(t, 1, countRows(t, client, "bob"))
}

func TestInsertLogIfChanged_WhenConcurrentIdenticalSaves_ThenOneRow(t *testing.T) {
	// Arrange
	client := setupTestClient(t)
	ctx := context.Background()
	const writers = 8

	var wg sync.WaitGroup
	results := make([]models.SaveResult, writers)
	errs := make([]error, writers)

	// Act
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.InsertLogIfChanged(ctx, "race", "Same Page", strPtr("https://example.com"))
		}(i)
	}
	wg.Wait()

	// Assert
	inserted := 0
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		if results[i].Inserted() {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, countRows(t, client, "race"))
}

func TestListLogsByToken_WhenNoEntries_ThenReturnsEmptySlice(t *testing.T) {
	client := setupTestClient(t)

	logs, err := client.ListLogsByToken(context.Background(), "nobody")

	require.NoError(t, err)
	assert.NotNil(t, logs)
	assert.Empty(t, logs)
}

func TestListLogsByToken_WhenSaved_ThenNewestFirst(t *testing.T) {
	// Arrange
	client := setupTestClient(t)
	ctx := context.Background()
	for _, title := range []string{"Chapter 1", "Chapter 2", "Chapter 3"} {
		_, err := client.InsertLogIfChanged(ctx, "reader", title, nil)
		require.NoError(t, err)
	}

	// Act
	logs, err := client.ListLogsByToken(ctx, "reader")

	// Assert
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "Chapter 3", logs[0].Title)
	assert.Equal(t, "Chapter 1", logs[2].Title)
	for _, l := range logs {
		assert.Equal(t, "reader", l.Token)
	}
	assert.False(t, logs[0].CreatedAt.Before(logs[1].CreatedAt))
}

func TestInsertLogIfChanged_WhenDatabaseClosed_ThenReturnsError(t *testing.T) {
	client := setupTestClient(t)
	require.NoError(t, client.Close())

	_, err := client.InsertLogIfChanged(context.Background(), "tok", "title", nil)

	assert.ErrorContains(t, err, "database is closed")
}

func TestOpen_WhenMemoryDatabase_ThenSharesOneConnection(t *testing.T) {
	// Arrange
	client, err := Open(context.Background(), "sqlite://:memory:", DefaultOptions())
	require.NoError(t, err)
	defer client.Close()
	ctx := context.Background()

	// Act
	require.NoError(t, client.EnsureSchema(ctx))
	_, err = client.InsertLogIfChanged(ctx, "mem", "Only", nil)
	require.NoError(t, err)
	logs, err := client.ListLogsByToken(ctx, "mem")

	// Assert
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 1, client.Stats().MaxOpenConnections)
}

func TestScanTime(t *testing.T) {
	want := time.Date(2025, 1, 2, 3, 4, 5, 123000000, time.UTC)

	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"time value", want, want},
		{"sqlite text with millis", "2025-01-02 03:04:05.123", want},
		{"bytes", []byte("2025-01-02 03:04:05.123"), want},
		{"rfc3339", "2025-01-02T03:04:05.123Z", want},
		{"no fraction", "2025-01-02 03:04:05", want.Truncate(time.Second)},
		{"nil", nil, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanTime(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}

	_, err := scanTime("yesterday")
	assert.Error(t, err)
	_, err = scanTime(42)
	assert.Error(t, err)
}

func TestSameURL(t *testing.T) {
	assert.True(t, sameURL(nil, nil))
	assert.False(t, sameURL(nil, strPtr("")))
	assert.False(t, sameURL(strPtr(""), nil))
	assert.True(t, sameURL(strPtr("a"), strPtr("a")))
	assert.False(t, sameURL(strPtr("a"), strPtr("b")))
}

func TestListLogsByToken_WhenPoolExhausted_ThenFailsAfterAcquireTimeout(t *testing.T) {
	// Arrange
	opts := DefaultOptions()
	opts.MaxOpenConns = 1
	opts.AcquireTimeout = 50 * time.Millisecond
	client, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "reading.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.EnsureSchema(context.Background()))

	held, err := client.DB().Conn(context.Background())
	require.NoError(t, err)
	defer held.Close()

	// Act
	start := time.Now()
	_, err = client.ListLogsByToken(context.Background(), "tok1")

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestInsertLogIfChanged_WhenInserted_ThenCreatedAtIsCurrentUTC(t *testing.T) {
	client := setupTestClient(t)
	before := time.Now().UTC().Add(-time.Minute)

	res, err := client.InsertLogIfChanged(context.Background(), "tok1", "Chapter 1", nil)

	require.NoError(t, err)
	after := time.Now().UTC().Add(time.Minute)
	assert.Equal(t, time.UTC, res.CreatedAt.Location())
	assert.True(t, res.CreatedAt.After(before) && res.CreatedAt.Before(after), "created_at %v", res.CreatedAt)
}
