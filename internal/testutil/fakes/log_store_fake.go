package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/dhima/reading-log/internal/models"
)

// FakeLogStore is an in-memory readinglog.Store with the same duplicate
// suppression as the SQL store.
type FakeLogStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []models.LogEntry
	Now     func() time.Time
	// Err, when set, is returned by every call.
	Err error
	// Calls counts store invocations.
	Calls int
}

func NewFakeLogStore() *FakeLogStore {
	return &FakeLogStore{Now: func() time.Time { return time.Now().UTC() }}
}

func (f *FakeLogStore) InsertLogIfChanged(_ context.Context, token, title string, url *string) (models.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return models.SaveResult{}, f.Err
	}

	for i := len(f.entries) - 1; i >= 0; i-- {
		e := f.entries[i]
		if e.Token != token {
			continue
		}
		if e.Title == title && equalURL(e.URL, url) {
			return models.SaveResult{Outcome: models.SaveOutcomeDuplicate, ID: e.ID, CreatedAt: e.CreatedAt}, nil
		}
		break
	}

	f.nextID++
	entry := models.LogEntry{ID: f.nextID, Token: token, Title: title, CreatedAt: f.Now()}
	if url != nil {
		u := *url
		entry.URL = &u
	}
	f.entries = append(f.entries, entry)
	return models.SaveResult{Outcome: models.SaveOutcomeInserted, ID: entry.ID, CreatedAt: entry.CreatedAt}, nil
}

func (f *FakeLogStore) ListLogsByToken(_ context.Context, token string) ([]models.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}

	out := []models.LogEntry{}
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].Token == token {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

// Count returns the number of stored rows for token.
func (f *FakeLogStore) Count(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.Token == token {
			n++
		}
	}
	return n
}

func equalURL(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
