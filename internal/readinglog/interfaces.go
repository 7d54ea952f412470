package readinglog

import (
	"context"

	"github.com/dhima/reading-log/internal/models"
	platformEvents "github.com/dhima/reading-log/platform/events"
)

// Store defines persistence required by the Service.
type Store interface {
	InsertLogIfChanged(ctx context.Context, token, title string, url *string) (models.SaveResult, error)
	ListLogsByToken(ctx context.Context, token string) ([]models.LogEntry, error)
}

// EventPublisher abstracts the Kafka publisher for testability.
type EventPublisher interface {
	Publish(ctx context.Context, event platformEvents.LogSavedEvent) error
}

// Recorder receives one observation per service call.
type Recorder interface {
	ObserveSave(result string)
	ObserveList(result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSave(string) {}
func (nopRecorder) ObserveList(string) {}
