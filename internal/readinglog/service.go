package readinglog

import (
	"context"
	"strings"
	"time"

	"github.com/dhima/reading-log/internal/models"
	platformEvents "github.com/dhima/reading-log/platform/events"
	"go.uber.org/zap"
)

// PrivateTitlePrefix marks titles a reader does not want recorded.
const PrivateTitlePrefix = "*"

const publishTimeout = 5 * time.Second

// Save and list results reported to the Recorder.
const (
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultOK      = "ok"
)

// Service provides business logic for saving and listing reading logs.
type Service struct {
	store       Store
	publisher   EventPublisher
	recorder    Recorder
	readiness   *Readiness
	logger      *zap.Logger
	skipPrivate bool
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher publishes every inserted entry after commit.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithRecorder reports call outcomes, typically to Prometheus.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithReadiness makes calls fail fast while the schema is degraded.
func WithReadiness(r *Readiness) Option {
	return func(s *Service) { s.readiness = r }
}

// WithSkipPrivateTitles turns saves of titles starting with "*" into no-ops.
func WithSkipPrivateTitles(skip bool) Option {
	return func(s *Service) { s.skipPrivate = skip }
}

// NewService creates a reading log service.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		recorder: nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveLog appends title and url to the history of token unless the newest
// entry already matches. A suppressed duplicate is reported through the
// result, not as an error.
func (s *Service) SaveLog(ctx context.Context, token, title string, url *string) (models.SaveResult, error) {
	if token == "" || title == "" {
		s.recorder.ObserveSave(ResultInvalid)
		return models.SaveResult{}, NewValidationError("missing token or title")
	}

	if s.skipPrivate && strings.HasPrefix(title, PrivateTitlePrefix) {
		s.recorder.ObserveSave(string(models.SaveOutcomeSkipped))
		s.logger.Debug("private title not stored")
		return models.SaveResult{Outcome: models.SaveOutcomeSkipped}, nil
	}

	if err := s.checkReady("save log"); err != nil {
		s.recorder.ObserveSave(ResultError)
		return models.SaveResult{}, err
	}

	result, err := s.store.InsertLogIfChanged(ctx, token, title, url)
	if err != nil {
		s.recorder.ObserveSave(ResultError)
		s.logger.Error("failed to save reading log", zap.Error(err))
		return models.SaveResult{}, &StorageError{Op: "save log", Err: err}
	}
	s.recorder.ObserveSave(string(result.Outcome))

	if !result.Inserted() {
		s.logger.Debug("duplicate reading log suppressed", zap.Int64("log_id", result.ID))
		return result, nil
	}

	s.logger.Info("reading log saved", zap.Int64("log_id", result.ID))
	s.publish(ctx, platformEvents.LogSavedEvent{
		ID:        result.ID,
		Token:     token,
		Title:     title,
		URL:       url,
		CreatedAt: result.CreatedAt,
	})
	return result, nil
}

// ListLogs returns the history of token, newest first. An unknown token has
// an empty history.
func (s *Service) ListLogs(ctx context.Context, token string) ([]models.LogEntry, error) {
	if token == "" {
		s.recorder.ObserveList(ResultInvalid)
		return nil, NewValidationError("missing token")
	}

	if err := s.checkReady("list logs"); err != nil {
		s.recorder.ObserveList(ResultError)
		return nil, err
	}

	logs, err := s.store.ListLogsByToken(ctx, token)
	if err != nil {
		s.recorder.ObserveList(ResultError)
		s.logger.Error("failed to list reading logs", zap.Error(err))
		return nil, &StorageError{Op: "list logs", Err: err}
	}
	if logs == nil {
		logs = []models.LogEntry{}
	}

	s.recorder.ObserveList(ResultOK)
	return logs, nil
}

func (s *Service) checkReady(op string) error {
	if s.readiness == nil || s.readiness.Ready() {
		return nil
	}
	return &StorageError{Op: op, Err: ErrSchemaNotReady}
}

// publish never fails the save: the entry is already committed.
func (s *Service) publish(ctx context.Context, event platformEvents.LogSavedEvent) {
	if s.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.Warn("failed to publish log saved event",
			zap.Int64("log_id", event.ID),
			zap.Error(err))
	}
}
