package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dhima/reading-log/internal/readinglog"
	"github.com/dhima/reading-log/pkg/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const checkTimeout = 30 * time.Second

// Engine re-runs the schema check on a cron schedule and records the outcome
// in the shared readiness state.
type Engine struct {
	schedule  cron.Schedule
	expr      string
	checker   SchemaChecker
	readiness *readinglog.Readiness
	observer  ReadinessObserver
	logger    *zap.Logger
	clock     clock.Clock

	mu   sync.Mutex
	cron *cron.Cron
}

// NewEngine constructs a schema check engine for the cron expression expr.
func NewEngine(expr string, checker SchemaChecker, readiness *readinglog.Readiness, observer ReadinessObserver, logger *zap.Logger) (*Engine, error) {
	return NewEngineWithClock(expr, checker, readiness, observer, logger, clock.RealClock{})
}

// NewEngineWithClock is NewEngine with an explicit time source.
func NewEngineWithClock(expr string, checker SchemaChecker, readiness *readinglog.Readiness, observer ReadinessObserver, logger *zap.Logger, clk clock.Clock) (*Engine, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		schedule:  schedule,
		expr:      expr,
		checker:   checker,
		readiness: readiness,
		observer:  observer,
		logger:    logger.With(zap.String("component", "schema_scheduler")),
		clock:     clk,
	}, nil
}

// Run schedules the check and blocks until ctx is done. Running jobs are
// allowed to finish before it returns.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(e.schedule, cron.FuncJob(func() { e.CheckOnce(ctx) }))
	e.cron = c
	e.mu.Unlock()

	c.Start()
	e.logger.Info("schema check scheduled",
		zap.String("schedule", e.expr),
		zap.Time("next_run", e.NextRun()))

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// NextRun returns the next scheduled check after now.
func (e *Engine) NextRun() time.Time {
	return e.schedule.Next(e.clock.Now().UTC()).UTC()
}

// CheckOnce runs one schema check and updates readiness. It reports whether
// the schema is usable.
func (e *Engine) CheckOnce(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	wasReady := e.readiness.Ready()
	err := e.checker.EnsureSchema(checkCtx)
	now := e.clock.Now().UTC()

	if err != nil {
		e.readiness.MarkDegraded(now, err)
		e.notify(false)
		e.logger.Error("schema check failed", zap.Error(err))
		return false
	}

	e.readiness.MarkReady(now)
	e.notify(true)
	if !wasReady {
		e.logger.Info("schema check succeeded, leaving degraded mode")
	} else {
		e.logger.Debug("schema check succeeded")
	}
	return true
}

func (e *Engine) notify(ready bool) {
	if e.observer != nil {
		e.observer.SetSchemaReady(ready)
	}
}
