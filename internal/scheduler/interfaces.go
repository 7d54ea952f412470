package scheduler

import "context"

// SchemaChecker ensures the log table is usable.
type SchemaChecker interface {
	EnsureSchema(ctx context.Context) error
}

// ReadinessObserver is told the result of every check.
type ReadinessObserver interface {
	SetSchemaReady(ready bool)
}
