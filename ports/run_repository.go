package ports

import (
	"context"

	"loanaudit/domain/core"
	"loanaudit/domain/run"
)

// AuditRunRepository persists stage executions for replay
type AuditRunRepository interface {
	Save(ctx context.Context, r *run.AuditRun) error
	Get(ctx context.Context, id core.RunID) (*run.AuditRun, error)
	List(ctx context.Context, filter run.Filter) ([]run.AuditRun, error)
}
