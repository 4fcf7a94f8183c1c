package payroll

import (
	"context"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/store"
)

// RunRepository persists payroll runs together with their lines. Update must
// reject a write whose Version is stale with ErrConcurrentModification and
// bump the version on success.
type RunRepository interface {
	store.Store[string, PayrollRun, RunFilter]
}

// SalaryConfigRepository is the salary configuration store.
type SalaryConfigRepository interface {
	GetTemplate(ctx context.Context, id string) (SalaryTemplate, error)
	GetComponent(ctx context.Context, id string) (SalaryComponent, error)
	ListComponentsByIDs(ctx context.Context, ids []string) ([]SalaryComponent, error)
	UpsertComponent(ctx context.Context, component SalaryComponent) (SalaryComponent, error)
	UpsertTemplate(ctx context.Context, template SalaryTemplate) (SalaryTemplate, error)
}

// AttendanceSource reports unpaid leave for an employee within a range.
type AttendanceSource interface {
	ListLOPWindows(ctx context.Context, employeeID string, from, to time.Time) ([]LOPWindow, error)
}

// Transactor runs fn atomically. Repositories called with the context passed
// to fn take part in the same transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
