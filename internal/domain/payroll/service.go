package payroll

import (
	"context"
	"io"

	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/store"
)

// PayrollService is the payroll workflow engine. A run is only ever mutated
// through these operations.
type PayrollService interface {
	CreateRun(ctx context.Context, req CreateRunRequest) (RunResult, error)
	UpdateRun(ctx context.Context, req UpdateRunRequest) (PayrollRun, error)
	UpdateEmployees(ctx context.Context, req UpdateEmployeesRequest) (RunResult, error)
	SubmitForApproval(ctx context.Context, runID, actorID, approverID string) (PayrollRun, error)
	Approve(ctx context.Context, runID, actorID string) (PayrollRun, error)
	Reject(ctx context.Context, runID, actorID, comment string) (PayrollRun, error)
	MarkPaid(ctx context.Context, runID, paymentReference string) (PayrollRun, error)
	DeleteRun(ctx context.Context, runID, actorID string) error

	GetRun(ctx context.Context, runID string) (PayrollRun, error)
	ListRuns(ctx context.Context, filter RunFilter, page store.Page) (store.Result[PayrollRun], error)
	WriteRegisterPDF(ctx context.Context, runID string, w io.Writer) error
}
