package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/store"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type payrollRunRepository struct {
	db database.Querier
}

func NewPayrollRunRepository(db database.Querier) payroll.RunRepository {
	return &payrollRunRepository{db: db}
}

const runColumns = `r.id, r.subject, r.period_start, r.period_end, r.salary_date, r.status, r.generated_by,
		r.approver_id, r.approved_at, r.rejected_by, r.rejection_comment, r.rejected_at,
		r.payment_reference, r.paid_at, r.total_gross, r.total_deductions, r.total_net,
		r.employee_count, r.version, r.is_deleted, r.created_at, r.updated_at`

const lineColumns = `id, run_id, employee_id, employee_code, employee_name,
		calendar_days, eligible_days, paid_days, lop_days, monthly_gross, per_day_salary, components,
		gross_pay, total_deductions, net_pay, original_gross_pay, original_deduction, original_no_of_days,
		warnings, notes`

// lineComponentRecord is the JSONB shape of a line component.
type lineComponentRecord struct {
	ComponentID    string          `json:"component_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	Fixed          bool            `json:"fixed"`
	MonthlyAmount  decimal.Decimal `json:"monthly_amount"`
	ProratedAmount decimal.Decimal `json:"prorated_amount"`
}

// ========== READ ==========

func (r *payrollRunRepository) FindByID(ctx context.Context, id string) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs r WHERE r.id = $1`
	run, err := scanRun(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == invalidTextCode {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}

	lines, err := r.findLines(ctx, q, id)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	run.Lines = lines
	return run, nil
}

func (r *payrollRunRepository) findLines(ctx context.Context, q database.Querier, runID string) ([]payroll.PayrollLine, error) {
	query := `SELECT ` + lineColumns + ` FROM payroll_lines WHERE run_id = $1 ORDER BY employee_id`

	rows, err := q.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll lines: %w", err)
	}
	defer rows.Close()

	var lines []payroll.PayrollLine
	for rows.Next() {
		var l payroll.PayrollLine
		var componentsBytes []byte
		if err := rows.Scan(
			&l.ID, &l.RunID, &l.EmployeeID, &l.EmployeeCode, &l.EmployeeName,
			&l.CalendarDays, &l.EligibleDays, &l.PaidDays, &l.LOPDays, &l.MonthlyGross, &l.PerDaySalary, &componentsBytes,
			&l.GrossPay, &l.TotalDeductions, &l.NetPay, &l.OriginalGrossPay, &l.OriginalDeduction, &l.OriginalNoOfDays,
			&l.Warnings, &l.Notes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payroll line: %w", err)
		}
		components, err := decodeComponents(componentsBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to decode components of line %s: %w", l.ID, err)
		}
		l.Components = components
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll lines: %w", err)
	}

	return lines, nil
}

func (r *payrollRunRepository) List(ctx context.Context, filter payroll.RunFilter, page store.Page) (store.Result[payroll.PayrollRun], error) {
	q := GetQuerier(ctx, r.db)
	page = page.Normalize()

	where, args := buildRunFilter(filter)
	baseQuery := ` FROM payroll_runs r ` + where

	// Count query
	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&totalCount); err != nil {
		return store.Result[payroll.PayrollRun]{}, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	selectQuery := fmt.Sprintf(`SELECT %s%s ORDER BY r.created_at DESC, r.id DESC LIMIT $%d OFFSET $%d`,
		runColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return store.Result[payroll.PayrollRun]{}, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	runs := make([]payroll.PayrollRun, 0, page.Limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return store.Result[payroll.PayrollRun]{}, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return store.Result[payroll.PayrollRun]{}, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}

	return store.Result[payroll.PayrollRun]{
		Items:      runs,
		TotalCount: totalCount,
		Page:       page.Page,
		Limit:      page.Limit,
	}, nil
}

// ========== WRITE ==========

func (r *payrollRunRepository) Create(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_runs (
			id, subject, period_start, period_end, salary_date, status, generated_by,
			total_gross, total_deductions, total_net, employee_count, version, is_deleted,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, FALSE, $13, $14)
	`
	if run.Version == 0 {
		run.Version = 1
	}
	_, err := q.Exec(ctx, query,
		run.ID, run.Subject, run.Period.StartDate, run.Period.EndDate, run.Period.SalaryDate,
		string(run.Status), run.GeneratedBy,
		run.TotalGross, run.TotalDeductions, run.TotalNet, run.EmployeeCount(), run.Version,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	if err := r.insertLines(ctx, q, run); err != nil {
		return payroll.PayrollRun{}, err
	}
	return run, nil
}

// Update writes the run only if its stored version still equals run.Version,
// then replaces its lines. The returned run carries the bumped version.
func (r *payrollRunRepository) Update(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	var rejectedBy, rejectionComment *string
	var rejectedAt *time.Time
	if run.Rejection != nil {
		rejectedBy = &run.Rejection.RejectedBy
		rejectionComment = &run.Rejection.Comment
		rejectedAt = &run.Rejection.RejectedAt
	}

	query := `
		UPDATE payroll_runs SET
			subject = $3, salary_date = $4, status = $5, approver_id = $6, approved_at = $7,
			rejected_by = $8, rejection_comment = $9, rejected_at = $10,
			payment_reference = $11, paid_at = $12,
			total_gross = $13, total_deductions = $14, total_net = $15, employee_count = $16,
			is_deleted = $17, updated_at = $18, version = version + 1
		WHERE id = $1 AND version = $2
	`
	tag, err := q.Exec(ctx, query,
		run.ID, run.Version,
		run.Subject, run.Period.SalaryDate, string(run.Status), run.ApproverID, run.ApprovedAt,
		rejectedBy, rejectionComment, rejectedAt,
		run.PaymentReference, run.PaidAt,
		run.TotalGross, run.TotalDeductions, run.TotalNet, run.EmployeeCount(),
		run.IsDeleted, run.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to update payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payroll_runs WHERE id = $1)`, run.ID).Scan(&exists); err != nil {
			return payroll.PayrollRun{}, fmt.Errorf("failed to check payroll run: %w", err)
		}
		if !exists {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, payroll.ErrConcurrentModification
	}

	if _, err := q.Exec(ctx, `DELETE FROM payroll_lines WHERE run_id = $1`, run.ID); err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("failed to clear payroll lines: %w", err)
	}
	if err := r.insertLines(ctx, q, run); err != nil {
		return payroll.PayrollRun{}, err
	}

	run.Version++
	return run, nil
}

func (r *payrollRunRepository) insertLines(ctx context.Context, q database.Querier, run payroll.PayrollRun) error {
	query := `INSERT INTO payroll_lines (` + lineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	for _, l := range run.Lines {
		componentsJSON, err := encodeComponents(l.Components)
		if err != nil {
			return fmt.Errorf("failed to encode components of line %s: %w", l.ID, err)
		}
		warnings := l.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		_, err = q.Exec(ctx, query,
			l.ID, run.ID, l.EmployeeID, l.EmployeeCode, l.EmployeeName,
			l.CalendarDays, l.EligibleDays, l.PaidDays, l.LOPDays, l.MonthlyGross, l.PerDaySalary, componentsJSON,
			l.GrossPay, l.TotalDeductions, l.NetPay, l.OriginalGrossPay, l.OriginalDeduction, l.OriginalNoOfDays,
			warnings, l.Notes,
		)
		if err != nil {
			switch pgErrorCode(err) {
			case uniqueViolationCode:
				return &payroll.EmployeeError{EmployeeID: l.EmployeeID, Err: payroll.ErrDuplicateEmployee}
			case foreignKeyViolationCode:
				return &payroll.EmployeeError{EmployeeID: l.EmployeeID, Err: payroll.ErrEmployeeNotFound}
			}
			return fmt.Errorf("failed to insert payroll line for employee %s: %w", l.EmployeeID, err)
		}
	}
	return nil
}

// ========== SCAN HELPERS ==========

func scanRun(row pgx.Row) (payroll.PayrollRun, error) {
	var run payroll.PayrollRun
	var status string
	var rejectedBy, rejectionComment *string
	var rejectedAt *time.Time

	err := row.Scan(
		&run.ID, &run.Subject, &run.Period.StartDate, &run.Period.EndDate, &run.Period.SalaryDate, &status, &run.GeneratedBy,
		&run.ApproverID, &run.ApprovedAt, &rejectedBy, &rejectionComment, &rejectedAt,
		&run.PaymentReference, &run.PaidAt, &run.TotalGross, &run.TotalDeductions, &run.TotalNet,
		&run.Headcount, &run.Version, &run.IsDeleted, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	run.Status = payroll.RunStatus(status)
	if rejectedBy != nil && rejectedAt != nil {
		run.Rejection = &payroll.Rejection{RejectedBy: *rejectedBy, RejectedAt: *rejectedAt}
		if rejectionComment != nil {
			run.Rejection.Comment = *rejectionComment
		}
	}
	return run, nil
}

func encodeComponents(components []payroll.LineComponent) ([]byte, error) {
	records := make([]lineComponentRecord, 0, len(components))
	for _, c := range components {
		records = append(records, lineComponentRecord{
			ComponentID:    c.ComponentID,
			Code:           c.Code,
			Name:           c.Name,
			Kind:           string(c.Kind),
			Fixed:          c.Fixed,
			MonthlyAmount:  c.MonthlyAmount,
			ProratedAmount: c.ProratedAmount,
		})
	}
	return json.Marshal(records)
}

func decodeComponents(data []byte) ([]payroll.LineComponent, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []lineComponentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	components := make([]payroll.LineComponent, 0, len(records))
	for _, rec := range records {
		components = append(components, payroll.LineComponent{
			ComponentID:    rec.ComponentID,
			Code:           rec.Code,
			Name:           rec.Name,
			Kind:           payroll.ComponentKind(rec.Kind),
			Fixed:          rec.Fixed,
			MonthlyAmount:  rec.MonthlyAmount,
			ProratedAmount: rec.ProratedAmount,
		})
	}
	return components, nil
}
