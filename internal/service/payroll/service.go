package payroll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/store"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxWorkers = 8
	notifyTimeout     = 10 * time.Second
)

type PayrollServiceImpl struct {
	tx         payroll.Transactor
	runRepo    payroll.RunRepository
	employees  employee.Directory
	attendance payroll.AttendanceSource
	notifier   payroll.Notifier
	authorizer payroll.Authorizer
	resolver   *SalaryTemplateResolver
	adjuster   AttendanceAdjuster
	maxWorkers int

	now   func() time.Time
	newID func() string
}

func NewPayrollService(
	tx payroll.Transactor,
	runRepo payroll.RunRepository,
	employees employee.Directory,
	salaryConfig payroll.SalaryConfigRepository,
	attendance payroll.AttendanceSource,
	notifier payroll.Notifier,
	authorizer payroll.Authorizer,
	maxWorkers int,
) payroll.PayrollService {
	if maxWorkers <= 0 {
		maxWorkers = defaultMaxWorkers
	}
	return &PayrollServiceImpl{
		tx:         tx,
		runRepo:    runRepo,
		employees:  employees,
		attendance: attendance,
		notifier:   notifier,
		authorizer: authorizer,
		resolver:   NewSalaryTemplateResolver(salaryConfig),
		maxWorkers: maxWorkers,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      newUUID,
	}
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ========== GENERATION ==========

func (s *PayrollServiceImpl) CreateRun(ctx context.Context, req payroll.CreateRunRequest) (payroll.RunResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunResult{}, err
	}
	if dup, ok := validator.HasDuplicates(req.EmployeeIDs); ok {
		return payroll.RunResult{}, &payroll.EmployeeError{EmployeeID: dup, Err: payroll.ErrDuplicateEmployee}
	}

	period := req.Period()
	lines, excluded, err := s.computeLines(ctx, req.EmployeeIDs, period)
	if err != nil {
		return payroll.RunResult{}, err
	}
	if len(lines) == 0 {
		return payroll.RunResult{Excluded: excluded}, &payroll.EmptyRunError{Excluded: excluded}
	}

	now := s.now()
	run := payroll.PayrollRun{
		ID:          s.newID(),
		Subject:     req.Subject,
		Period:      period,
		Status:      payroll.RunStatusDraft,
		GeneratedBy: req.GeneratedBy,
		Lines:       lines,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.assignLineIDs(&run)
	run.RecalculateTotals()

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.runRepo.Create(ctx, run)
		if err != nil {
			return err
		}
		run = created
		return nil
	})
	if err != nil {
		return payroll.RunResult{}, fmt.Errorf("failed to save payroll run: %w", err)
	}

	slog.Info("payroll run created",
		"run_id", run.ID,
		"employees", run.EmployeeCount(),
		"excluded", len(excluded),
		"total_net", run.TotalNet.String(),
	)
	s.notify(run, payroll.EventRunCreated, req.GeneratedBy, "", run.GeneratedBy)

	return payroll.RunResult{Run: run, Excluded: excluded}, nil
}

type lineResult struct {
	line     payroll.PayrollLine
	excluded *payroll.EmployeeError
}

// computeLines fetches and computes every employee concurrently. Employee
// scoped failures are collected as exclusions; any other failure cancels the
// remaining work and is returned.
func (s *PayrollServiceImpl) computeLines(ctx context.Context, employeeIDs []string, period payroll.Period) ([]payroll.PayrollLine, []payroll.EmployeeError, error) {
	results := make([]lineResult, len(employeeIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxWorkers)
	for i, id := range employeeIDs {
		g.Go(func() error {
			line, err := s.computeEmployee(gctx, id, period)
			if err == nil {
				results[i].line = line
				return nil
			}
			if payroll.IsEmployeeScoped(err) {
				results[i].excluded = &payroll.EmployeeError{EmployeeID: id, Err: err}
				return nil
			}
			return fmt.Errorf("failed to compute payroll line for employee %s: %w", id, err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	lines := make([]payroll.PayrollLine, 0, len(results))
	var excluded []payroll.EmployeeError
	for _, r := range results {
		if r.excluded != nil {
			slog.Info("employee excluded from payroll run", "employee_id", r.excluded.EmployeeID, "reason", r.excluded.Err.Error())
			excluded = append(excluded, *r.excluded)
			continue
		}
		lines = append(lines, r.line)
	}
	return lines, excluded, nil
}

func (s *PayrollServiceImpl) computeEmployee(ctx context.Context, employeeID string, period payroll.Period) (payroll.PayrollLine, error) {
	emp, err := s.employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return payroll.PayrollLine{}, err
	}

	windows, err := s.attendance.ListLOPWindows(ctx, employeeID, period.StartDate, period.EndDate)
	if err != nil {
		return payroll.PayrollLine{}, fmt.Errorf("failed to load unpaid leave: %w", err)
	}
	att, err := s.adjuster.Compute(emp, period, windows)
	if err != nil {
		return payroll.PayrollLine{}, err
	}

	resolved, err := s.resolver.ResolveForEmployee(ctx, emp)
	if err != nil {
		return payroll.PayrollLine{}, err
	}

	return ComputeLine(emp, resolved, att), nil
}

func (s *PayrollServiceImpl) assignLineIDs(run *payroll.PayrollRun) {
	for i := range run.Lines {
		run.Lines[i].RunID = run.ID
		if run.Lines[i].ID == "" {
			run.Lines[i].ID = s.newID()
		}
	}
}

// ========== EDITING ==========

func (s *PayrollServiceImpl) UpdateRun(ctx context.Context, req payroll.UpdateRunRequest) (payroll.PayrollRun, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRun{}, err
	}

	run, err := s.GetRun(ctx, req.RunID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if req.Version != nil && *req.Version != run.Version {
		return payroll.PayrollRun{}, payroll.ErrConcurrentModification
	}
	if !run.CanEdit(req.ActorID) {
		return payroll.PayrollRun{}, &payroll.InvalidStateTransitionError{Operation: "update", From: run.Status}
	}

	if req.Subject != nil {
		run.Subject = *req.Subject
	}
	if req.SalaryDate != nil {
		run.Period.SalaryDate = toDay(req.SalaryDate.Time)
	}
	for i, edit := range req.Lines {
		line, ok := run.Line(edit.EmployeeID)
		if !ok {
			return payroll.PayrollRun{}, &payroll.EmployeeError{EmployeeID: edit.EmployeeID, Err: payroll.ErrLineNotFound}
		}
		if err := applyLineEdit(line, edit, i); err != nil {
			return payroll.PayrollRun{}, err
		}
	}

	run.UpdatedAt = s.now()
	run.RecalculateTotals()

	updated, err := s.save(ctx, run)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	slog.Info("payroll run updated", "run_id", updated.ID, "actor_id", req.ActorID, "edited_lines", len(req.Lines), "version", updated.Version)
	return updated, nil
}

// applyLineEdit sets the edited values on a line. LOP days re-prorate from the
// monthly baseline; gross and deductions, when given, replace the computed
// values outright.
func applyLineEdit(line *payroll.PayrollLine, edit payroll.LineEdit, index int) error {
	if edit.LOPDays != nil {
		if *edit.LOPDays > line.EligibleDays {
			return validator.ValidationErrors{{
				Field:   "lines[" + validator.Itoa(index) + "].lop_days",
				Message: "must not exceed the " + validator.Itoa(line.EligibleDays) + " eligible days",
			}}
		}
		line.LOPDays = *edit.LOPDays
		line.PaidDays = line.EligibleDays - line.LOPDays
		prorate(line)
	}
	if edit.GrossPay != nil {
		line.GrossPay = *edit.GrossPay
	}
	if edit.TotalDeductions != nil {
		line.TotalDeductions = *edit.TotalDeductions
	}
	line.SettleNet()

	if edit.NetPay != nil {
		expected := payroll.RoundMoney(line.GrossPay).Sub(payroll.RoundMoney(line.TotalDeductions))
		if expected.Sub(*edit.NetPay).Abs().GreaterThan(netTolerance) {
			return &payroll.EmployeeError{EmployeeID: line.EmployeeID, Err: payroll.ErrLineInvariant}
		}
	}
	if edit.Notes != nil {
		line.Notes = edit.Notes
	}
	return nil
}

func (s *PayrollServiceImpl) UpdateEmployees(ctx context.Context, req payroll.UpdateEmployeesRequest) (payroll.RunResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunResult{}, err
	}
	if dup, ok := validator.HasDuplicates(req.EmployeeIDs); ok {
		return payroll.RunResult{}, &payroll.EmployeeError{EmployeeID: dup, Err: payroll.ErrDuplicateEmployee}
	}

	run, err := s.GetRun(ctx, req.RunID)
	if err != nil {
		return payroll.RunResult{}, err
	}
	if run.Status != payroll.RunStatusDraft {
		return payroll.RunResult{}, &payroll.InvalidStateTransitionError{Operation: "update employees", From: run.Status}
	}

	wanted := make(map[string]struct{}, len(req.EmployeeIDs))
	for _, id := range req.EmployeeIDs {
		wanted[id] = struct{}{}
	}

	kept := make([]payroll.PayrollLine, 0, len(req.EmployeeIDs))
	present := make(map[string]struct{}, len(run.Lines))
	for _, line := range run.Lines {
		if _, ok := wanted[line.EmployeeID]; ok {
			kept = append(kept, line)
			present[line.EmployeeID] = struct{}{}
		}
	}
	var added []string
	for _, id := range req.EmployeeIDs {
		if _, ok := present[id]; !ok {
			added = append(added, id)
		}
	}

	lines, excluded, err := s.computeLines(ctx, added, run.Period)
	if err != nil {
		return payroll.RunResult{}, err
	}
	run.Lines = append(kept, lines...)
	if len(run.Lines) == 0 {
		return payroll.RunResult{Excluded: excluded}, &payroll.EmptyRunError{Excluded: excluded}
	}

	s.assignLineIDs(&run)
	run.UpdatedAt = s.now()
	run.RecalculateTotals()

	updated, err := s.save(ctx, run)
	if err != nil {
		return payroll.RunResult{}, err
	}

	slog.Info("payroll run employees updated",
		"run_id", updated.ID,
		"actor_id", req.ActorID,
		"added", len(lines),
		"excluded", len(excluded),
		"employees", updated.EmployeeCount(),
	)
	return payroll.RunResult{Run: updated, Excluded: excluded}, nil
}

// ========== APPROVAL ==========

func (s *PayrollServiceImpl) SubmitForApproval(ctx context.Context, runID, actorID, approverID string) (payroll.PayrollRun, error) {
	if validator.IsEmpty(approverID) {
		return payroll.PayrollRun{}, validator.ValidationErrors{{Field: "approver_id", Message: "is required"}}
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := run.Submit(approverID, s.now()); err != nil {
		return payroll.PayrollRun{}, err
	}

	updated, err := s.save(ctx, run)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	slog.Info("payroll run submitted", "run_id", runID, "actor_id", actorID, "approver_id", approverID)
	s.notify(updated, payroll.EventRunSubmitted, actorID, "", approverID)
	return updated, nil
}

func (s *PayrollServiceImpl) Approve(ctx context.Context, runID, actorID string) (payroll.PayrollRun, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	designated := run.ApproverID
	if err := run.Approve(actorID, s.now()); err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := s.authorize(ctx, designated, actorID, runID); err != nil {
		return payroll.PayrollRun{}, err
	}

	updated, err := s.save(ctx, run)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	slog.Info("payroll run approved", "run_id", runID, "approver_id", actorID)
	s.notify(updated, payroll.EventRunApproved, actorID, "", updated.GeneratedBy)
	return updated, nil
}

func (s *PayrollServiceImpl) Reject(ctx context.Context, runID, actorID, comment string) (payroll.PayrollRun, error) {
	if validator.IsEmpty(comment) {
		return payroll.PayrollRun{}, validator.ValidationErrors{{Field: "comment", Message: "is required"}}
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	designated := run.ApproverID
	if err := run.Reject(actorID, comment, s.now()); err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := s.authorize(ctx, designated, actorID, runID); err != nil {
		return payroll.PayrollRun{}, err
	}

	updated, err := s.save(ctx, run)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	slog.Info("payroll run rejected", "run_id", runID, "approver_id", actorID)
	s.notify(updated, payroll.EventRunRejected, actorID, comment, updated.GeneratedBy)
	return updated, nil
}

// authorize lets the designated approver through and asks the authorizer
// about anyone else.
func (s *PayrollServiceImpl) authorize(ctx context.Context, designated *string, actorID, runID string) error {
	if designated != nil && *designated == actorID {
		return nil
	}
	ok, err := s.authorizer.CanApprove(ctx, actorID, runID)
	if err != nil {
		return fmt.Errorf("failed to check approval privilege: %w", err)
	}
	if !ok {
		return payroll.ErrNotApprover
	}
	return nil
}

func (s *PayrollServiceImpl) MarkPaid(ctx context.Context, runID, paymentReference string) (payroll.PayrollRun, error) {
	if validator.IsEmpty(paymentReference) {
		return payroll.PayrollRun{}, validator.ValidationErrors{{Field: "payment_reference", Message: "is required"}}
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if err := run.MarkPaid(paymentReference, s.now()); err != nil {
		return payroll.PayrollRun{}, err
	}

	updated, err := s.save(ctx, run)
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	slog.Info("payroll run paid", "run_id", runID, "payment_reference", paymentReference)
	recipients := []string{updated.GeneratedBy}
	if updated.ApproverID != nil {
		recipients = append(recipients, *updated.ApproverID)
	}
	s.notify(updated, payroll.EventRunPaid, "", "", recipients...)
	return updated, nil
}

func (s *PayrollServiceImpl) DeleteRun(ctx context.Context, runID, actorID string) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if err := run.SoftDelete(s.now()); err != nil {
		return err
	}

	deleted, err := s.save(ctx, run)
	if err != nil {
		return err
	}

	slog.Info("payroll run deleted", "run_id", runID, "actor_id", actorID)
	s.notify(deleted, payroll.EventRunDeleted, actorID, "", deleted.GeneratedBy)
	return nil
}

// ========== READS ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, runID string) (payroll.PayrollRun, error) {
	run, err := s.runRepo.FindByID(ctx, runID)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if run.IsDeleted {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	return run, nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, filter payroll.RunFilter, page store.Page) (store.Result[payroll.PayrollRun], error) {
	return s.runRepo.List(ctx, filter, page.Normalize())
}

func (s *PayrollServiceImpl) WriteRegisterPDF(ctx context.Context, runID string, w io.Writer) error {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	return renderRegister(w, run)
}

// ========== HELPERS ==========

// save writes the run under its current version inside a transaction.
func (s *PayrollServiceImpl) save(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	var updated payroll.PayrollRun
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.runRepo.Update(ctx, run)
		return err
	})
	if err != nil {
		if errors.Is(err, payroll.ErrConcurrentModification) || errors.Is(err, payroll.ErrRunNotFound) {
			return payroll.PayrollRun{}, err
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to save payroll run %s: %w", run.ID, err)
	}
	return updated, nil
}

// notify dispatches an event without blocking the caller. Failures are only
// logged.
func (s *PayrollServiceImpl) notify(run payroll.PayrollRun, eventType payroll.RunEventType, actorID, comment string, recipients ...string) {
	if s.notifier == nil {
		return
	}

	ids := make([]string, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, id := range recipients {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	event := payroll.RunEvent{
		Type:       eventType,
		RunID:      run.ID,
		Subject:    run.Subject,
		Status:     run.Status,
		ActorID:    actorID,
		Comment:    comment,
		OccurredAt: s.now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, ids, run.ID, event); err != nil {
			slog.Warn("failed to deliver payroll run notification",
				"run_id", run.ID,
				"event", string(eventType),
				"error", err,
			)
		}
	}()
}
