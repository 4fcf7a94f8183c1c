package payroll

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/store"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

var january = payroll.Period{
	StartDate:  day(2024, 1, 1),
	EndDate:    day(2024, 1, 31),
	SalaryDate: day(2024, 2, 1),
}

// ===== EMPLOYEE DIRECTORY =====

type fakeDirectory struct {
	employees map[string]employee.Employee
	err       error
}

func (f *fakeDirectory) GetEmployee(ctx context.Context, id string) (employee.Employee, error) {
	if f.err != nil {
		return employee.Employee{}, f.err
	}
	emp, ok := f.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return emp, nil
}

// ===== SALARY CONFIG =====

type fakeSalaryConfig struct {
	mu         sync.Mutex
	templates  map[string]payroll.SalaryTemplate
	components map[string]payroll.SalaryComponent
}

func newFakeSalaryConfig() *fakeSalaryConfig {
	return &fakeSalaryConfig{
		templates:  make(map[string]payroll.SalaryTemplate),
		components: make(map[string]payroll.SalaryComponent),
	}
}

func (f *fakeSalaryConfig) GetTemplate(ctx context.Context, id string) (payroll.SalaryTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok {
		return payroll.SalaryTemplate{}, payroll.ErrTemplateNotFound
	}
	return t, nil
}

func (f *fakeSalaryConfig) GetComponent(ctx context.Context, id string) (payroll.SalaryComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.components[id]
	if !ok {
		return payroll.SalaryComponent{}, payroll.ErrComponentNotFound
	}
	return c, nil
}

func (f *fakeSalaryConfig) ListComponentsByIDs(ctx context.Context, ids []string) ([]payroll.SalaryComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []payroll.SalaryComponent
	for _, id := range ids {
		if c, ok := f.components[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSalaryConfig) UpsertComponent(ctx context.Context, c payroll.SalaryComponent) (payroll.SalaryComponent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.components[c.ID] = c
	return c, nil
}

func (f *fakeSalaryConfig) UpsertTemplate(ctx context.Context, t payroll.SalaryTemplate) (payroll.SalaryTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[t.ID] = t
	return t, nil
}

// ===== ATTENDANCE =====

type fakeAttendance struct {
	windows map[string][]payroll.LOPWindow
}

func (f *fakeAttendance) ListLOPWindows(ctx context.Context, employeeID string, from, to time.Time) ([]payroll.LOPWindow, error) {
	return f.windows[employeeID], nil
}

// ===== RUN REPOSITORY =====

type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[string]payroll.PayrollRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[string]payroll.PayrollRun)}
}

func cloneRun(r payroll.PayrollRun) payroll.PayrollRun {
	lines := make([]payroll.PayrollLine, len(r.Lines))
	for i, l := range r.Lines {
		l.Components = append([]payroll.LineComponent(nil), l.Components...)
		l.Warnings = append([]string(nil), l.Warnings...)
		lines[i] = l
	}
	r.Lines = lines
	return r
}

func (f *fakeRunRepo) FindByID(ctx context.Context, id string) (payroll.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	return cloneRun(r), nil
}

func (f *fakeRunRepo) Create(ctx context.Context, r payroll.PayrollRun) (payroll.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[r.ID] = cloneRun(r)
	return cloneRun(r), nil
}

func (f *fakeRunRepo) Update(ctx context.Context, r payroll.PayrollRun) (payroll.PayrollRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.runs[r.ID]
	if !ok {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	if current.Version != r.Version {
		return payroll.PayrollRun{}, payroll.ErrConcurrentModification
	}
	r.Version++
	f.runs[r.ID] = cloneRun(r)
	return cloneRun(r), nil
}

func (f *fakeRunRepo) List(ctx context.Context, filter payroll.RunFilter, page store.Page) (store.Result[payroll.PayrollRun], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []payroll.PayrollRun
	for _, r := range f.runs {
		if filter.Matches(r) {
			matched = append(matched, cloneRun(r))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	result := store.Result[payroll.PayrollRun]{TotalCount: int64(len(matched)), Page: page.Page, Limit: page.Limit}
	start := page.Offset()
	if start < len(matched) {
		end := start + page.Limit
		if end > len(matched) {
			end = len(matched)
		}
		result.Items = matched[start:end]
	}
	return result, nil
}

// ===== TRANSACTOR =====

type fakeTx struct {
	calls int
}

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

// ===== NOTIFIER / AUTHORIZER =====

type sentEvent struct {
	recipients []string
	event      payroll.RunEvent
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	err    error
}

func (f *fakeNotifier) Notify(ctx context.Context, recipientIDs []string, runID string, event payroll.RunEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{recipients: recipientIDs, event: event})
	return f.err
}

func (f *fakeNotifier) sent() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.events...)
}

type fakeAuthorizer struct {
	allowed map[string]bool
}

func (f *fakeAuthorizer) CanApprove(ctx context.Context, userID, runID string) (bool, error) {
	return f.allowed[userID], nil
}
