package payroll

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// Date is a calendar date exchanged as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ========== RUN REQUESTS ==========

type CreateRunRequest struct {
	Subject     string   `json:"subject"`
	PeriodStart Date     `json:"period_start"`
	PeriodEnd   Date     `json:"period_end"`
	SalaryDate  Date     `json:"salary_date"`
	EmployeeIDs []string `json:"employee_ids"`
	GeneratedBy string   `json:"-"`
}

func (r *CreateRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Subject) {
		errs = append(errs, validator.ValidationError{Field: "subject", Message: "is required"})
	}
	if r.PeriodStart.IsZero() {
		errs = append(errs, validator.ValidationError{Field: "period_start", Message: "is required"})
	}
	if r.PeriodEnd.IsZero() {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "is required"})
	}
	if !r.PeriodStart.IsZero() && !r.PeriodEnd.IsZero() && r.PeriodEnd.Before(r.PeriodStart.Time) {
		errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must not be before period_start"})
	}
	if r.SalaryDate.IsZero() {
		errs = append(errs, validator.ValidationError{Field: "salary_date", Message: "is required"})
	}
	if len(r.EmployeeIDs) == 0 {
		errs = append(errs, validator.ValidationError{Field: "employee_ids", Message: "at least one employee is required"})
	}
	if validator.IsEmpty(r.GeneratedBy) {
		errs = append(errs, validator.ValidationError{Field: "generated_by", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *CreateRunRequest) Period() Period {
	return Period{
		StartDate:  truncateDay(r.PeriodStart.Time),
		EndDate:    truncateDay(r.PeriodEnd.Time),
		SalaryDate: truncateDay(r.SalaryDate.Time),
	}
}

// RunResult is a run plus the employees that could not be included in it.
type RunResult struct {
	Run      PayrollRun
	Excluded []EmployeeError
}

// LineEdit sets absolute values on one line. Nil fields are left alone.
type LineEdit struct {
	EmployeeID      string           `json:"employee_id"`
	LOPDays         *int             `json:"lop_days,omitempty"`
	GrossPay        *decimal.Decimal `json:"gross_pay,omitempty"`
	TotalDeductions *decimal.Decimal `json:"total_deductions,omitempty"`
	NetPay          *decimal.Decimal `json:"net_pay,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

type UpdateRunRequest struct {
	RunID      string     `json:"-"`
	ActorID    string     `json:"-"`
	Version    *int       `json:"version,omitempty"`
	Subject    *string    `json:"subject,omitempty"`
	SalaryDate *Date      `json:"salary_date,omitempty"`
	Lines      []LineEdit `json:"lines,omitempty"`
}

func (r *UpdateRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Subject != nil && validator.IsEmpty(*r.Subject) {
		errs = append(errs, validator.ValidationError{Field: "subject", Message: "must not be empty"})
	}
	if r.SalaryDate != nil && r.SalaryDate.IsZero() {
		errs = append(errs, validator.ValidationError{Field: "salary_date", Message: "must be a valid date"})
	}

	seen := make(map[string]struct{}, len(r.Lines))
	for i, edit := range r.Lines {
		field := "lines[" + validator.Itoa(i) + "]"
		if validator.IsEmpty(edit.EmployeeID) {
			errs = append(errs, validator.ValidationError{Field: field + ".employee_id", Message: "is required"})
			continue
		}
		if _, dup := seen[edit.EmployeeID]; dup {
			errs = append(errs, validator.ValidationError{Field: field + ".employee_id", Message: "is edited more than once"})
		}
		seen[edit.EmployeeID] = struct{}{}
		if edit.LOPDays != nil && *edit.LOPDays < 0 {
			errs = append(errs, validator.ValidationError{Field: field + ".lop_days", Message: "must be non-negative"})
		}
		if edit.GrossPay != nil && edit.GrossPay.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: field + ".gross_pay", Message: "must be non-negative"})
		}
		if edit.TotalDeductions != nil && edit.TotalDeductions.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: field + ".total_deductions", Message: "must be non-negative"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type UpdateEmployeesRequest struct {
	RunID       string   `json:"-"`
	ActorID     string   `json:"-"`
	EmployeeIDs []string `json:"employee_ids"`
}

func (r *UpdateEmployeesRequest) Validate() error {
	if len(r.EmployeeIDs) == 0 {
		return validator.ValidationErrors{{Field: "employee_ids", Message: "at least one employee is required"}}
	}
	return nil
}

type SubmitRunRequest struct {
	ApproverID string `json:"approver_id"`
}

func (r *SubmitRunRequest) Validate() error {
	if validator.IsEmpty(r.ApproverID) {
		return validator.ValidationErrors{{Field: "approver_id", Message: "is required"}}
	}
	return nil
}

type RejectRunRequest struct {
	Comment string `json:"comment"`
}

func (r *RejectRunRequest) Validate() error {
	if validator.IsEmpty(r.Comment) {
		return validator.ValidationErrors{{Field: "comment", Message: "is required"}}
	}
	return nil
}

type MarkPaidRequest struct {
	PaymentReference string `json:"payment_reference"`
}

func (r *MarkPaidRequest) Validate() error {
	if validator.IsEmpty(r.PaymentReference) {
		return validator.ValidationErrors{{Field: "payment_reference", Message: "is required"}}
	}
	return nil
}

// ========== RUN RESPONSES ==========

type LineComponentResponse struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind"`
	Fixed          bool            `json:"fixed"`
	MonthlyAmount  decimal.Decimal `json:"monthly_amount"`
	ProratedAmount decimal.Decimal `json:"prorated_amount"`
}

type LineResponse struct {
	ID                string                  `json:"id"`
	EmployeeID        string                  `json:"employee_id"`
	EmployeeCode      string                  `json:"employee_code"`
	EmployeeName      string                  `json:"employee_name"`
	CalendarDays      int                     `json:"calendar_days"`
	PaidDays          int                     `json:"paid_days"`
	LOPDays           int                     `json:"lop_days"`
	PerDaySalary      decimal.Decimal         `json:"per_day_salary"`
	Components        []LineComponentResponse `json:"components"`
	GrossPay          decimal.Decimal         `json:"gross_pay"`
	TotalDeductions   decimal.Decimal         `json:"total_deductions"`
	NetPay            decimal.Decimal         `json:"net_pay"`
	OriginalGrossPay  decimal.Decimal         `json:"original_gross_pay"`
	OriginalDeduction decimal.Decimal         `json:"original_deduction"`
	OriginalNoOfDays  int                     `json:"original_no_of_days"`
	Adjusted          bool                    `json:"adjusted"`
	Warnings          []string                `json:"warnings,omitempty"`
	Notes             *string                 `json:"notes,omitempty"`
}

type RejectionResponse struct {
	RejectedBy string `json:"rejected_by"`
	Comment    string `json:"comment"`
	RejectedAt string `json:"rejected_at"`
}

type RunResponse struct {
	ID               string             `json:"id"`
	Subject          string             `json:"subject"`
	PeriodStart      Date               `json:"period_start"`
	PeriodEnd        Date               `json:"period_end"`
	SalaryDate       Date               `json:"salary_date"`
	PayPeriod        string             `json:"pay_period"`
	Status           string             `json:"status"`
	GeneratedBy      string             `json:"generated_by"`
	ApproverID       *string            `json:"approver_id,omitempty"`
	ApprovedAt       *string            `json:"approved_at,omitempty"`
	Rejection        *RejectionResponse `json:"rejection,omitempty"`
	PaymentReference *string            `json:"payment_reference,omitempty"`
	PaidAt           *string            `json:"paid_at,omitempty"`
	EmployeeCount    int                `json:"employee_count"`
	TotalGross       decimal.Decimal    `json:"total_gross"`
	TotalDeductions  decimal.Decimal    `json:"total_deductions"`
	TotalNet         decimal.Decimal    `json:"total_net"`
	HasWarnings      bool               `json:"has_warnings"`
	Version          int                `json:"version"`
	Lines            []LineResponse     `json:"lines,omitempty"`
	CreatedAt        string             `json:"created_at"`
	UpdatedAt        string             `json:"updated_at"`
}

type ExcludedEmployeeResponse struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

type CreateRunResponse struct {
	Run      RunResponse                `json:"run"`
	Excluded []ExcludedEmployeeResponse `json:"excluded"`
}

type ListRunResponse struct {
	Data       []RunResponse `json:"data"`
	TotalCount int64         `json:"total_count"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
}

// ========== MAPPERS ==========

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// NewRunResponse maps a run. Lines are included only when withLines is set.
func NewRunResponse(r PayrollRun, withLines bool) RunResponse {
	resp := RunResponse{
		ID:               r.ID,
		Subject:          r.Subject,
		PeriodStart:      Date{r.Period.StartDate},
		PeriodEnd:        Date{r.Period.EndDate},
		SalaryDate:       Date{r.Period.SalaryDate},
		PayPeriod:        r.Period.Label(),
		Status:           string(r.Status),
		GeneratedBy:      r.GeneratedBy,
		ApproverID:       r.ApproverID,
		ApprovedAt:       formatTime(r.ApprovedAt),
		PaymentReference: r.PaymentReference,
		PaidAt:           formatTime(r.PaidAt),
		EmployeeCount:    r.EmployeeCount(),
		TotalGross:       r.TotalGross,
		TotalDeductions:  r.TotalDeductions,
		TotalNet:         r.TotalNet,
		HasWarnings:      r.HasWarnings(),
		Version:          r.Version,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Rejection != nil {
		resp.Rejection = &RejectionResponse{
			RejectedBy: r.Rejection.RejectedBy,
			Comment:    r.Rejection.Comment,
			RejectedAt: r.Rejection.RejectedAt.Format(time.RFC3339),
		}
	}
	if withLines {
		resp.Lines = make([]LineResponse, 0, len(r.Lines))
		for _, l := range r.Lines {
			resp.Lines = append(resp.Lines, newLineResponse(l))
		}
	}
	return resp
}

func newLineResponse(l PayrollLine) LineResponse {
	components := make([]LineComponentResponse, 0, len(l.Components))
	for _, c := range l.Components {
		components = append(components, LineComponentResponse{
			Code:           c.Code,
			Name:           c.Name,
			Kind:           string(c.Kind),
			Fixed:          c.Fixed,
			MonthlyAmount:  c.MonthlyAmount,
			ProratedAmount: c.ProratedAmount,
		})
	}
	return LineResponse{
		ID:                l.ID,
		EmployeeID:        l.EmployeeID,
		EmployeeCode:      l.EmployeeCode,
		EmployeeName:      l.EmployeeName,
		CalendarDays:      l.CalendarDays,
		PaidDays:          l.PaidDays,
		LOPDays:           l.LOPDays,
		PerDaySalary:      l.PerDaySalary,
		Components:        components,
		GrossPay:          l.GrossPay,
		TotalDeductions:   l.TotalDeductions,
		NetPay:            l.NetPay,
		OriginalGrossPay:  l.OriginalGrossPay,
		OriginalDeduction: l.OriginalDeduction,
		OriginalNoOfDays:  l.OriginalNoOfDays,
		Adjusted:          l.IsAdjusted(),
		Warnings:          l.Warnings,
		Notes:             l.Notes,
	}
}

// NewExcludedResponses flattens exclusions for transport.
func NewExcludedResponses(excluded []EmployeeError) []ExcludedEmployeeResponse {
	result := make([]ExcludedEmployeeResponse, 0, len(excluded))
	for _, e := range excluded {
		result = append(result, ExcludedEmployeeResponse{
			EmployeeID: e.EmployeeID,
			Reason:     strings.TrimSpace(e.Err.Error()),
		})
	}
	return result
}
