package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComponentKind enum
type ComponentKind string

const (
	ComponentKindEarning   ComponentKind = "earning"
	ComponentKindDeduction ComponentKind = "deduction"
)

func (k ComponentKind) Valid() bool {
	return k == ComponentKindEarning || k == ComponentKindDeduction
}

// RuleType enum
type RuleType string

const (
	RuleTypeFlat    RuleType = "flat"
	RuleTypeFormula RuleType = "formula"
)

// ComputationRule describes how a component amount is obtained. Flat rules
// carry Amount, formula rules carry Expression.
type ComputationRule struct {
	Type       RuleType
	Amount     decimal.Decimal
	Expression string
}

func FlatRule(amount decimal.Decimal) ComputationRule {
	return ComputationRule{Type: RuleTypeFlat, Amount: amount}
}

func FormulaRule(expression string) ComputationRule {
	return ComputationRule{Type: RuleTypeFormula, Expression: expression}
}

// SalaryComponent - Catalog entry for an earning or deduction
type SalaryComponent struct {
	ID              string
	Code            string
	Name            string
	Kind            ComponentKind
	Rule            ComputationRule
	DefaultIncluded bool
	Fixed           bool // deduction taken in full regardless of paid days
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TemplateItem - Component reference inside a template, optionally overriding its rule
type TemplateItem struct {
	ComponentID string
	Override    *ComputationRule
}

// SalaryTemplate - Ordered component set assigned to employees of a salary role
type SalaryTemplate struct {
	ID         string
	Name       string
	SalaryRole string
	Items      []TemplateItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate rejects templates that reference the same component twice.
func (t SalaryTemplate) Validate() error {
	seen := make(map[string]struct{}, len(t.Items))
	for _, item := range t.Items {
		if _, ok := seen[item.ComponentID]; ok {
			return &ComponentError{ComponentID: item.ComponentID, Err: ErrDuplicateComponent}
		}
		seen[item.ComponentID] = struct{}{}
	}
	return nil
}

// ComponentIDs returns the referenced component ids in template order.
func (t SalaryTemplate) ComponentIDs() []string {
	ids := make([]string, 0, len(t.Items))
	for _, item := range t.Items {
		ids = append(ids, item.ComponentID)
	}
	return ids
}

// ResolvedComponent is a template component with its monthly (unprorated) amount.
type ResolvedComponent struct {
	Component SalaryComponent
	Amount    decimal.Decimal
}

// Period - Date range covered by a run plus the salary (pay) date
type Period struct {
	StartDate  time.Time
	EndDate    time.Time
	SalaryDate time.Time
}

// CalendarDays counts both ends of the period.
func (p Period) CalendarDays() int {
	return daysBetween(p.StartDate, p.EndDate) + 1
}

// Label is the human readable pay period, e.g. "2024-01-01 - 2024-01-31".
func (p Period) Label() string {
	return p.StartDate.Format(dateLayout) + " - " + p.EndDate.Format(dateLayout)
}

// LOPWindow - Unpaid leave range reported by the attendance source
type LOPWindow struct {
	StartDate time.Time
	EndDate   time.Time
}

// Attendance - Day counts for one employee in one period
type Attendance struct {
	CalendarDays int
	EligibleDays int
	PaidDays     int
	LOPDays      int
}

// RunStatus enum
type RunStatus string

const (
	RunStatusDraft     RunStatus = "draft"
	RunStatusSubmitted RunStatus = "submitted"
	RunStatusApproved  RunStatus = "approved"
	RunStatusRejected  RunStatus = "rejected"
	RunStatusPaid      RunStatus = "paid"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusDraft, RunStatusSubmitted, RunStatusApproved, RunStatusRejected, RunStatusPaid:
		return true
	}
	return false
}

const WarningNegativeNet = "negative_net"

// Rejection - Last rejection recorded on a run
type Rejection struct {
	RejectedBy string
	Comment    string
	RejectedAt time.Time
}

// PayrollRun - One generated payroll batch for a period
type PayrollRun struct {
	ID               string
	Subject          string
	Period           Period
	Status           RunStatus
	GeneratedBy      string
	ApproverID       *string
	ApprovedAt       *time.Time
	Rejection        *Rejection
	PaymentReference *string
	PaidAt           *time.Time
	TotalGross       decimal.Decimal
	TotalDeductions  decimal.Decimal
	TotalNet         decimal.Decimal
	Lines            []PayrollLine
	Headcount        int // line count kept for listings that do not load lines
	Version          int
	IsDeleted        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EmployeeCount is the number of lines in the run.
func (r PayrollRun) EmployeeCount() int {
	if len(r.Lines) > 0 {
		return len(r.Lines)
	}
	return r.Headcount
}

// LineComponent - Per-component amounts on a payroll line
type LineComponent struct {
	ComponentID    string
	Code           string
	Name           string
	Kind           ComponentKind
	Fixed          bool
	MonthlyAmount  decimal.Decimal
	ProratedAmount decimal.Decimal
}

// PayrollLine - One employee's pay inside a run
type PayrollLine struct {
	ID                string
	RunID             string
	EmployeeID        string
	EmployeeCode      string
	EmployeeName      string
	CalendarDays      int
	EligibleDays      int
	PaidDays          int
	LOPDays           int
	MonthlyGross      decimal.Decimal
	PerDaySalary      decimal.Decimal
	Components        []LineComponent
	GrossPay          decimal.Decimal
	TotalDeductions   decimal.Decimal
	NetPay            decimal.Decimal
	OriginalGrossPay  decimal.Decimal
	OriginalDeduction decimal.Decimal
	OriginalNoOfDays  int
	Warnings          []string
	Notes             *string
}

// HasWarning reports whether the line carries the given warning code.
func (l PayrollLine) HasWarning(code string) bool {
	for _, w := range l.Warnings {
		if w == code {
			return true
		}
	}
	return false
}

// IsAdjusted reports whether the line drifted from its generated baseline.
func (l PayrollLine) IsAdjusted() bool {
	return !l.GrossPay.Equal(l.OriginalGrossPay) ||
		!l.TotalDeductions.Equal(l.OriginalDeduction) ||
		l.PaidDays != l.OriginalNoOfDays
}

const dateLayout = "2006-01-02"

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(truncateDay(to).Sub(truncateDay(from)).Hours() / 24)
}
