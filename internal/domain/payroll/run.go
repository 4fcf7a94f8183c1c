package payroll

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// RoundMoney rounds to currency precision, halves away from zero.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Round brings every money field of the line to currency precision. Net pay is
// derived from the rounded gross and deductions so the line always balances.
func (l *PayrollLine) Round() {
	l.PerDaySalary = RoundMoney(l.PerDaySalary)
	l.MonthlyGross = RoundMoney(l.MonthlyGross)
	for i := range l.Components {
		l.Components[i].MonthlyAmount = RoundMoney(l.Components[i].MonthlyAmount)
		l.Components[i].ProratedAmount = RoundMoney(l.Components[i].ProratedAmount)
	}
	l.GrossPay = RoundMoney(l.GrossPay)
	l.TotalDeductions = RoundMoney(l.TotalDeductions)
	l.OriginalGrossPay = RoundMoney(l.OriginalGrossPay)
	l.OriginalDeduction = RoundMoney(l.OriginalDeduction)
	l.SettleNet()
}

// SettleNet derives net pay from gross and deductions and keeps the
// negative_net warning in step with it. Other warnings are left alone.
func (l *PayrollLine) SettleNet() {
	l.NetPay = l.GrossPay.Sub(l.TotalDeductions)

	warnings := make([]string, 0, len(l.Warnings)+1)
	for _, w := range l.Warnings {
		if w != WarningNegativeNet {
			warnings = append(warnings, w)
		}
	}
	if l.NetPay.IsNegative() {
		warnings = append(warnings, WarningNegativeNet)
	}
	l.Warnings = warnings
}

// RecalculateTotals rounds every line, orders lines by employee id and sets
// the run totals to the sum of the lines. Call it before every write.
func (r *PayrollRun) RecalculateTotals() {
	sort.SliceStable(r.Lines, func(i, j int) bool {
		return r.Lines[i].EmployeeID < r.Lines[j].EmployeeID
	})

	gross, deductions, net := decimal.Zero, decimal.Zero, decimal.Zero
	for i := range r.Lines {
		r.Lines[i].Round()
		gross = gross.Add(r.Lines[i].GrossPay)
		deductions = deductions.Add(r.Lines[i].TotalDeductions)
		net = net.Add(r.Lines[i].NetPay)
	}
	r.TotalGross = gross
	r.TotalDeductions = deductions
	r.TotalNet = net
	r.Headcount = len(r.Lines)
}

// Line returns the line for an employee.
func (r *PayrollRun) Line(employeeID string) (*PayrollLine, bool) {
	for i := range r.Lines {
		if r.Lines[i].EmployeeID == employeeID {
			return &r.Lines[i], true
		}
	}
	return nil, false
}

// HasWarnings reports whether any line needs approver attention.
func (r PayrollRun) HasWarnings() bool {
	for _, l := range r.Lines {
		if len(l.Warnings) > 0 {
			return true
		}
	}
	return false
}

// CanEdit reports whether actorID may change lines in the current status.
// Drafts are open; a submitted run is only open to its designated approver.
func (r PayrollRun) CanEdit(actorID string) bool {
	switch r.Status {
	case RunStatusDraft:
		return true
	case RunStatusSubmitted:
		return r.ApproverID != nil && *r.ApproverID == actorID
	}
	return false
}

// Submit moves a draft to submitted and records the approver candidate.
func (r *PayrollRun) Submit(approverID string, now time.Time) error {
	if r.Status != RunStatusDraft {
		return &InvalidStateTransitionError{Operation: "submit", From: r.Status}
	}
	r.Status = RunStatusSubmitted
	r.ApproverID = &approverID
	r.UpdatedAt = now
	return nil
}

// Approve locks a submitted run for payment.
func (r *PayrollRun) Approve(approverID string, now time.Time) error {
	if r.Status != RunStatusSubmitted {
		return &InvalidStateTransitionError{Operation: "approve", From: r.Status}
	}
	r.Status = RunStatusApproved
	r.ApproverID = &approverID
	r.ApprovedAt = &now
	r.UpdatedAt = now
	return nil
}

// Reject records the rejection and sends the run back to draft for
// correction. The approver has to be chosen again on resubmission.
func (r *PayrollRun) Reject(rejectedBy, comment string, now time.Time) error {
	if r.Status != RunStatusSubmitted {
		return &InvalidStateTransitionError{Operation: "reject", From: r.Status}
	}
	r.Rejection = &Rejection{RejectedBy: rejectedBy, Comment: comment, RejectedAt: now}
	r.Status = RunStatusDraft
	r.ApproverID = nil
	r.ApprovedAt = nil
	r.UpdatedAt = now
	return nil
}

// MarkPaid is the terminal transition, triggered by payment recording.
func (r *PayrollRun) MarkPaid(paymentReference string, now time.Time) error {
	if r.Status != RunStatusApproved {
		return &InvalidStateTransitionError{Operation: "mark paid", From: r.Status}
	}
	r.Status = RunStatusPaid
	r.PaymentReference = &paymentReference
	r.PaidAt = &now
	r.UpdatedAt = now
	return nil
}

// SoftDelete flags the run as deleted. Only drafts and rejected runs qualify.
func (r *PayrollRun) SoftDelete(now time.Time) error {
	if r.Status != RunStatusDraft && r.Status != RunStatusRejected {
		return ErrIllegalDelete
	}
	r.IsDeleted = true
	r.UpdatedAt = now
	return nil
}
