package payroll

import (
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// netTolerance is how far a client supplied net pay may drift from gross
// minus deductions.
var netTolerance = decimal.New(1, -2)

// ComputeLine builds an employee's payroll line from the resolved monthly
// components and the attendance for the period. Amounts are left unrounded.
func ComputeLine(emp employee.Employee, resolved []payroll.ResolvedComponent, att payroll.Attendance) payroll.PayrollLine {
	line := payroll.PayrollLine{
		EmployeeID:   emp.ID,
		EmployeeCode: emp.EmployeeCode,
		EmployeeName: emp.FullName,
		CalendarDays: att.CalendarDays,
		EligibleDays: att.EligibleDays,
		PaidDays:     att.PaidDays,
		LOPDays:      att.LOPDays,
		MonthlyGross: decimal.Zero,
		Components:   make([]payroll.LineComponent, 0, len(resolved)),
	}

	for _, rc := range resolved {
		if rc.Component.Kind == payroll.ComponentKindEarning {
			line.MonthlyGross = line.MonthlyGross.Add(rc.Amount)
		}
		line.Components = append(line.Components, payroll.LineComponent{
			ComponentID:   rc.Component.ID,
			Code:          rc.Component.Code,
			Name:          rc.Component.Name,
			Kind:          rc.Component.Kind,
			Fixed:         rc.Component.Fixed,
			MonthlyAmount: rc.Amount,
		})
	}

	prorate(&line)

	line.OriginalGrossPay = line.GrossPay
	line.OriginalDeduction = line.TotalDeductions
	line.OriginalNoOfDays = line.PaidDays
	return line
}

// prorate recomputes every derived amount of the line from its monthly
// baseline and current paid days, so calling it again with the same paid
// days gives the same result.
func prorate(line *payroll.PayrollLine) {
	calendar := decimal.NewFromInt(int64(line.CalendarDays))
	paid := decimal.NewFromInt(int64(line.PaidDays))
	scale := func(amount decimal.Decimal) decimal.Decimal {
		if line.CalendarDays == 0 {
			return decimal.Zero
		}
		return amount.Mul(paid).Div(calendar)
	}

	line.PerDaySalary = decimal.Zero
	if line.CalendarDays > 0 {
		line.PerDaySalary = line.MonthlyGross.Div(calendar)
	}
	line.GrossPay = scale(line.MonthlyGross)

	deductions := decimal.Zero
	for i := range line.Components {
		c := &line.Components[i]
		switch {
		case c.Kind == payroll.ComponentKindDeduction && c.Fixed:
			c.ProratedAmount = c.MonthlyAmount
		default:
			c.ProratedAmount = scale(c.MonthlyAmount)
		}
		if c.Kind == payroll.ComponentKindDeduction {
			deductions = deductions.Add(c.ProratedAmount)
		}
	}
	line.TotalDeductions = deductions
	line.SettleNet()
}
