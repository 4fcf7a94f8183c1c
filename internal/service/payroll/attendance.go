package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

// AttendanceAdjuster derives paid and loss-of-pay days for one employee in one
// period. Days are calendar days.
type AttendanceAdjuster struct{}

// Compute caps the period to the employee's employment dates and subtracts
// the unpaid leave days falling inside that overlap.
func (AttendanceAdjuster) Compute(emp employee.Employee, period payroll.Period, windows []payroll.LOPWindow) (payroll.Attendance, error) {
	start, end := toDay(period.StartDate), toDay(period.EndDate)
	if join := toDay(emp.JoinDate); join.After(start) {
		start = join
	}
	if emp.ExitDate != nil {
		if exit := toDay(*emp.ExitDate); exit.Before(end) {
			end = exit
		}
	}
	if end.Before(start) {
		return payroll.Attendance{}, payroll.ErrNoOverlap
	}

	lop := make(map[time.Time]struct{})
	for _, w := range windows {
		from, to := toDay(w.StartDate), toDay(w.EndDate)
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			lop[d] = struct{}{}
		}
	}

	eligible := dayCount(start, end)
	return payroll.Attendance{
		CalendarDays: period.CalendarDays(),
		EligibleDays: eligible,
		PaidDays:     eligible - len(lop),
		LOPDays:      len(lop),
	}, nil
}

func toDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dayCount counts the days in [from, to], both ends included.
func dayCount(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24) + 1
}
