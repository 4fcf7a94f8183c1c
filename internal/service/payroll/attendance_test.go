package payroll

import (
	"testing"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceAdjuster_Compute(t *testing.T) {
	adjuster := AttendanceAdjuster{}
	exitBeforeStart := day(2023, 12, 31)
	exitMidMonth := day(2024, 1, 10)

	cases := []struct {
		name    string
		emp     employee.Employee
		windows []payroll.LOPWindow
		want    payroll.Attendance
		wantErr error
	}{
		{
			name: "full period",
			emp:  employee.Employee{JoinDate: day(2020, 5, 1)},
			want: payroll.Attendance{CalendarDays: 31, EligibleDays: 31, PaidDays: 31},
		},
		{
			name: "joins on period start",
			emp:  employee.Employee{JoinDate: day(2024, 1, 1)},
			want: payroll.Attendance{CalendarDays: 31, EligibleDays: 31, PaidDays: 31},
		},
		{
			name:    "exits the day before period start",
			emp:     employee.Employee{JoinDate: day(2020, 5, 1), ExitDate: &exitBeforeStart},
			wantErr: payroll.ErrNoOverlap,
		},
		{
			name:    "joins after period end",
			emp:     employee.Employee{JoinDate: day(2024, 2, 1)},
			wantErr: payroll.ErrNoOverlap,
		},
		{
			name: "joins mid period",
			emp:  employee.Employee{JoinDate: day(2024, 1, 16)},
			want: payroll.Attendance{CalendarDays: 31, EligibleDays: 16, PaidDays: 16},
		},
		{
			name: "exits mid period",
			emp:  employee.Employee{JoinDate: day(2020, 5, 1), ExitDate: &exitMidMonth},
			want: payroll.Attendance{CalendarDays: 31, EligibleDays: 10, PaidDays: 10},
		},
		{
			name:    "five unpaid days",
			emp:     employee.Employee{JoinDate: day(2020, 5, 1)},
			windows: []payroll.LOPWindow{{StartDate: day(2024, 1, 8), EndDate: day(2024, 1, 12)}},
			want:    payroll.Attendance{CalendarDays: 31, EligibleDays: 31, PaidDays: 26, LOPDays: 5},
		},
		{
			name: "overlapping and out of range windows",
			emp:  employee.Employee{JoinDate: day(2024, 1, 16)},
			windows: []payroll.LOPWindow{
				{StartDate: day(2024, 1, 10), EndDate: day(2024, 1, 17)},
				{StartDate: day(2024, 1, 17), EndDate: day(2024, 1, 18)},
				{StartDate: day(2024, 1, 30), EndDate: day(2024, 2, 3)},
			},
			want: payroll.Attendance{CalendarDays: 31, EligibleDays: 16, PaidDays: 11, LOPDays: 5},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := adjuster.Compute(c.emp, january, c.windows)
			if c.wantErr != nil {
				assert.ErrorIs(t, err, c.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}
