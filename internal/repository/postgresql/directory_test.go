package postgresql

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmployeeRepository_GetEmployee(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	exit := date(2024, 1, 20)
	tpl := "tpl-1"

	mock.ExpectQuery(`FROM employees`).
		WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "employee_code", "full_name", "hire_date", "resignation_date", "salary_template_id"}).
			AddRow("emp-1", "E001", "Ada", date(2023, 5, 1), &exit, &tpl))

	emp, err := repo.GetEmployee(context.Background(), "emp-1")
	require.NoError(t, err)

	assert.Equal(t, "E001", emp.EmployeeCode)
	require.NotNil(t, emp.ExitDate)
	assert.True(t, emp.ExitDate.Equal(exit))
	assert.Equal(t, "tpl-1", *emp.SalaryTemplateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRepository_GetEmployee_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery(`FROM employees`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetEmployee(context.Background(), "gone")
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)
}

func TestAttendanceRepository_ListLOPWindows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAttendanceRepository(mock)
	from, to := date(2024, 1, 1), date(2024, 1, 31)

	mock.ExpectQuery(`FROM leave_requests lr`).
		WithArgs("emp-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"start_date", "end_date"}).
			AddRow(date(2023, 12, 28), date(2024, 1, 2)).
			AddRow(date(2024, 1, 8), date(2024, 1, 12)))

	windows, err := repo.ListLOPWindows(context.Background(), "emp-1", from, to)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, date(2024, 1, 8), windows[1].StartDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleAuthorizer_CanApprove(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock pgxmock.PgxPoolIface)
		want   bool
	}{
		{
			name: "owner",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT role FROM users`).WithArgs("u-1").
					WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("owner"))
			},
			want: true,
		},
		{
			name: "manager",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT role FROM users`).WithArgs("u-1").
					WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow("manager"))
			},
			want: false,
		},
		{
			name: "unknown user",
			expect: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT role FROM users`).WithArgs("u-1").
					WillReturnError(pgx.ErrNoRows)
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			tt.expect(mock)
			ok, err := NewRoleAuthorizer(mock).CanApprove(context.Background(), "u-1", "run-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

