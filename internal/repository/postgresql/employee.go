package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepository struct {
	db database.Querier
}

func NewEmployeeRepository(db database.Querier) employee.Directory {
	return &employeeRepository{db: db}
}

func (r *employeeRepository) GetEmployee(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, employee_code, full_name, hire_date, resignation_date, salary_template_id
		FROM employees
		WHERE id = $1 AND deleted_at IS NULL
	`

	var e employee.Employee
	err := q.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.EmployeeCode, &e.FullName, &e.JoinDate, &e.ExitDate, &e.SalaryTemplateID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == invalidTextCode {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee by id: %w", err)
	}

	return e, nil
}
