package employee

import "time"

// Employee is the directory view payroll needs. Name and code are copied onto
// payroll lines at generation time.
type Employee struct {
	ID               string
	EmployeeCode     string
	FullName         string
	JoinDate         time.Time
	ExitDate         *time.Time
	SalaryTemplateID *string
}

// EmployedOn reports whether the employee is on the books for the given day.
func (e Employee) EmployedOn(day time.Time) bool {
	if day.Before(e.JoinDate) {
		return false
	}
	if e.ExitDate != nil && day.After(*e.ExitDate) {
		return false
	}
	return true
}
