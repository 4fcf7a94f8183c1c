package employee

import "context"

// Directory is the read-only employee lookup used by payroll.
type Directory interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
}
