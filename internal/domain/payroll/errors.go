package payroll

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
)

var (
	ErrRunNotFound                = errors.New("payroll run not found")
	ErrTemplateNotFound           = errors.New("salary template not found")
	ErrComponentNotFound          = errors.New("salary component not found")
	ErrDuplicateComponent         = errors.New("salary template references a component more than once")
	ErrCircularComponentReference = errors.New("circular salary component reference")
	ErrInvalidFormula             = errors.New("invalid salary component formula")
	ErrNoOverlap                  = errors.New("employment does not overlap the pay period")
	ErrEmptyRun                   = errors.New("no employee could be included in the payroll run")
	ErrInvalidStateTransition     = errors.New("operation not allowed in current payroll run status")
	ErrIllegalDelete              = errors.New("payroll run can only be deleted while draft or rejected")
	ErrDuplicateEmployee          = errors.New("employee listed more than once in payroll run")
	ErrConcurrentModification     = errors.New("payroll run was modified by another request")
	ErrLineNotFound               = errors.New("payroll line not found")
	ErrLineInvariant              = errors.New("net pay must equal gross pay minus deductions")
	ErrNotApprover                = errors.New("user is not allowed to approve this payroll run")
	ErrEmployeeNotFound           = employee.ErrEmployeeNotFound
)

// EmployeeError ties a failure to the employee it was computed for.
type EmployeeError struct {
	EmployeeID string
	Err        error
}

func (e *EmployeeError) Error() string {
	return fmt.Sprintf("employee %s: %v", e.EmployeeID, e.Err)
}

func (e *EmployeeError) Unwrap() error { return e.Err }

// ComponentError ties a failure to a salary component.
type ComponentError struct {
	ComponentID string
	Err         error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s: %v", e.ComponentID, e.Err)
}

func (e *ComponentError) Unwrap() error { return e.Err }

// CircularComponentReferenceError lists the component codes forming a cycle.
type CircularComponentReferenceError struct {
	Cycle []string
}

func (e *CircularComponentReferenceError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCircularComponentReference, strings.Join(e.Cycle, " -> "))
}

func (e *CircularComponentReferenceError) Unwrap() error { return ErrCircularComponentReference }

// EmptyRunError carries the reason every requested employee was excluded.
type EmptyRunError struct {
	Excluded []EmployeeError
}

func (e *EmptyRunError) Error() string {
	return fmt.Sprintf("%v (%d excluded)", ErrEmptyRun, len(e.Excluded))
}

func (e *EmptyRunError) Unwrap() error { return ErrEmptyRun }

// InvalidStateTransitionError names the rejected operation and the status it met.
type InvalidStateTransitionError struct {
	Operation string
	From      RunStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("%s not allowed while payroll run is %s", e.Operation, e.From)
}

func (e *InvalidStateTransitionError) Unwrap() error { return ErrInvalidStateTransition }

// IsEmployeeScoped reports whether err only affects the employee it was raised
// for, so the employee can be left out of a run instead of failing it.
func IsEmployeeScoped(err error) bool {
	return errors.Is(err, ErrNoOverlap) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrComponentNotFound) ||
		errors.Is(err, ErrDuplicateComponent) ||
		errors.Is(err, ErrCircularComponentReference) ||
		errors.Is(err, ErrInvalidFormula) ||
		errors.Is(err, ErrEmployeeNotFound)
}
