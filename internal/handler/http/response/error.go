package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		Error(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", validationErrs.ToMap())
		return
	}

	var emptyRun *payroll.EmptyRunError
	if errors.As(err, &emptyRun) {
		details := make(map[string]string, len(emptyRun.Excluded))
		for _, e := range emptyRun.Excluded {
			details[e.EmployeeID] = e.Err.Error()
		}
		Error(w, http.StatusUnprocessableEntity, "EMPTY_RUN", err.Error(), details)
		return
	}

	var transition *payroll.InvalidStateTransitionError
	if errors.As(err, &transition) {
		Error(w, http.StatusConflict, "INVALID_STATE_TRANSITION", err.Error(), map[string]string{
			"operation": transition.Operation,
			"status":    string(transition.From),
		})
		return
	}

	var employeeErr *payroll.EmployeeError
	if errors.As(err, &employeeErr) {
		switch {
		case errors.Is(err, payroll.ErrDuplicateEmployee):
			Error(w, http.StatusConflict, "DUPLICATE_EMPLOYEE", err.Error(), map[string]string{"employee_id": employeeErr.EmployeeID})
			return
		case errors.Is(err, payroll.ErrLineNotFound):
			NotFound(w, err.Error())
			return
		}
	}

	switch {
	// Auth errors
	case errors.Is(err, jwt.ErrInvalidToken):
		Error(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	case errors.Is(err, payroll.ErrNotApprover):
		Forbidden(w, err.Error())

	// Payroll domain errors
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrIllegalDelete):
		Error(w, http.StatusConflict, "ILLEGAL_DELETE", err.Error(), nil)
	case errors.Is(err, payroll.ErrConcurrentModification):
		Error(w, http.StatusConflict, "CONCURRENT_MODIFICATION", err.Error(), nil)
	case errors.Is(err, payroll.ErrDuplicateEmployee):
		Error(w, http.StatusConflict, "DUPLICATE_EMPLOYEE", err.Error(), nil)
	case errors.Is(err, payroll.ErrLineInvariant):
		Error(w, http.StatusUnprocessableEntity, "LINE_INVARIANT", err.Error(), nil)
	case errors.Is(err, payroll.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
