package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/sse"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/store"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Runs
	CreateRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	UpdateRun(w http.ResponseWriter, r *http.Request)
	UpdateEmployees(w http.ResponseWriter, r *http.Request)
	DeleteRun(w http.ResponseWriter, r *http.Request)

	// Workflow
	SubmitForApproval(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)

	// Export and events
	RegisterPDF(w http.ResponseWriter, r *http.Request)
	Events(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
	hub            *sse.Hub
	keepalive      time.Duration
}

func NewPayrollHandler(payrollService payroll.PayrollService, hub *sse.Hub) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService, hub: hub, keepalive: 30 * time.Second}
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) CreateRun(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req payroll.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.GeneratedBy = claims.UserID

	result, err := h.payrollService.CreateRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run generated", payroll.CreateRunResponse{
		Run:      payroll.NewRunResponse(result.Run, true),
		Excluded: payroll.NewExcludedResponses(result.Excluded),
	})
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseRunQuery(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := h.payrollService.ListRuns(r.Context(), filter, page)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	runs := make([]payroll.RunResponse, 0, len(result.Items))
	for _, run := range result.Items {
		runs = append(runs, payroll.NewRunResponse(run, false))
	}

	response.SuccessWithMeta(w, runs, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: result.TotalPages(),
	})
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.payrollService.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, payroll.NewRunResponse(run, true))
}

func (h *payrollHandlerImpl) UpdateRun(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req payroll.UpdateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = chi.URLParam(r, "id")
	req.ActorID = claims.UserID

	run, err := h.payrollService.UpdateRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run updated", payroll.NewRunResponse(run, true))
}

func (h *payrollHandlerImpl) UpdateEmployees(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req payroll.UpdateEmployeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.RunID = chi.URLParam(r, "id")
	req.ActorID = claims.UserID

	result, err := h.payrollService.UpdateEmployees(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run employees updated", payroll.CreateRunResponse{
		Run:      payroll.NewRunResponse(result.Run, true),
		Excluded: payroll.NewExcludedResponses(result.Excluded),
	})
}

func (h *payrollHandlerImpl) DeleteRun(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.payrollService.DeleteRun(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run deleted", nil)
}

// ========== WORKFLOW ==========

func (h *payrollHandlerImpl) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req payroll.SubmitRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	run, err := h.payrollService.SubmitForApproval(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.ApproverID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run submitted for approval", payroll.NewRunResponse(run, false))
}

func (h *payrollHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	run, err := h.payrollService.Approve(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run approved", payroll.NewRunResponse(run, false))
}

func (h *payrollHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	var req payroll.RejectRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	run, err := h.payrollService.Reject(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.Comment)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run rejected", payroll.NewRunResponse(run, false))
}

func (h *payrollHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req payroll.MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	run, err := h.payrollService.MarkPaid(r.Context(), chi.URLParam(r, "id"), req.PaymentReference)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run marked as paid", payroll.NewRunResponse(run, false))
}

// ========== EXPORT & EVENTS ==========

func (h *payrollHandlerImpl) RegisterPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Render into memory so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.payrollService.WriteRegisterPDF(r.Context(), id, &buf); err != nil {
		response.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payroll-register-%s.pdf"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Events streams run events addressed to the caller.
func (h *payrollHandlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	claims, err := jwt.ClaimsFromContext(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.hub.Subscribe(claims.UserID)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"user_id\":%q}\n\n", claims.UserID)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// ========== QUERY PARSING ==========

// parseRunQuery reads listing filters from the query string. Every parameter
// is optional; malformed values are reported together.
func parseRunQuery(r *http.Request) (payroll.RunFilter, store.Page, error) {
	q := r.URL.Query()
	var filter payroll.RunFilter
	var errs validator.ValidationErrors

	parseDate := func(key string) *time.Time {
		raw := q.Get(key)
		if raw == "" {
			return nil
		}
		t, ok := validator.IsValidDate(raw)
		if !ok {
			errs = append(errs, validator.ValidationError{Field: key, Message: "must be YYYY-MM-DD"})
			return nil
		}
		return &t
	}
	parseInt := func(key string) (int, bool) {
		raw := q.Get(key)
		if raw == "" {
			return 0, false
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, validator.ValidationError{Field: key, Message: "must be a non-negative integer"})
			return 0, false
		}
		return n, true
	}

	if from, to := parseDate("pay_date_from"), parseDate("pay_date_to"); from != nil || to != nil {
		filter.Criteria = append(filter.Criteria, payroll.PayDateCriterion{From: from, To: to})
	}
	if from, to := parseDate("run_date_from"), parseDate("run_date_to"); from != nil || to != nil {
		if to != nil {
			end := to.Add(24*time.Hour - time.Nanosecond)
			to = &end
		}
		filter.Criteria = append(filter.Criteria, payroll.RunDateCriterion{From: from, To: to})
	}
	if subject := strings.TrimSpace(q.Get("subject")); subject != "" {
		filter.Criteria = append(filter.Criteria, payroll.SubjectCriterion{Text: subject})
	}
	if period := strings.TrimSpace(q.Get("pay_period")); period != "" {
		filter.Criteria = append(filter.Criteria, payroll.PayPeriodCriterion{Text: period})
	}
	if count, ok := parseInt("employee_count"); ok {
		op := payroll.Comparison(q.Get("employee_count_op"))
		switch op {
		case "":
			op = payroll.CompareEq
		case payroll.CompareEq, payroll.CompareGte, payroll.CompareLte:
		default:
			errs = append(errs, validator.ValidationError{Field: "employee_count_op", Message: "must be eq, gte or lte"})
		}
		filter.Criteria = append(filter.Criteria, payroll.EmployeeCountCriterion{Op: op, Value: count})
	}
	if generator := q.Get("generated_by"); generator != "" {
		filter.Criteria = append(filter.Criteria, payroll.GeneratorCriterion{UserID: generator})
	}
	if approver := q.Get("approver_id"); approver != "" {
		filter.Criteria = append(filter.Criteria, payroll.ApproverCriterion{UserID: approver})
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []payroll.RunStatus
		for _, s := range strings.Split(raw, ",") {
			status := payroll.RunStatus(strings.TrimSpace(s))
			if !status.Valid() {
				errs = append(errs, validator.ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s)})
				continue
			}
			statuses = append(statuses, status)
		}
		filter.Criteria = append(filter.Criteria, payroll.StatusCriterion{Statuses: statuses})
	}

	page := store.Page{}
	if n, ok := parseInt("page"); ok {
		page.Page = n
	}
	if n, ok := parseInt("limit"); ok {
		page.Limit = n
	}

	if len(errs) > 0 {
		return payroll.RunFilter{}, store.Page{}, errs
	}
	return filter, page.Normalize(), nil
}
