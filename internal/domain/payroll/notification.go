package payroll

import (
	"context"
	"time"
)

// RunEventType enum
type RunEventType string

const (
	EventRunCreated   RunEventType = "payroll_run_created"
	EventRunSubmitted RunEventType = "payroll_run_submitted"
	EventRunApproved  RunEventType = "payroll_run_approved"
	EventRunRejected  RunEventType = "payroll_run_rejected"
	EventRunPaid      RunEventType = "payroll_run_paid"
	EventRunDeleted   RunEventType = "payroll_run_deleted"
)

// RunEvent is what recipients are told about a run.
type RunEvent struct {
	Type       RunEventType `json:"type"`
	RunID      string       `json:"run_id"`
	Subject    string       `json:"subject"`
	Status     RunStatus    `json:"status"`
	ActorID    string       `json:"actor_id"`
	Comment    string       `json:"comment,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Notifier delivers run events. Callers treat delivery as fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, recipientIDs []string, runID string, event RunEvent) error
}

// Authorizer decides whether a user may act as approver on a run they were
// not designated for.
type Authorizer interface {
	CanApprove(ctx context.Context, userID, runID string) (bool, error)
}
