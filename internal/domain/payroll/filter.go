package payroll

import (
	"strings"
	"time"
)

// Criterion is one condition of a run listing. The concrete types below are
// the only implementations; repositories switch on them to build queries.
type Criterion interface {
	isCriterion()
}

// PayDateCriterion matches runs whose salary date falls in [From, To].
type PayDateCriterion struct {
	From *time.Time
	To   *time.Time
}

// SubjectCriterion matches runs whose subject contains Text, case-insensitive.
type SubjectCriterion struct {
	Text string
}

// PayPeriodCriterion matches runs whose period label contains Text.
type PayPeriodCriterion struct {
	Text string
}

// Comparison enum
type Comparison string

const (
	CompareEq  Comparison = "eq"
	CompareGte Comparison = "gte"
	CompareLte Comparison = "lte"
)

// EmployeeCountCriterion compares the number of lines in a run.
type EmployeeCountCriterion struct {
	Op    Comparison
	Value int
}

// GeneratorCriterion matches runs generated by a user.
type GeneratorCriterion struct {
	UserID string
}

// ApproverCriterion matches runs assigned to or approved by a user.
type ApproverCriterion struct {
	UserID string
}

// StatusCriterion matches any of the listed statuses.
type StatusCriterion struct {
	Statuses []RunStatus
}

// RunDateCriterion matches runs created in [From, To].
type RunDateCriterion struct {
	From *time.Time
	To   *time.Time
}

func (PayDateCriterion) isCriterion()       {}
func (SubjectCriterion) isCriterion()       {}
func (PayPeriodCriterion) isCriterion()     {}
func (EmployeeCountCriterion) isCriterion() {}
func (GeneratorCriterion) isCriterion()     {}
func (ApproverCriterion) isCriterion()      {}
func (StatusCriterion) isCriterion()        {}
func (RunDateCriterion) isCriterion()       {}

// RunFilter is the conjunction of its criteria. Soft-deleted runs never match.
type RunFilter struct {
	Criteria []Criterion
}

// Matches evaluates the filter in memory with the same semantics the SQL
// builder implements.
func (f RunFilter) Matches(r PayrollRun) bool {
	if r.IsDeleted {
		return false
	}
	for _, c := range f.Criteria {
		if !matchCriterion(c, r) {
			return false
		}
	}
	return true
}

func matchCriterion(c Criterion, r PayrollRun) bool {
	switch c := c.(type) {
	case PayDateCriterion:
		return inRange(r.Period.SalaryDate, c.From, c.To)
	case SubjectCriterion:
		return strings.Contains(strings.ToLower(r.Subject), strings.ToLower(c.Text))
	case PayPeriodCriterion:
		return strings.Contains(strings.ToLower(r.Period.Label()), strings.ToLower(c.Text))
	case EmployeeCountCriterion:
		n := r.EmployeeCount()
		switch c.Op {
		case CompareGte:
			return n >= c.Value
		case CompareLte:
			return n <= c.Value
		default:
			return n == c.Value
		}
	case GeneratorCriterion:
		return r.GeneratedBy == c.UserID
	case ApproverCriterion:
		return r.ApproverID != nil && *r.ApproverID == c.UserID
	case StatusCriterion:
		for _, s := range c.Statuses {
			if r.Status == s {
				return true
			}
		}
		return len(c.Statuses) == 0
	case RunDateCriterion:
		return inRange(r.CreatedAt, c.From, c.To)
	}
	return false
}

func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}
