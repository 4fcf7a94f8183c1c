package postgresql

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

const payPeriodExpr = `(to_char(r.period_start, 'YYYY-MM-DD') || ' - ' || to_char(r.period_end, 'YYYY-MM-DD'))`

// runFilterBuilder accumulates conditions and their positional arguments.
// Values only ever travel as arguments; condition text comes from this file.
type runFilterBuilder struct {
	conditions []string
	args       []interface{}
}

func (b *runFilterBuilder) add(condition string, value interface{}) {
	b.args = append(b.args, value)
	b.conditions = append(b.conditions, fmt.Sprintf(condition, len(b.args)))
}

// buildRunFilter turns the criteria into a WHERE clause with $n placeholders.
// Soft-deleted runs are always excluded.
func buildRunFilter(filter payroll.RunFilter) (string, []interface{}) {
	b := &runFilterBuilder{conditions: []string{"r.is_deleted = FALSE"}}

	for _, c := range filter.Criteria {
		switch c := c.(type) {
		case payroll.PayDateCriterion:
			if c.From != nil {
				b.add("r.salary_date >= $%d", *c.From)
			}
			if c.To != nil {
				b.add("r.salary_date <= $%d", *c.To)
			}
		case payroll.SubjectCriterion:
			b.add("r.subject ILIKE $%d", containsPattern(c.Text))
		case payroll.PayPeriodCriterion:
			b.add(payPeriodExpr+" ILIKE $%d", containsPattern(c.Text))
		case payroll.EmployeeCountCriterion:
			switch c.Op {
			case payroll.CompareGte:
				b.add("r.employee_count >= $%d", c.Value)
			case payroll.CompareLte:
				b.add("r.employee_count <= $%d", c.Value)
			default:
				b.add("r.employee_count = $%d", c.Value)
			}
		case payroll.GeneratorCriterion:
			b.add("r.generated_by = $%d", c.UserID)
		case payroll.ApproverCriterion:
			b.add("r.approver_id = $%d", c.UserID)
		case payroll.StatusCriterion:
			if len(c.Statuses) == 0 {
				continue
			}
			statuses := make([]string, 0, len(c.Statuses))
			for _, s := range c.Statuses {
				statuses = append(statuses, string(s))
			}
			b.add("r.status = ANY($%d)", statuses)
		case payroll.RunDateCriterion:
			if c.From != nil {
				b.add("r.created_at >= $%d", *c.From)
			}
			if c.To != nil {
				b.add("r.created_at <= $%d", *c.To)
			}
		}
	}

	return "WHERE " + strings.Join(b.conditions, " AND "), b.args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}
