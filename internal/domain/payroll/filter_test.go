package payroll

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunFilter_Matches(t *testing.T) {
	approver := "mgr-1"
	run := PayrollRun{
		Subject: "January Payroll",
		Period: Period{
			StartDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:    time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			SalaryDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		Status:      RunStatusSubmitted,
		GeneratedBy: "hr-1",
		ApproverID:  &approver,
		Lines:       []PayrollLine{{EmployeeID: "a"}, {EmployeeID: "b"}},
		CreatedAt:   time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC),
	}
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		criteria []Criterion
		want     bool
	}{
		{"no criteria", nil, true},
		{"subject case-insensitive", []Criterion{SubjectCriterion{Text: "january"}}, true},
		{"subject miss", []Criterion{SubjectCriterion{Text: "march"}}, false},
		{"pay period text", []Criterion{PayPeriodCriterion{Text: "2024-01"}}, true},
		{"pay date in range", []Criterion{PayDateCriterion{From: &from, To: &to}}, true},
		{"pay date out of range", []Criterion{PayDateCriterion{From: &late}}, false},
		{"employee count eq", []Criterion{EmployeeCountCriterion{Op: CompareEq, Value: 2}}, true},
		{"employee count gte", []Criterion{EmployeeCountCriterion{Op: CompareGte, Value: 3}}, false},
		{"employee count lte", []Criterion{EmployeeCountCriterion{Op: CompareLte, Value: 2}}, true},
		{"generator", []Criterion{GeneratorCriterion{UserID: "hr-1"}}, true},
		{"approver", []Criterion{ApproverCriterion{UserID: "mgr-2"}}, false},
		{"status any of", []Criterion{StatusCriterion{Statuses: []RunStatus{RunStatusDraft, RunStatusSubmitted}}}, true},
		{"status miss", []Criterion{StatusCriterion{Statuses: []RunStatus{RunStatusPaid}}}, false},
		{"run date", []Criterion{RunDateCriterion{From: &from, To: &to}}, true},
		{"conjunction", []Criterion{GeneratorCriterion{UserID: "hr-1"}, StatusCriterion{Statuses: []RunStatus{RunStatusPaid}}}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, RunFilter{Criteria: c.criteria}.Matches(run))
		})
	}

	deleted := run
	deleted.IsDeleted = true
	assert.False(t, RunFilter{}.Matches(deleted))
}
