package postgresql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var componentColumnNames = []string{
	"id", "code", "name", "kind", "rule_type", "amount", "expression",
	"default_included", "fixed", "is_active", "created_at", "updated_at",
}

func TestSalaryConfigRepository_GetTemplate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSalaryConfigRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM salary_templates WHERE id = \$1`).
		WithArgs("tpl-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "salary_role", "created_at", "updated_at"}).
			AddRow("tpl-1", "Staff", "staff", now, now))

	overrideType := "flat"
	mock.ExpectQuery(`FROM salary_template_items`).
		WithArgs("tpl-1").
		WillReturnRows(pgxmock.NewRows([]string{"component_id", "override_rule_type", "override_amount", "override_expression"}).
			AddRow("c-basic", (*string)(nil), decimal.NullDecimal{}, (*string)(nil)).
			AddRow("c-meal", &overrideType, decimal.NewNullDecimal(decimalOf("250")), (*string)(nil)))

	tpl, err := repo.GetTemplate(context.Background(), "tpl-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"c-basic", "c-meal"}, tpl.ComponentIDs())
	assert.Nil(t, tpl.Items[0].Override)
	require.NotNil(t, tpl.Items[1].Override)
	assert.Equal(t, payroll.RuleTypeFlat, tpl.Items[1].Override.Type)
	assert.True(t, tpl.Items[1].Override.Amount.Equal(decimalOf("250")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryConfigRepository_GetTemplate_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSalaryConfigRepository(mock)

	mock.ExpectQuery(`FROM salary_templates WHERE id = \$1`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err = repo.GetTemplate(context.Background(), "nope")
	assert.ErrorIs(t, err, payroll.ErrTemplateNotFound)
}

func TestSalaryConfigRepository_ListComponentsByIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSalaryConfigRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM salary_components WHERE id = ANY\(\$1\)`).
		WithArgs([]string{"c-basic", "c-tax"}).
		WillReturnRows(pgxmock.NewRows(componentColumnNames).
			AddRow("c-basic", "basic", "Basic", "earning", "flat", decimalOf("3100"), "", true, false, true, now, now).
			AddRow("c-tax", "tax", "Tax", "deduction", "formula", decimal.Zero, "gross / 10", false, false, true, now, now))

	components, err := repo.ListComponentsByIDs(context.Background(), []string{"c-basic", "c-tax"})
	require.NoError(t, err)
	require.Len(t, components, 2)

	assert.Equal(t, payroll.ComponentKindEarning, components[0].Kind)
	assert.Equal(t, payroll.RuleTypeFormula, components[1].Rule.Type)
	assert.Equal(t, "gross / 10", components[1].Rule.Expression)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryConfigRepository_UpsertComponent_DuplicateCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSalaryConfigRepository(mock)

	mock.ExpectQuery(`INSERT INTO salary_components`).
		WithArgs(append([]any{"c-dup", "basic"}, anyArgs(8)...)...).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode})

	_, err = repo.UpsertComponent(context.Background(), payroll.SalaryComponent{
		ID:   "c-dup",
		Code: "basic",
		Kind: payroll.ComponentKindEarning,
		Rule: payroll.FlatRule(decimalOf("1")),
	})
	assert.ErrorIs(t, err, payroll.ErrDuplicateComponent)
	var compErr *payroll.ComponentError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, "c-dup", compErr.ComponentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryConfigRepository_UpsertTemplate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSalaryConfigRepository(mock)
	now := time.Now().UTC()

	override := payroll.FormulaRule("basic / 10")
	tpl := payroll.SalaryTemplate{
		ID:         "tpl-1",
		Name:       "Staff",
		SalaryRole: "staff",
		Items: []payroll.TemplateItem{
			{ComponentID: "c-basic"},
			{ComponentID: "c-tax", Override: &override},
		},
	}

	mock.ExpectQuery(`INSERT INTO salary_templates`).
		WithArgs("tpl-1", "Staff", "staff").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(`DELETE FROM salary_template_items WHERE template_id = \$1`).
		WithArgs("tpl-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO salary_template_items`).
		WithArgs("tpl-1", "c-basic", 0, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO salary_template_items`).
		WithArgs("tpl-1", "c-tax", 1, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	saved, err := repo.UpsertTemplate(context.Background(), tpl)
	require.NoError(t, err)
	assert.Equal(t, now, saved.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSalaryConfigRepository_UpsertTemplate_RejectsDuplicates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewSalaryConfigRepository(mock)

	_, err = repo.UpsertTemplate(context.Background(), payroll.SalaryTemplate{
		ID:    "tpl-1",
		Items: []payroll.TemplateItem{{ComponentID: "c-basic"}, {ComponentID: "c-basic"}},
	})
	assert.ErrorIs(t, err, payroll.ErrDuplicateComponent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
