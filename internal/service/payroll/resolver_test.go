package payroll

import (
	"context"
	"errors"
	"testing"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func earning(id, code string, rule payroll.ComputationRule) payroll.SalaryComponent {
	return payroll.SalaryComponent{ID: id, Code: code, Name: code, Kind: payroll.ComponentKindEarning, Rule: rule, IsActive: true}
}

func deduction(id, code string, rule payroll.ComputationRule, fixed bool) payroll.SalaryComponent {
	return payroll.SalaryComponent{ID: id, Code: code, Name: code, Kind: payroll.ComponentKindDeduction, Rule: rule, Fixed: fixed, IsActive: true}
}

func templateOf(components ...payroll.SalaryComponent) payroll.SalaryTemplate {
	t := payroll.SalaryTemplate{ID: "tpl-1", Name: "Staff"}
	for _, c := range components {
		t.Items = append(t.Items, payroll.TemplateItem{ComponentID: c.ID})
	}
	return t
}

func amounts(resolved []payroll.ResolvedComponent) map[string]string {
	out := make(map[string]string, len(resolved))
	for _, rc := range resolved {
		out[rc.Component.Code] = payroll.RoundMoney(rc.Amount).StringFixed(2)
	}
	return out
}

func TestResolve_FlatComponents(t *testing.T) {
	basic := earning("c1", "basic", payroll.FlatRule(dec("3000")))
	allowance := earning("c2", "allowance", payroll.FlatRule(dec("100")))

	resolved, err := Resolve(templateOf(basic, allowance), []payroll.SalaryComponent{allowance, basic})

	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "basic", resolved[0].Component.Code)
	assert.True(t, resolved[0].Amount.Equal(dec("3000")))
	assert.True(t, resolved[1].Amount.Equal(dec("100")))
}

func TestResolve_FormulaOrderedAfterDependencies(t *testing.T) {
	// deductions listed before the earnings they read
	tax := deduction("c1", "tax", payroll.FormulaRule("gross / 10"), false)
	pension := deduction("c2", "pension", payroll.FormulaRule("basic / 20"), false)
	basic := earning("c3", "basic", payroll.FlatRule(dec("3000")))
	allowance := earning("c4", "allowance", payroll.FormulaRule("basic / 30"))

	resolved, err := Resolve(templateOf(tax, pension, basic, allowance), []payroll.SalaryComponent{tax, pension, basic, allowance})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"tax":       "310.00",
		"pension":   "150.00",
		"basic":     "3000.00",
		"allowance": "100.00",
	}, amounts(resolved))
	assert.Equal(t, "tax", resolved[0].Component.Code)
	assert.Equal(t, "allowance", resolved[3].Component.Code)
}

func TestResolve_TemplateOverride(t *testing.T) {
	basic := earning("c1", "basic", payroll.FlatRule(dec("3000")))
	override := payroll.FlatRule(dec("4500"))
	tpl := payroll.SalaryTemplate{Items: []payroll.TemplateItem{{ComponentID: "c1", Override: &override}}}

	resolved, err := Resolve(tpl, []payroll.SalaryComponent{basic})

	require.NoError(t, err)
	assert.True(t, resolved[0].Amount.Equal(dec("4500")))
}

func TestResolve_CircularReference(t *testing.T) {
	a := earning("c1", "a", payroll.FormulaRule("b + 1"))
	b := earning("c2", "b", payroll.FormulaRule("a + 1"))

	_, err := Resolve(templateOf(a, b), []payroll.SalaryComponent{a, b})

	require.Error(t, err)
	assert.True(t, errors.Is(err, payroll.ErrCircularComponentReference))
	var cycleErr *payroll.CircularComponentReferenceError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Cycle)
}

func TestResolve_EarningReadingGrossIsCircular(t *testing.T) {
	basic := earning("c1", "basic", payroll.FlatRule(dec("3000")))
	bonus := earning("c2", "bonus", payroll.FormulaRule("gross * 0.1"))

	_, err := Resolve(templateOf(basic, bonus), []payroll.SalaryComponent{basic, bonus})

	assert.ErrorIs(t, err, payroll.ErrCircularComponentReference)
}

func TestResolve_InvalidFormula(t *testing.T) {
	basic := earning("c1", "basic", payroll.FlatRule(dec("3000")))

	cases := map[string]string{
		"unknown identifier": "overtime * 2",
		"syntax error":       "basic * ",
		"division by zero":   "basic / 0",
		"non-numeric result": `"basic"`,
		"boolean result":     "basic > 1",
	}
	for name, expression := range cases {
		t.Run(name, func(t *testing.T) {
			bad := deduction("c2", "bad", payroll.FormulaRule(expression), false)
			_, err := Resolve(templateOf(basic, bad), []payroll.SalaryComponent{basic, bad})

			require.Error(t, err)
			assert.ErrorIs(t, err, payroll.ErrInvalidFormula)
			var compErr *payroll.ComponentError
			require.True(t, errors.As(err, &compErr))
			assert.Equal(t, "c2", compErr.ComponentID)
		})
	}
}

func TestResolve_FormulaKeepsDecimalPrecision(t *testing.T) {
	cases := []struct {
		basic     string
		exact     string
		persisted string
	}{
		{"1025.10", "51.255", "51.26"},
		{"1030.10", "51.505", "51.51"},
		{"1035.10", "51.755", "51.76"},
		{"1040.10", "52.005", "52.01"},
	}
	for _, tc := range cases {
		t.Run(tc.basic, func(t *testing.T) {
			basic := earning("c1", "basic", payroll.FlatRule(dec(tc.basic)))
			pension := deduction("c2", "pension", payroll.FormulaRule("gross * 0.05"), false)

			resolved, err := Resolve(templateOf(basic, pension), []payroll.SalaryComponent{basic, pension})
			require.NoError(t, err)
			assert.Equal(t, tc.exact, resolved[1].Amount.String())

			line := ComputeLine(employee.Employee{ID: "e1"}, resolved, payroll.Attendance{CalendarDays: 31, EligibleDays: 31, PaidDays: 31})
			run := payroll.PayrollRun{Lines: []payroll.PayrollLine{line}}
			run.RecalculateTotals()

			assert.Equal(t, tc.persisted, run.Lines[0].TotalDeductions.StringFixed(2))
			assert.True(t, run.Lines[0].NetPay.Equal(dec(tc.basic).Sub(dec(tc.persisted))))
		})
	}
}

func TestResolve_FormulaComparisons(t *testing.T) {
	basic := earning("c1", "basic", payroll.FlatRule(dec("6000")))
	bonus := earning("c2", "bonus", payroll.FormulaRule("basic >= 5000 ? basic / 3 : 0"))
	levy := deduction("c3", "levy", payroll.FormulaRule("gross < 1000 ? 0 : 2.5 * 4 + gross - gross"), false)

	resolved, err := Resolve(templateOf(basic, bonus, levy), []payroll.SalaryComponent{basic, bonus, levy})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"basic": "6000.00",
		"bonus": "2000.00",
		"levy":  "10.00",
	}, amounts(resolved))
}

func TestResolve_MissingAndInactiveComponents(t *testing.T) {
	basic := earning("c1", "basic", payroll.FlatRule(dec("3000")))
	retired := earning("c2", "retired", payroll.FlatRule(dec("50")))
	retired.IsActive = false

	resolved, err := Resolve(templateOf(basic, retired), []payroll.SalaryComponent{basic, retired})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	_, err = Resolve(templateOf(basic, retired), []payroll.SalaryComponent{basic})
	assert.ErrorIs(t, err, payroll.ErrComponentNotFound)
}

func TestResolve_DuplicateComponent(t *testing.T) {
	basic := earning("c1", "basic", payroll.FlatRule(dec("3000")))
	tpl := templateOf(basic, basic)

	_, err := Resolve(tpl, []payroll.SalaryComponent{basic})

	assert.ErrorIs(t, err, payroll.ErrDuplicateComponent)
}

func TestSalaryTemplateResolver_ResolveForEmployee(t *testing.T) {
	config := newFakeSalaryConfig()
	basic := earning("c1", "basic", payroll.FlatRule(dec("3100")))
	config.components[basic.ID] = basic
	config.templates["tpl-1"] = templateOf(basic)
	resolver := NewSalaryTemplateResolver(config)
	ctx := context.Background()

	resolved, err := resolver.ResolveForEmployee(ctx, employee.Employee{ID: "e1", SalaryTemplateID: strPtr("tpl-1")})
	require.NoError(t, err)
	assert.Len(t, resolved, 1)

	_, err = resolver.ResolveForEmployee(ctx, employee.Employee{ID: "e2"})
	assert.ErrorIs(t, err, payroll.ErrTemplateNotFound)

	_, err = resolver.ResolveForEmployee(ctx, employee.Employee{ID: "e3", SalaryTemplateID: strPtr("missing")})
	assert.ErrorIs(t, err, payroll.ErrTemplateNotFound)
}
