package payroll

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// SalaryTemplateResolver turns an employee's salary template into monthly
// component amounts.
type SalaryTemplateResolver struct {
	config payroll.SalaryConfigRepository
}

func NewSalaryTemplateResolver(config payroll.SalaryConfigRepository) *SalaryTemplateResolver {
	return &SalaryTemplateResolver{config: config}
}

// ResolveForEmployee loads the employee's template and its components and
// resolves them.
func (r *SalaryTemplateResolver) ResolveForEmployee(ctx context.Context, emp employee.Employee) ([]payroll.ResolvedComponent, error) {
	if emp.SalaryTemplateID == nil || *emp.SalaryTemplateID == "" {
		return nil, payroll.ErrTemplateNotFound
	}

	template, err := r.config.GetTemplate(ctx, *emp.SalaryTemplateID)
	if err != nil {
		return nil, err
	}

	components, err := r.config.ListComponentsByIDs(ctx, template.ComponentIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to load components of template %s: %w", template.ID, err)
	}

	return Resolve(template, components)
}

type resolveNode struct {
	item      payroll.TemplateItem
	component payroll.SalaryComponent
	rule      payroll.ComputationRule
	formula   formula
}

// Resolve computes the monthly amount of every active template component.
// Formulas are evaluated after everything they reference, with gross standing
// for the sum of all earnings. The result keeps template order.
func Resolve(template payroll.SalaryTemplate, components []payroll.SalaryComponent) ([]payroll.ResolvedComponent, error) {
	if err := template.Validate(); err != nil {
		return nil, err
	}

	byID := make(map[string]payroll.SalaryComponent, len(components))
	for _, c := range components {
		byID[c.ID] = c
	}

	nodes := make([]*resolveNode, 0, len(template.Items))
	byCode := make(map[string]*resolveNode, len(template.Items))
	for _, item := range template.Items {
		component, ok := byID[item.ComponentID]
		if !ok {
			return nil, &payroll.ComponentError{ComponentID: item.ComponentID, Err: payroll.ErrComponentNotFound}
		}
		if !component.IsActive {
			continue
		}
		if _, dup := byCode[component.Code]; dup || component.Code == GrossIdentifier {
			return nil, &payroll.ComponentError{ComponentID: component.ID, Err: payroll.ErrDuplicateComponent}
		}

		node := &resolveNode{item: item, component: component, rule: component.Rule}
		if item.Override != nil {
			node.rule = *item.Override
		}
		nodes = append(nodes, node)
		byCode[component.Code] = node
	}

	known := make(map[string]struct{}, len(nodes)+1)
	known[GrossIdentifier] = struct{}{}
	for code := range byCode {
		known[code] = struct{}{}
	}

	for _, node := range nodes {
		switch node.rule.Type {
		case payroll.RuleTypeFlat:
		case payroll.RuleTypeFormula:
			f, err := compileFormula(node.rule.Expression, known)
			if err != nil {
				return nil, &payroll.ComponentError{ComponentID: node.component.ID, Err: err}
			}
			node.formula = f
		default:
			return nil, &payroll.ComponentError{
				ComponentID: node.component.ID,
				Err:         fmt.Errorf("%w: unknown rule type %q", payroll.ErrInvalidFormula, node.rule.Type),
			}
		}
	}

	order, err := evaluationOrder(nodes)
	if err != nil {
		return nil, err
	}

	values := make(map[string]decimal.Decimal, len(nodes)+1)
	for _, code := range order {
		if code == GrossIdentifier {
			gross := decimal.Zero
			for _, node := range nodes {
				if node.component.Kind == payroll.ComponentKindEarning {
					gross = gross.Add(values[node.component.Code])
				}
			}
			values[GrossIdentifier] = gross
			continue
		}

		node := byCode[code]
		if node.rule.Type == payroll.RuleTypeFlat {
			values[code] = node.rule.Amount
			continue
		}
		amount, err := node.formula.eval(values)
		if err != nil {
			return nil, &payroll.ComponentError{ComponentID: node.component.ID, Err: err}
		}
		values[code] = amount
	}

	resolved := make([]payroll.ResolvedComponent, 0, len(nodes))
	for _, node := range nodes {
		resolved = append(resolved, payroll.ResolvedComponent{
			Component: node.component,
			Amount:    values[node.component.Code],
		})
	}
	return resolved, nil
}

// evaluationOrder sorts component codes so every formula comes after the
// values it reads. gross depends on every earning.
func evaluationOrder(nodes []*resolveNode) ([]string, error) {
	deps := make(map[string][]string, len(nodes)+1)
	names := make([]string, 0, len(nodes)+1)
	var earnings []string
	for _, node := range nodes {
		code := node.component.Code
		names = append(names, code)
		deps[code] = node.formula.refs
		if node.component.Kind == payroll.ComponentKindEarning {
			earnings = append(earnings, code)
		}
	}
	names = append(names, GrossIdentifier)
	deps[GrossIdentifier] = earnings

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), name)
			return &payroll.CircularComponentReferenceError{Cycle: cycle}
		}

		state[name] = visiting
		path = append(path, name)
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}
