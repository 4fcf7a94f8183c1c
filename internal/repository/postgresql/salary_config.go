package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type salaryConfigRepository struct {
	db database.Querier
}

func NewSalaryConfigRepository(db database.Querier) payroll.SalaryConfigRepository {
	return &salaryConfigRepository{db: db}
}

const componentColumns = `id, code, name, kind, rule_type, amount, expression, default_included, fixed, is_active, created_at, updated_at`

// ========== COMPONENTS ==========

func (r *salaryConfigRepository) GetComponent(ctx context.Context, id string) (payroll.SalaryComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + componentColumns + ` FROM salary_components WHERE id = $1`
	c, err := scanComponent(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == invalidTextCode {
			return payroll.SalaryComponent{}, payroll.ErrComponentNotFound
		}
		return payroll.SalaryComponent{}, fmt.Errorf("failed to get salary component: %w", err)
	}
	return c, nil
}

func (r *salaryConfigRepository) ListComponentsByIDs(ctx context.Context, ids []string) ([]payroll.SalaryComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + componentColumns + ` FROM salary_components WHERE id = ANY($1)`
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary components: %w", err)
	}
	defer rows.Close()

	var components []payroll.SalaryComponent
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary component: %w", err)
		}
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate salary components: %w", err)
	}
	return components, nil
}

func (r *salaryConfigRepository) UpsertComponent(ctx context.Context, component payroll.SalaryComponent) (payroll.SalaryComponent, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_components (
			id, code, name, kind, rule_type, amount, expression, default_included, fixed, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			rule_type = EXCLUDED.rule_type,
			amount = EXCLUDED.amount,
			expression = EXCLUDED.expression,
			default_included = EXCLUDED.default_included,
			fixed = EXCLUDED.fixed,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
		RETURNING ` + componentColumns

	saved, err := scanComponent(q.QueryRow(ctx, query,
		component.ID, component.Code, component.Name, string(component.Kind),
		string(component.Rule.Type), component.Rule.Amount, component.Rule.Expression,
		component.DefaultIncluded, component.Fixed, component.IsActive,
	))
	if err != nil {
		if pgErrorCode(err) == uniqueViolationCode {
			return payroll.SalaryComponent{}, &payroll.ComponentError{ComponentID: component.ID, Err: payroll.ErrDuplicateComponent}
		}
		return payroll.SalaryComponent{}, fmt.Errorf("failed to upsert salary component: %w", err)
	}
	return saved, nil
}

func scanComponent(row pgx.Row) (payroll.SalaryComponent, error) {
	var c payroll.SalaryComponent
	var kind, ruleType string
	err := row.Scan(
		&c.ID, &c.Code, &c.Name, &kind, &ruleType, &c.Rule.Amount, &c.Rule.Expression,
		&c.DefaultIncluded, &c.Fixed, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return payroll.SalaryComponent{}, err
	}
	c.Kind = payroll.ComponentKind(kind)
	c.Rule.Type = payroll.RuleType(ruleType)
	return c, nil
}

// ========== TEMPLATES ==========

func (r *salaryConfigRepository) GetTemplate(ctx context.Context, id string) (payroll.SalaryTemplate, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT id, name, salary_role, created_at, updated_at FROM salary_templates WHERE id = $1`
	var t payroll.SalaryTemplate
	err := q.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.SalaryRole, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgErrorCode(err) == invalidTextCode {
			return payroll.SalaryTemplate{}, payroll.ErrTemplateNotFound
		}
		return payroll.SalaryTemplate{}, fmt.Errorf("failed to get salary template: %w", err)
	}

	items, err := r.templateItems(ctx, q, id)
	if err != nil {
		return payroll.SalaryTemplate{}, err
	}
	t.Items = items
	return t, nil
}

func (r *salaryConfigRepository) templateItems(ctx context.Context, q database.Querier, templateID string) ([]payroll.TemplateItem, error) {
	query := `
		SELECT component_id, override_rule_type, override_amount, override_expression
		FROM salary_template_items
		WHERE template_id = $1
		ORDER BY position
	`
	rows, err := q.Query(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary template items: %w", err)
	}
	defer rows.Close()

	var items []payroll.TemplateItem
	for rows.Next() {
		var item payroll.TemplateItem
		var ruleType, expression *string
		var amount decimal.NullDecimal
		if err := rows.Scan(&item.ComponentID, &ruleType, &amount, &expression); err != nil {
			return nil, fmt.Errorf("failed to scan salary template item: %w", err)
		}
		if ruleType != nil {
			override := payroll.ComputationRule{Type: payroll.RuleType(*ruleType)}
			if amount.Valid {
				override.Amount = amount.Decimal
			}
			if expression != nil {
				override.Expression = *expression
			}
			item.Override = &override
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate salary template items: %w", err)
	}
	return items, nil
}

// UpsertTemplate replaces the template row and its items. Run it inside a
// transaction.
func (r *salaryConfigRepository) UpsertTemplate(ctx context.Context, template payroll.SalaryTemplate) (payroll.SalaryTemplate, error) {
	if err := template.Validate(); err != nil {
		return payroll.SalaryTemplate{}, err
	}
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_templates (id, name, salary_role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			salary_role = EXCLUDED.salary_role,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := q.QueryRow(ctx, query, template.ID, template.Name, template.SalaryRole).Scan(&template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		return payroll.SalaryTemplate{}, fmt.Errorf("failed to upsert salary template: %w", err)
	}

	if _, err := q.Exec(ctx, `DELETE FROM salary_template_items WHERE template_id = $1`, template.ID); err != nil {
		return payroll.SalaryTemplate{}, fmt.Errorf("failed to clear salary template items: %w", err)
	}

	itemQuery := `
		INSERT INTO salary_template_items (
			template_id, component_id, position, override_rule_type, override_amount, override_expression
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i, item := range template.Items {
		var ruleType, expression *string
		var amount decimal.NullDecimal
		if item.Override != nil {
			t := string(item.Override.Type)
			ruleType = &t
			amount = decimal.NewNullDecimal(item.Override.Amount)
			expression = &item.Override.Expression
		}
		if _, err := q.Exec(ctx, itemQuery, template.ID, item.ComponentID, i, ruleType, amount, expression); err != nil {
			if pgErrorCode(err) == foreignKeyViolationCode {
				return payroll.SalaryTemplate{}, &payroll.ComponentError{ComponentID: item.ComponentID, Err: payroll.ErrComponentNotFound}
			}
			return payroll.SalaryTemplate{}, fmt.Errorf("failed to insert salary template item: %w", err)
		}
	}

	return template, nil
}
