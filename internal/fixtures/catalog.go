package fixtures

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrUnsupportedCatalogFormat = errors.New("unsupported catalog format")

// Catalog is the salary configuration shipped with a deployment.
type Catalog struct {
	Components []payroll.SalaryComponent
	Templates  []payroll.SalaryTemplate
}

// ==========================================
// DOCUMENT SHAPE (YAML and XML)
// ==========================================

type catalogDocument struct {
	XMLName    xml.Name            `yaml:"-" xml:"catalog"`
	Components []componentDocument `yaml:"components" xml:"components>component"`
	Templates  []templateDocument  `yaml:"templates" xml:"templates>template"`
}

type ruleDocument struct {
	Type       string `yaml:"type" xml:"type,attr"`
	Amount     string `yaml:"amount" xml:"amount,attr"`
	Expression string `yaml:"expression" xml:",chardata"`
}

type componentDocument struct {
	ID              string       `yaml:"id" xml:"id,attr"`
	Code            string       `yaml:"code" xml:"code,attr"`
	Name            string       `yaml:"name" xml:"name,attr"`
	Kind            string       `yaml:"kind" xml:"kind,attr"`
	Rule            ruleDocument `yaml:"rule" xml:"rule"`
	DefaultIncluded bool         `yaml:"default_included" xml:"default_included,attr"`
	Fixed           bool         `yaml:"fixed" xml:"fixed,attr"`
	Inactive        bool         `yaml:"inactive" xml:"inactive,attr"`
}

type itemDocument struct {
	Component string        `yaml:"component" xml:"component,attr"`
	Override  *ruleDocument `yaml:"override" xml:"override"`
}

type templateDocument struct {
	ID         string         `yaml:"id" xml:"id,attr"`
	Name       string         `yaml:"name" xml:"name,attr"`
	SalaryRole string         `yaml:"salary_role" xml:"salary_role,attr"`
	Items      []itemDocument `yaml:"items" xml:"item"`
}

// ==========================================
// LOADER
// ==========================================

// CatalogLoader reads a salary catalog from a .yaml, .yml or .xml file.
type CatalogLoader struct {
	path string
}

func NewCatalogLoader(path string) *CatalogLoader {
	return &CatalogLoader{path: path}
}

// Load parses and validates the catalog. A template without items receives
// every default-included component in catalog order.
func (l *CatalogLoader) Load() (Catalog, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog %s: %w", l.path, err)
	}

	var doc catalogDocument
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	case ".xml":
		err = xml.Unmarshal(data, &doc)
	default:
		return Catalog{}, fmt.Errorf("%w: %s", ErrUnsupportedCatalogFormat, l.path)
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog %s: %w", l.path, err)
	}

	return doc.toCatalog()
}

func (d catalogDocument) toCatalog() (Catalog, error) {
	var catalog Catalog
	known := make(map[string]payroll.SalaryComponent, len(d.Components))
	codes := make(map[string]struct{}, len(d.Components))

	for _, cd := range d.Components {
		c, err := cd.toComponent()
		if err != nil {
			return Catalog{}, err
		}
		if _, ok := known[c.ID]; ok {
			return Catalog{}, &payroll.ComponentError{ComponentID: c.ID, Err: payroll.ErrDuplicateComponent}
		}
		if _, ok := codes[c.Code]; ok {
			return Catalog{}, &payroll.ComponentError{ComponentID: c.ID, Err: payroll.ErrDuplicateComponent}
		}
		known[c.ID] = c
		codes[c.Code] = struct{}{}
		catalog.Components = append(catalog.Components, c)
	}

	for _, td := range d.Templates {
		t := payroll.SalaryTemplate{ID: td.ID, Name: td.Name, SalaryRole: td.SalaryRole}
		if t.ID == "" {
			return Catalog{}, fmt.Errorf("template %q has no id", td.Name)
		}
		for _, id := range td.Items {
			if _, ok := known[id.Component]; !ok {
				return Catalog{}, &payroll.ComponentError{ComponentID: id.Component, Err: payroll.ErrComponentNotFound}
			}
			item := payroll.TemplateItem{ComponentID: id.Component}
			if id.Override != nil {
				rule, err := id.Override.toRule()
				if err != nil {
					return Catalog{}, &payroll.ComponentError{ComponentID: id.Component, Err: err}
				}
				item.Override = &rule
			}
			t.Items = append(t.Items, item)
		}
		if len(t.Items) == 0 {
			for _, c := range catalog.Components {
				if c.DefaultIncluded && c.IsActive {
					t.Items = append(t.Items, payroll.TemplateItem{ComponentID: c.ID})
				}
			}
		}
		if err := t.Validate(); err != nil {
			return Catalog{}, fmt.Errorf("template %s: %w", t.ID, err)
		}
		catalog.Templates = append(catalog.Templates, t)
	}

	return catalog, nil
}

func (cd componentDocument) toComponent() (payroll.SalaryComponent, error) {
	kind := payroll.ComponentKind(strings.ToLower(cd.Kind))
	if cd.ID == "" || cd.Code == "" {
		return payroll.SalaryComponent{}, fmt.Errorf("component %q needs an id and a code", cd.Name)
	}
	if !kind.Valid() {
		return payroll.SalaryComponent{}, fmt.Errorf("component %s: unknown kind %q", cd.ID, cd.Kind)
	}
	rule, err := cd.Rule.toRule()
	if err != nil {
		return payroll.SalaryComponent{}, &payroll.ComponentError{ComponentID: cd.ID, Err: err}
	}

	return payroll.SalaryComponent{
		ID:              cd.ID,
		Code:            cd.Code,
		Name:            cd.Name,
		Kind:            kind,
		Rule:            rule,
		DefaultIncluded: cd.DefaultIncluded,
		Fixed:           cd.Fixed,
		IsActive:        !cd.Inactive,
	}, nil
}

func (rd ruleDocument) toRule() (payroll.ComputationRule, error) {
	switch payroll.RuleType(strings.ToLower(rd.Type)) {
	case payroll.RuleTypeFlat:
		amount, err := decimal.NewFromString(strings.TrimSpace(rd.Amount))
		if err != nil {
			return payroll.ComputationRule{}, fmt.Errorf("%w: flat amount %q", payroll.ErrInvalidFormula, rd.Amount)
		}
		return payroll.FlatRule(amount), nil
	case payroll.RuleTypeFormula:
		expression := strings.TrimSpace(rd.Expression)
		if expression == "" {
			return payroll.ComputationRule{}, fmt.Errorf("%w: empty expression", payroll.ErrInvalidFormula)
		}
		return payroll.FormulaRule(expression), nil
	default:
		return payroll.ComputationRule{}, fmt.Errorf("%w: unknown rule type %q", payroll.ErrInvalidFormula, rd.Type)
	}
}

// ==========================================
// SEEDING
// ==========================================

// Seed upserts the catalog in one transaction, components first.
func Seed(ctx context.Context, catalog Catalog, repo payroll.SalaryConfigRepository, tx payroll.Transactor) error {
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, c := range catalog.Components {
			if _, err := repo.UpsertComponent(ctx, c); err != nil {
				return fmt.Errorf("failed to seed component %s: %w", c.Code, err)
			}
		}
		for _, t := range catalog.Templates {
			if _, err := repo.UpsertTemplate(ctx, t); err != nil {
				return fmt.Errorf("failed to seed template %s: %w", t.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("salary catalog seeded", "components", len(catalog.Components), "templates", len(catalog.Templates))
	return nil
}
