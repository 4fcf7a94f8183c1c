package payroll

import (
	"errors"
	"fmt"
	"math"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"
)

// GrossIdentifier is the formula variable holding the sum of earning components.
const GrossIdentifier = "gross"

var errDivisionByZero = errors.New("division by zero")

// formula is a compiled component expression and the variables it reads.
type formula struct {
	program *vm.Program
	refs    []string
}

type identifierCollector struct {
	names []string
	seen  map[string]struct{}
}

func (c *identifierCollector) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, dup := c.seen[id.Value]; dup {
		return
	}
	c.seen[id.Value] = struct{}{}
	c.names = append(c.names, id.Value)
}

// Every arithmetic operator with a decimal operand is routed to one of these,
// so formulas never pass through float64. Literals are converted exactly from
// their shortest representation.
var decimalSignatures = []any{
	new(func(decimal.Decimal, decimal.Decimal) decimal.Decimal),
	new(func(decimal.Decimal, int) decimal.Decimal),
	new(func(int, decimal.Decimal) decimal.Decimal),
	new(func(decimal.Decimal, float64) decimal.Decimal),
	new(func(float64, decimal.Decimal) decimal.Decimal),
}

var comparisonSignatures = []any{
	new(func(decimal.Decimal, decimal.Decimal) bool),
	new(func(decimal.Decimal, int) bool),
	new(func(int, decimal.Decimal) bool),
	new(func(decimal.Decimal, float64) bool),
	new(func(float64, decimal.Decimal) bool),
}

func arithmetic(apply func(a, b decimal.Decimal) (decimal.Decimal, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		a, err := toDecimal(params[0])
		if err != nil {
			return nil, err
		}
		b, err := toDecimal(params[1])
		if err != nil {
			return nil, err
		}
		return apply(a, b)
	}
}

func comparison(holds func(cmp int) bool) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		a, err := toDecimal(params[0])
		if err != nil {
			return nil, err
		}
		b, err := toDecimal(params[1])
		if err != nil {
			return nil, err
		}
		return holds(a.Cmp(b)), nil
	}
}

var decimalOptions = []expr.Option{
	expr.Function("decimalAdd", arithmetic(func(a, b decimal.Decimal) (decimal.Decimal, error) {
		return a.Add(b), nil
	}), decimalSignatures...),
	expr.Function("decimalSub", arithmetic(func(a, b decimal.Decimal) (decimal.Decimal, error) {
		return a.Sub(b), nil
	}), decimalSignatures...),
	expr.Function("decimalMul", arithmetic(func(a, b decimal.Decimal) (decimal.Decimal, error) {
		return a.Mul(b), nil
	}), decimalSignatures...),
	expr.Function("decimalDiv", arithmetic(func(a, b decimal.Decimal) (decimal.Decimal, error) {
		if b.IsZero() {
			return decimal.Zero, errDivisionByZero
		}
		return a.Div(b), nil
	}), decimalSignatures...),
	expr.Function("decimalGt", comparison(func(c int) bool { return c > 0 }), comparisonSignatures...),
	expr.Function("decimalGte", comparison(func(c int) bool { return c >= 0 }), comparisonSignatures...),
	expr.Function("decimalLt", comparison(func(c int) bool { return c < 0 }), comparisonSignatures...),
	expr.Function("decimalLte", comparison(func(c int) bool { return c <= 0 }), comparisonSignatures...),
	expr.Operator("+", "decimalAdd"),
	expr.Operator("-", "decimalSub"),
	expr.Operator("*", "decimalMul"),
	expr.Operator("/", "decimalDiv"),
	expr.Operator(">", "decimalGt"),
	expr.Operator(">=", "decimalGte"),
	expr.Operator("<", "decimalLt"),
	expr.Operator("<=", "decimalLte"),
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, fmt.Errorf("result %v is not a finite number", n)
		}
		return decimal.NewFromFloat(n), nil
	default:
		return decimal.Zero, fmt.Errorf("result %v is not a number", v)
	}
}

// compileFormula checks expression against the known variable names. Only
// names present in known are returned as references; anything else the
// expression reads makes compilation fail.
func compileFormula(expression string, known map[string]struct{}) (formula, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return formula{}, fmt.Errorf("%w: %v", payroll.ErrInvalidFormula, err)
	}

	collector := &identifierCollector{seen: make(map[string]struct{})}
	ast.Walk(&tree.Node, collector)

	env := make(map[string]any, len(known))
	for name := range known {
		env[name] = decimal.Zero
	}
	options := append([]expr.Option{expr.Env(env)}, decimalOptions...)
	program, err := expr.Compile(expression, options...)
	if err != nil {
		return formula{}, fmt.Errorf("%w: %v", payroll.ErrInvalidFormula, err)
	}

	var refs []string
	for _, name := range collector.names {
		if _, ok := known[name]; ok {
			refs = append(refs, name)
		}
	}
	return formula{program: program, refs: refs}, nil
}

func (f formula) eval(values map[string]decimal.Decimal) (decimal.Decimal, error) {
	env := make(map[string]any, len(values))
	for name, v := range values {
		env[name] = v
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", payroll.ErrInvalidFormula, err)
	}
	result, err := toDecimal(out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", payroll.ErrInvalidFormula, err)
	}
	return result, nil
}
