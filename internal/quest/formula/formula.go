// Package formula evaluates the configurable XP-curve expression. The
// expression is arithmetic over a single `level` variable; anything else is
// rejected before it reaches the interpreter.
package formula

import (
	"fmt"
	"math"
	"strings"

	"github.com/Shopify/go-lua"
	apperrors "github.com/nylanalyn/jeeves-quest/internal/platform/errors"
)

// DefaultExpression is the XP curve used when no formula is configured or a
// configured formula is invalid.
const DefaultExpression = "level * 100"

// Curve evaluates XP thresholds from a validated arithmetic expression.
type Curve struct {
	expr string
}

// NewCurve validates expr and returns a Curve over it.
func NewCurve(expr string) (*Curve, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, apperrors.New(apperrors.CodeInvalidConfigFormula, "xp formula is empty")
	}
	if err := Validate(expr); err != nil {
		return nil, err
	}
	return &Curve{expr: expr}, nil
}

// Default returns the Curve for DefaultExpression.
func Default() *Curve {
	return &Curve{expr: DefaultExpression}
}

// Expression returns the expression the curve evaluates.
func (c *Curve) Expression() string {
	return c.expr
}

// Validate rejects any expression containing characters other than digits,
// arithmetic operators, parentheses, whitespace and the `level` identifier.
func Validate(expr string) error {
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case ch >= '0' && ch <= '9':
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '%' || ch == '^' ||
			ch == '(' || ch == ')' || ch == '.' || ch == ' ' || ch == '\t':
			i++
		case ch >= 'a' && ch <= 'z':
			start := i
			for i < len(expr) && expr[i] >= 'a' && expr[i] <= 'z' {
				i++
			}
			if word := expr[start:i]; word != "level" {
				return apperrors.WithMetadata(
					apperrors.CodeInvalidConfigFormula,
					fmt.Sprintf("xp formula references unknown identifier %q", word),
					map[string]string{"identifier": word},
				)
			}
		default:
			return apperrors.WithMetadata(
				apperrors.CodeInvalidConfigFormula,
				fmt.Sprintf("xp formula contains forbidden character %q", string(ch)),
				map[string]string{"character": string(ch)},
			)
		}
	}
	return nil
}

// XPForLevel evaluates the curve at level. The result is always positive:
// evaluation errors and non-positive results fall back to the default
// expression, so a bad formula can never stall progression.
func (c *Curve) XPForLevel(level int) int {
	if value, ok := eval(c.expr, level); ok && value > 0 {
		return value
	}
	value, _ := eval(DefaultExpression, level)
	if value <= 0 {
		value = 100
	}
	return value
}

// eval runs the expression through a fresh Lua state.
func eval(expr string, level int) (int, bool) {
	state := lua.NewState()
	script := fmt.Sprintf("level = %d; result = (%s)", level, expr)
	if err := lua.DoString(state, script); err != nil {
		return 0, false
	}
	state.Global("result")
	value, ok := state.ToNumber(-1)
	state.Pop(1)
	if !ok || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return int(math.Round(value)), true
}
