package odoo

import (
	"fmt"
)

// Domain is an Odoo search filter in prefix notation: a list of terms
// [field, operator, value] optionally combined with "&", "|" and "!".
type Domain []any

// Term builds a single domain term.
func Term(field, operator string, value any) []any {
	return []any{field, operator, value}
}

var domainOperators = map[string]int{
	"&": 2,
	"|": 2,
	"!": 1,
}

// Validate checks the shape of d: every element is a logical operator or a
// three-element term whose first two elements are strings, and the
// operators have enough operands.
func (d Domain) Validate() error {
	// Walk right to left like a prefix evaluator, counting pending operands.
	operands := 0
	for i := len(d) - 1; i >= 0; i-- {
		switch v := d[i].(type) {
		case string:
			arity, ok := domainOperators[v]
			if !ok {
				return fmt.Errorf("%w: domain element %d: unknown operator %q", ErrInvalidRequest, i, v)
			}
			if operands < arity {
				return fmt.Errorf("%w: domain element %d: operator %q needs %d operands", ErrInvalidRequest, i, v, arity)
			}
			operands -= arity - 1
		case []any:
			if len(v) != 3 {
				return fmt.Errorf("%w: domain element %d: term must have 3 elements, got %d", ErrInvalidRequest, i, len(v))
			}
			if _, ok := v[0].(string); !ok {
				return fmt.Errorf("%w: domain element %d: field name must be a string", ErrInvalidRequest, i)
			}
			if _, ok := v[1].(string); !ok {
				return fmt.Errorf("%w: domain element %d: operator must be a string", ErrInvalidRequest, i)
			}
			operands++
		default:
			return fmt.Errorf("%w: domain element %d: unexpected %T", ErrInvalidRequest, i, v)
		}
	}
	return nil
}

// Values are field values for create and write.
type Values map[string]any

// Record is one record as returned by read.
type Record map[string]any

// SearchOptions parameterizes SearchRecords.
type SearchOptions struct {
	Domain Domain
	// Fields limits the columns read; empty reads all fields.
	Fields []string
	// Limit nil means the configured default limit.
	Limit  *int
	Offset int
	Order  string
}

// Limit returns a pointer to n, for SearchOptions.Limit.
func Limit(n int) *int { return &n }
