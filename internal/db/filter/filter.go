// Package filter describes tag pre-filters applied to FT.SEARCH queries.
package filter

import "fmt"

// MaxClauses bounds the number of clauses in one expression.
const MaxClauses = 16

// Clause matches a TAG field against any of its values.
type Clause struct {
	Field  string
	Values []string
}

// Expression is a conjunction of clauses; negated clauses exclude matches.
type Expression struct {
	must    []Clause
	mustNot []Clause
}

// New returns an empty expression.
func New() Expression { return Expression{} }

// Must adds a clause every hit has to satisfy. Empty values are ignored.
func (e Expression) Must(field string, values ...string) Expression {
	if c, ok := clause(field, values); ok {
		e.must = append(append([]Clause(nil), e.must...), c)
	}
	return e
}

// Not adds a clause no hit may satisfy.
func (e Expression) Not(field string, values ...string) Expression {
	if c, ok := clause(field, values); ok {
		e.mustNot = append(append([]Clause(nil), e.mustNot...), c)
	}
	return e
}

// Clauses returns the positive clauses.
func (e Expression) Clauses() []Clause { return e.must }

// Negated returns the negative clauses.
func (e Expression) Negated() []Clause { return e.mustNot }

// IsEmpty reports whether the expression matches everything.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 && len(e.mustNot) == 0 }

// Validate enforces MaxClauses and non-empty field names.
func (e Expression) Validate() error {
	if n := len(e.must) + len(e.mustNot); n > MaxClauses {
		return fmt.Errorf("too many filter clauses: %d (max %d)", n, MaxClauses)
	}
	return nil
}

func clause(field string, values []string) (Clause, bool) {
	vals := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			vals = append(vals, v)
		}
	}
	if field == "" || len(vals) == 0 {
		return Clause{}, false
	}
	return Clause{Field: field, Values: vals}, true
}
