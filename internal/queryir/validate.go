package queryir

import (
	"fmt"

	"github.com/roach88/reconcile/internal/ir"
)

// ValidationResult lists the problems found in a query.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks a query against the run log tables.
//
// Rules:
//  1. From names a known table, and every column exists in it
//  2. Columns are explicit (no SELECT *)
//  3. Equals compares against a string, int or bool
//  4. Compare uses a known operator on an integer column
//  5. HasProjection appears only in a Select from TableRuns
//  6. Limit is not negative
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{errors: []string{}}
	v.validateQuery(query)
	return ValidationResult{
		Valid:  len(v.errors) == 0,
		Errors: v.errors,
	}
}

type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addError("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addError("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addError("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(s Select) {
	table, ok := LookupTable(s.From)
	if !ok {
		v.addError("unknown table %q", s.From)
		return
	}
	if len(s.Columns) == 0 {
		v.addError("select from %s: columns must be explicit", s.From)
	}
	for _, c := range s.Columns {
		if !table.HasColumn(c) {
			v.addError("select from %s: unknown column %q", s.From, c)
		}
	}
	if s.Limit < 0 {
		v.addError("select from %s: negative limit %d", s.From, s.Limit)
	}
	if s.Filter != nil {
		v.validatePredicate(table, s.Filter)
	}
}

func (v *validator) validatePredicate(table Table, p Predicate) {
	switch pred := p.(type) {
	case Equals:
		v.validateEquals(table, pred)
	case *Equals:
		v.validateEquals(table, *pred)
	case Compare:
		v.validateCompare(table, pred)
	case *Compare:
		v.validateCompare(table, *pred)
	case And:
		v.validateAnd(table, pred)
	case *And:
		v.validateAnd(table, *pred)
	case HasProjection:
		v.validateHasProjection(table, pred)
	case *HasProjection:
		v.validateHasProjection(table, *pred)
	default:
		v.addError("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(table Table, eq Equals) {
	if !table.HasColumn(eq.Field) {
		v.addError("%s: unknown column %q", table.Name, eq.Field)
	}
	switch eq.Value.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case nil, ir.IRNull:
		v.addError("%s.%s: NULL never equals anything", table.Name, eq.Field)
	default:
		v.addError("%s.%s: %T cannot be compared", table.Name, eq.Field, eq.Value)
	}
}

func (v *validator) validateCompare(table Table, c Compare) {
	if !table.HasColumn(c.Field) {
		v.addError("%s: unknown column %q", table.Name, c.Field)
	} else if !table.IsIntColumn(c.Field) {
		v.addError("%s.%s: ordering comparison on non-integer column", table.Name, c.Field)
	}
	switch c.Op {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
	default:
		v.addError("%s.%s: unknown operator %q", table.Name, c.Field, c.Op)
	}
}

func (v *validator) validateAnd(table Table, and And) {
	for _, p := range and.Predicates {
		v.validatePredicate(table, p)
	}
}

func (v *validator) validateHasProjection(table Table, h HasProjection) {
	if table.Name != TableRuns {
		v.addError("%s: HasProjection only applies to %s", table.Name, TableRuns)
		return
	}
	if h.Filter != nil {
		v.validatePredicate(tables[TableProjections], h.Filter)
	}
}
