package queryir

import "github.com/roach88/reconcile/internal/ir"

// Query represents an abstract query over the run log.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode()
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
// There is no OR predicate; run separate queries instead.
type Predicate interface {
	predicateNode()
}

// Select reads rows from one table.
//
//	SELECT <columns> FROM <from> WHERE <filter> ORDER BY <stable key> LIMIT <limit>
//
// Columns must be explicit. Limit zero means no limit. Results are
// always ordered by the table's stable key, never by insertion order.
type Select struct {
	From    string    // Table name (TableRuns, TableProjections, TableSchedule)
	Columns []string  // Selected columns, in scan order
	Filter  Predicate // WHERE conditions (nil = no filter)
	Limit   int
}

func (Select) queryNode() {}

// Equals matches rows whose field equals a literal.
//
//	Equals{Field: "outcome", Value: ir.IRString("fatal_error")}
//
// Value must be a string, int or bool. NULL never matches.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// CompareOp is an ordering comparison.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
)

// Compare orders an integer field against a literal.
//
//	Compare{Field: "seq", Op: OpGreaterEqual, Value: 10}
//
// Instants are stored as Unix nanoseconds, so time bounds are integers too.
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.IRInt
}

func (Compare) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// HasProjection matches runs that recorded at least one projection
// result satisfying Filter. Filter fields refer to TableProjections.
// Only valid in a Select from TableRuns.
//
//	HasProjection{Filter: Equals{Field: "construction_id", Value: ir.IRString("ldap-account")}}
type HasProjection struct {
	Filter Predicate
}

func (HasProjection) predicateNode() {}
