// Package queryir is a small query representation for the run log.
//
// Callers describe which persisted runs they want (by focus, outcome,
// run status, seq range, or the constructions a run evaluated) without
// writing SQL. Backends such as querysql compile a Query into their own
// dialect; queries are validated against the known tables first, so a
// backend never sees an unknown column.
//
// Query and Predicate are sealed interfaces. Only types in this package
// implement them, which keeps type switches in backends exhaustive:
//
//	switch p := pred.(type) {
//	case Equals:
//	case Compare:
//	case And:
//	case HasProjection:
//	}
//
// Literal values are ir.IRValue, so a query carries the same value types
// as the rest of the engine and never a float.
package queryir
