// Package querysql compiles queryir queries to parameterized SQLite SQL.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/queryir"
)

// stableOrder is the ORDER BY key of each table. Text columns use
// COLLATE BINARY so ordering does not depend on the SQLite build.
var stableOrder = map[string]string{
	queryir.TableRuns:        "seq ASC, id COLLATE BINARY ASC",
	queryir.TableProjections: "run_id COLLATE BINARY ASC, position ASC",
	queryir.TableSchedule:    "next_recompute ASC, focus_oid COLLATE BINARY ASC, construction_id COLLATE BINARY ASC",
}

// SQLCompiler compiles queries for SQLite.
//
// Every compiled query has an ORDER BY on the table's stable key.
// Values are always bound as ? parameters, never interpolated.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile validates q and converts it to SQL plus its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if result := queryir.Validate(q); !result.Valid {
		return "", nil, fmt.Errorf("invalid query: %s", strings.Join(result.Errors, "; "))
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(q.Columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(q.From)

	var params []any
	if q.Filter != nil {
		where, whereParams, err := c.compilePredicate(q.From, q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(where)
		params = whereParams
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(stableOrder[q.From])

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, int64(q.Limit))
	}
	return sb.String(), params, nil
}

// compilePredicate compiles p against table. Column names are qualified
// with the table so HasProjection subqueries stay unambiguous.
func (c *SQLCompiler) compilePredicate(table string, p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		return c.compileEquals(table, pred)
	case *queryir.Equals:
		return c.compileEquals(table, *pred)
	case queryir.Compare:
		return fmt.Sprintf("%s.%s %s ?", table, pred.Field, pred.Op), []any{int64(pred.Value)}, nil
	case *queryir.Compare:
		return fmt.Sprintf("%s.%s %s ?", table, pred.Field, pred.Op), []any{int64(pred.Value)}, nil
	case queryir.And:
		return c.compileAnd(table, pred)
	case *queryir.And:
		return c.compileAnd(table, *pred)
	case queryir.HasProjection:
		return c.compileHasProjection(pred)
	case *queryir.HasProjection:
		return c.compileHasProjection(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileEquals(table string, eq queryir.Equals) (string, []any, error) {
	param, err := irValueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	return fmt.Sprintf("%s.%s = ?", table, eq.Field), []any{param}, nil
}

func (c *SQLCompiler) compileAnd(table string, and queryir.And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, predParams, err := c.compilePredicate(table, pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, predParams...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", params, nil
}

func (c *SQLCompiler) compileHasProjection(h queryir.HasProjection) (string, []any, error) {
	cond := fmt.Sprintf("%s.run_id = %s.id", queryir.TableProjections, queryir.TableRuns)
	var params []any
	if h.Filter != nil {
		sql, filterParams, err := c.compilePredicate(queryir.TableProjections, h.Filter)
		if err != nil {
			return "", nil, err
		}
		cond += " AND " + sql
		params = filterParams
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)", queryir.TableProjections, cond), params, nil
}

// irValueToParam converts a scalar ir.IRValue to a SQL parameter.
func irValueToParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
