package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/reconcile/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Construction errors (E101-E109)
	ErrResourceEmpty = "E101" // resource is required
	ErrKindEmpty     = "E102" // kind is required
	ErrDuplicateName = "E105" // duplicate mapping name within a group

	// Mapping errors (E110-E119)
	ErrExpressionEmpty  = "E110" // mapping needs an expression
	ErrInvalidStrength  = "E111" // unknown strength
	ErrInvalidWindow    = "E112" // time_from after time_to
	ErrInvalidSource    = "E113" // source names an unknown variable
	ErrExpressionSyntax = "E114" // expression does not compile
)

// sourceRoots are the variables a mapping source may start with.
var sourceRoots = map[string]bool{
	"focus":        true,
	"projection":   true,
	"construction": true,
	"attributes":   true,
}

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ExpressionChecker compiles an expression without evaluating it.
// mapping.CELEvaluator satisfies it.
type ExpressionChecker interface {
	Compile(expression string) error
}

// Validate validates a compiled construction against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch c := v.(type) {
	case *ir.Construction:
		return validateConstruction(c)
	case ir.Construction:
		return validateConstruction(&c)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// ValidateExpressions compiles every expression and condition with checker.
func ValidateExpressions(c *ir.Construction, checker ExpressionChecker) []ValidationError {
	var errs []ValidationError
	check := func(field, expr string) {
		if expr == "" {
			return
		}
		if err := checker.Compile(expr); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    ErrExpressionSyntax,
			})
		}
	}
	for _, group := range mappingGroups(c) {
		for i, m := range group.mappings {
			check(fmt.Sprintf("%s[%d].expression", group.field, i), m.Expression)
			check(fmt.Sprintf("%s[%d].condition", group.field, i), m.Condition)
		}
	}
	return errs
}

type mappingGroup struct {
	field    string
	mappings []ir.ItemMapping
}

func mappingGroups(c *ir.Construction) []mappingGroup {
	return []mappingGroup{
		{field: "attributes", mappings: c.Attributes},
		{field: "associations", mappings: c.Associations},
	}
}

func validateConstruction(c *ir.Construction) []ValidationError {
	var errs []ValidationError

	// E101: resource is required
	if strings.TrimSpace(c.Resource) == "" {
		errs = append(errs, ValidationError{
			Field:   "resource",
			Message: "resource is required and must be non-empty",
			Code:    ErrResourceEmpty,
		})
	}

	// E102: kind is required
	if strings.TrimSpace(c.Kind) == "" {
		errs = append(errs, ValidationError{
			Field:   "kind",
			Message: "kind is required and must be non-empty",
			Code:    ErrKindEmpty,
		})
	}

	for _, group := range mappingGroups(c) {
		names := make(map[string]bool)
		for i, m := range group.mappings {
			errs = append(errs, validateMapping(fmt.Sprintf("%s[%d]", group.field, i), m, names)...)
		}
	}

	return errs
}

func validateMapping(field string, m ir.ItemMapping, names map[string]bool) []ValidationError {
	var errs []ValidationError

	// E105: duplicate mapping name
	if names[m.Name] {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: fmt.Sprintf("duplicate mapping name: %q", m.Name),
			Code:    ErrDuplicateName,
		})
	}
	names[m.Name] = true

	// E110: expression is required
	if strings.TrimSpace(m.Expression) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".expression",
			Message: fmt.Sprintf("mapping %q needs an expression", m.Name),
			Code:    ErrExpressionEmpty,
		})
	}

	// E111: strength
	if !ir.ValidStrengths[m.Strength] {
		errs = append(errs, ValidationError{
			Field:   field + ".strength",
			Message: fmt.Sprintf("invalid strength %q, must be \"normal\", \"weak\", or \"strong\"", m.Strength),
			Code:    ErrInvalidStrength,
		})
	}

	// E112: window bounds
	if m.Window.From != nil && m.Window.To != nil && m.Window.From.After(*m.Window.To) {
		errs = append(errs, ValidationError{
			Field:   field + ".time_from",
			Message: fmt.Sprintf("time_from %s is after time_to %s", ir.FormatTime(*m.Window.From), ir.FormatTime(*m.Window.To)),
			Code:    ErrInvalidWindow,
		})
	}

	// E113: sources name a known variable
	for j, src := range m.Sources {
		root, _, _ := strings.Cut(src, ".")
		if !sourceRoots[root] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.sources[%d]", field, j),
				Message: fmt.Sprintf("source %q must start with focus, projection, construction, or attributes", src),
				Code:    ErrInvalidSource,
			})
		}
	}

	return errs
}
