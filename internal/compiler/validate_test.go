package compiler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/ir"
)

func validConstruction() *ir.Construction {
	return &ir.Construction{
		ID:       "ldap-account",
		Resource: "ldap",
		Kind:     "account",
		Attributes: []ir.ItemMapping{
			{Name: "uid", Expression: "focus.name", Sources: []string{"focus.name"}},
		},
		Associations: []ir.ItemMapping{
			{Name: "group", Expression: "focus.roles", Strength: ir.StrengthWeak},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

// =============================================================================
// Construction rules
// =============================================================================

func TestValidateValidConstruction(t *testing.T) {
	assert.Empty(t, Validate(validConstruction()))
	assert.Empty(t, Validate(*validConstruction()))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a construction")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateRequiredFields(t *testing.T) {
	c := validConstruction()
	c.Resource = " "
	c.Kind = ""

	assert.Equal(t, []string{ErrResourceEmpty, ErrKindEmpty}, codes(Validate(c)))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c := validConstruction()
	c.Attributes = append(c.Attributes,
		ir.ItemMapping{Name: "uid", Expression: "x", Strength: "mighty"},
		ir.ItemMapping{Name: "mail", Window: ir.TimeWindow{From: &from, To: &to}, Sources: []string{"shadow.mail"}},
	)

	errs := Validate(c)
	assert.Equal(t, []string{
		ErrDuplicateName,
		ErrInvalidStrength,
		ErrExpressionEmpty,
		ErrInvalidWindow,
		ErrInvalidSource,
	}, codes(errs))
	assert.Equal(t, "attributes[1].name", errs[0].Field)
	assert.Equal(t, "attributes[2].sources[0]", errs[4].Field)
}

func TestValidateNamesScopedPerGroup(t *testing.T) {
	c := validConstruction()
	c.Associations[0].Name = "uid"
	assert.Empty(t, Validate(c), "attribute and association namespaces are separate")
}

func TestValidateEqualWindowBoundsAllowed(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := validConstruction()
	c.Attributes[0].Window = ir.TimeWindow{From: &at, To: &at}
	assert.Empty(t, Validate(c))
}

// =============================================================================
// Expressions
// =============================================================================

type fakeChecker struct{}

func (fakeChecker) Compile(expr string) error {
	if strings.HasSuffix(expr, "+") {
		return errors.New("syntax error: unexpected end of input")
	}
	return nil
}

func TestValidateExpressions(t *testing.T) {
	c := validConstruction()
	c.Associations[0].Condition = "focus.active +"

	errs := ValidateExpressions(c, fakeChecker{})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrExpressionSyntax, errs[0].Code)
	assert.Equal(t, "associations[0].condition", errs[0].Field)
}

func TestValidationErrorFormatting(t *testing.T) {
	e := ValidationError{Field: "kind", Message: "kind is required", Code: ErrKindEmpty}
	assert.Equal(t, "[E102] kind: kind is required", e.Error())

	e.Line = 7
	assert.Equal(t, "[E102] line 7: kind: kind is required", e.Error())
}
