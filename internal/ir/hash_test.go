package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConstruction() *Construction {
	to := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	return &Construction{
		ID:       "ldap-account",
		Resource: "ldap",
		Kind:     "account",
		Intent:   "default",
		Attributes: []ItemMapping{
			{Name: "cn", Path: AttributePath("cn"), Expression: "focus.fullName"},
			{Name: "mail", Path: AttributePath("mail"), Expression: "focus.email", Window: TimeWindow{To: &to}},
		},
	}
}

func TestConstructionHash_Deterministic(t *testing.T) {
	h1, err := ConstructionHash(sampleConstruction())
	require.NoError(t, err)
	h2, err := ConstructionHash(sampleConstruction())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestConstructionHash_SensitiveToDefinition(t *testing.T) {
	base := MustConstructionHash(sampleConstruction())

	changed := sampleConstruction()
	changed.Attributes[0].Expression = "focus.givenName"
	assert.NotEqual(t, base, MustConstructionHash(changed))

	reordered := sampleConstruction()
	reordered.Attributes[0], reordered.Attributes[1] = reordered.Attributes[1], reordered.Attributes[0]
	assert.NotEqual(t, base, MustConstructionHash(reordered), "declaration order is part of the definition")

	desc := sampleConstruction()
	desc.Description = "documentation only"
	assert.Equal(t, base, MustConstructionHash(desc))
}

func TestValueHash_DomainSeparated(t *testing.T) {
	v, err := ValueHash(IRString("x"))
	require.NoError(t, err)

	raw, err := MarshalCanonical(IRString("x"))
	require.NoError(t, err)
	assert.NotEqual(t, hashWithDomain(DomainConstruction, raw), v)
	assert.Equal(t, hashWithDomain(DomainValue, raw), v)
}
