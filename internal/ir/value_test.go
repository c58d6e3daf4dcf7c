package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestIRValueSealed(t *testing.T) {
	// Verify all types implement IRValue (compile-time check via assignment)
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
	var _ IRValue = &IRRef{OID: "oid-1"}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	// 'A' = 65, 'a' = 97
	expected := []string{"A", "AA", "Aa", "a", "aA", "aa"}
	assert.Equal(t, expected, obj.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"a", "a", 0},
		{"aa", "a", 1},
		{"a", "aa", -1},
		{"", "", 0},
		{"", "a", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, compareKeysRFC8785(tt.a, tt.b))
		})
	}
}

func TestIRNullInObject(t *testing.T) {
	obj := IRObject{
		"present": IRString("value"),
		"missing": IRNull{},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"missing":null`)

	var decoded IRObject
	require.NoError(t, json.Unmarshal(data, &decoded))

	_, isNull := decoded["missing"].(IRNull)
	assert.True(t, isNull, "expected IRNull, got %T", decoded["missing"])
}

// ============================================================================
// References
// ============================================================================

func TestIRRef_JSONForm(t *testing.T) {
	ref := &IRRef{OID: "role-1", TargetType: "RoleType"}

	data, err := json.Marshal(IRObject{"role": ref})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":{"$ref":"role-1","type":"RoleType"}}`, string(data))
}

func TestIRRef_DecodedFromJSON(t *testing.T) {
	var obj IRObject
	err := json.Unmarshal([]byte(`{"manager":{"$ref":"user-7","name":"Ann"}}`), &obj)
	require.NoError(t, err)

	ref, ok := obj["manager"].(*IRRef)
	require.True(t, ok, "expected *IRRef, got %T", obj["manager"])
	assert.Equal(t, "user-7", ref.OID)
	assert.Equal(t, "Ann", ref.TargetName)
}

func TestIRRef_NonStringOIDRejected(t *testing.T) {
	var obj IRObject
	err := json.Unmarshal([]byte(`{"manager":{"$ref":7}}`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$ref must be a string")
}

// ============================================================================
// Conversion
// ============================================================================

func TestUnmarshalRejectsFloats(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"simple float", `3.14`},
		{"scientific notation", `1e10`},
		{"nested float in object", `{"value": 1.5}`},
		{"array with float", `[1, 2.0, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIRValue([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "float")
		})
	}
}

func TestFromAny_YAMLDocument(t *testing.T) {
	doc := `
fullName: Jane Doe
uid: 1001
active: true
groups:
  - {$ref: g-1, type: RoleType}
  - {$ref: g-2}
`
	var raw map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(doc), &raw))

	obj, err := ObjectFromAny(raw)
	require.NoError(t, err)

	assert.Equal(t, IRString("Jane Doe"), obj["fullName"])
	assert.Equal(t, IRInt(1001), obj["uid"])
	assert.Equal(t, IRBool(true), obj["active"])

	groups, ok := obj["groups"].(IRArray)
	require.True(t, ok)
	require.Len(t, groups, 2)
	assert.Equal(t, &IRRef{OID: "g-1", TargetType: "RoleType"}, groups[0])
	assert.Equal(t, &IRRef{OID: "g-2"}, groups[1])
}

func TestToAny_RoundTrip(t *testing.T) {
	in := IRObject{
		"name":  IRString("x"),
		"n":     IRInt(3),
		"list":  IRArray{IRBool(false), IRNull{}},
		"owner": &IRRef{OID: "o-1"},
	}

	out, err := FromAny(ToAny(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFromAny_RejectsNonStringKeys(t *testing.T) {
	_, err := FromAny(map[any]any{1: "x"})
	require.Error(t, err)
}
