package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/compiler"
)

func executeValidate(t *testing.T, format string, dir string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{dir})
	return buf, cmd.Execute()
}

// =============================================================================
// Valid constructions
// =============================================================================

func TestValidateValidConstructions(t *testing.T) {
	buf, err := executeValidate(t, "text", constructionsDir(t))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ All constructions valid (2)")
}

func TestValidateValidConstructionsJSON(t *testing.T) {
	buf, err := executeValidate(t, "json", constructionsDir(t))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 2, resp.Data.Constructions)
}

// =============================================================================
// Load errors (exit code 2)
// =============================================================================

func TestValidateNonExistentDirectory(t *testing.T) {
	buf, err := executeValidate(t, "text", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, buf.String(), "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf, err := executeValidate(t, "text", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, buf.String(), "no CUE files found")
}

func TestValidateSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.cue", `
package test

construction: "ldap-account": {
	resource: "ldap"
`)

	buf, err := executeValidate(t, "json", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeLoadFailed)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLoadFailed, resp.Error.Code)
}

// =============================================================================
// Validation errors (exit code 1)
// =============================================================================

func TestValidateSchemaErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `
package test

construction: "ldap-account": {
	resource: "ldap"
	attribute: uid: {
		expression: "focus.name"
		strength:   "mighty"
	}
}
`)

	buf, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrKindEmpty)
	assert.Contains(t, out, compiler.ErrInvalidStrength)
	assert.Contains(t, out, "construction.ldap-account.attributes[0].strength")
}

func TestValidateExpressionSyntax(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `
package test

construction: "ldap-account": {
	resource: "ldap"
	kind:     "account"
	attribute: uid: {
		expression: "focus.name +"
		condition:  "focus.active &&"
	}
}
`)

	buf, err := executeValidate(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 2)
	for _, e := range resp.Data.Errors {
		assert.Equal(t, compiler.ErrExpressionSyntax, e.Code)
	}
	assert.Equal(t, "construction.ldap-account.attributes[0].expression", resp.Data.Errors[0].Field)
	assert.Equal(t, "construction.ldap-account.attributes[0].condition", resp.Data.Errors[1].Field)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "2 validation error(s)", resp.Error.Message)
}

func TestValidateCollectsCompileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `
package test

construction: first: kind: "account"
construction: second: {
	resource: "ad"
	kind:     "account"
	attribute: cn: {
		expression: "focus.name"
		time_to:    "next tuesday"
	}
}
construction: third: {
	resource: "ldap"
	kind:     "account"
}
`)

	buf, err := executeValidate(t, "text", dir)
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "2 error(s)")
	assert.Contains(t, out, compiler.ErrResourceEmpty)
	assert.Contains(t, out, compiler.ErrInvalidWindow)
}

func TestValidateNoConstructions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.cue", `
package test

other: 1
`)

	buf, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "no constructions found")
}

func TestValidateIncompleteValue(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "incomplete.cue", `
package test

construction: "ldap-account": {
	resource: "ldap"
	kind:     "account"
	attribute: uid: expression: "focus.name"
}
tenant: string
`)

	buf, err := executeValidate(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), ErrCodeBuildFailed)
	assert.Contains(t, buf.String(), "tenant")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"resource", compiler.ErrResourceEmpty},
		{"attribute.cn.time_to", compiler.ErrInvalidWindow},
		{"association.group.time_from", compiler.ErrInvalidWindow},
		{"cue", ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
