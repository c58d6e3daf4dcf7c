package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const accountsCUE = `
package test

construction: "ldap-account": {
	resource: "ldap"
	kind:     "account"
	intent:   "default"

	attribute: uid: expression: "focus.name"
	attribute: cn: {
		expression: "focus.givenName + \" \" + focus.familyName"
		time_to:    "2026-06-30T00:00:00Z"
	}
	association: group: expression: "focus.roles.map(r, {\"$ref\": r, \"type\": \"RoleType\"})"
}

construction: "ad-account": {
	resource: "ad"
	kind:     "account"

	attribute: sAMAccountName: expression: "focus.name"
}
`

const userInput = `
focus:
  oid: user-1
  type: UserType
  attributes:
    name: jdoe
    givenName: Jane
    familyName: Doe
    roles: [role-eng]
projections:
  - construction: ldap-account
    current:
      oid: shadow-ldap
      resource: ldap
      kind: account
      intent: default
      attributes: {}
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// constructionsDir creates a directory holding the accounts constructions.
func constructionsDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "accounts.cue", accountsCUE)
	return dir
}
