package cli

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "reconcile", cmd.Use)
	assert.Contains(t, cmd.Long, "constructions")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "evaluate", "test", "due", "runs"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestEvaluateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	evalCmd, _, err := cmd.Find([]string{"evaluate"})
	require.NoError(t, err)

	inputFlag := evalCmd.Flags().Lookup("input")
	require.NotNil(t, inputFlag)
	assert.Equal(t, "i", inputFlag.Shorthand)

	workersFlag := evalCmd.Flags().Lookup("workers")
	require.NotNil(t, workersFlag)
	assert.Equal(t, "4", workersFlag.DefValue)

	assert.NotNil(t, evalCmd.Flags().Lookup("db"))
}

func TestDueCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	dueCmd, _, err := cmd.Find([]string{"due"})
	require.NoError(t, err)

	for _, name := range []string{"db", "now", "limit", "focus"} {
		assert.NotNil(t, dueCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "yaml", "validate", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestConfigureLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Run("text at info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		configureLogging(&RootOptions{Format: "text"}, buf)

		slog.Debug("hidden")
		slog.Info("recompute finished", "focus", "user-1")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "focus=user-1")
	})

	t.Run("json at debug when verbose", func(t *testing.T) {
		buf := &bytes.Buffer{}
		configureLogging(&RootOptions{Format: "json", Verbose: true}, buf)

		slog.Debug("projection evaluated", "construction", "ldap-account")
		assert.Contains(t, buf.String(), `"construction":"ldap-account"`)
		assert.Contains(t, buf.String(), `"level":"DEBUG"`)
	})
}
