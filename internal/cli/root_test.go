package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--version"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		assert.Contains(t, output.String(), "guardian version")
		assert.Contains(t, output.String(), GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		cmd := GetRootCmd()
		cmd.SetArgs([]string{"--help"})

		output := &bytes.Buffer{}
		cmd.SetOut(output)

		err := cmd.Execute()
		require.NoError(t, err)

		helpText := output.String()
		assert.Contains(t, helpText, "knowledge base")
		assert.Contains(t, helpText, "scan")
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		projectFlag := cmd.PersistentFlags().Lookup("project")
		require.NotNil(t, projectFlag)
		assert.Equal(t, ".", projectFlag.DefValue)
	})
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range GetRootCmd().Commands() {
		names[sub.Name()] = true
	}

	for _, expected := range []string{"scan", "record", "health", "update", "cache", "oplog", "context", "watch"} {
		assert.True(t, names[expected], "missing subcommand %s", expected)
	}
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}
