package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandNames(cmds []*cobra.Command) map[string]bool {
	names := map[string]bool{}
	for _, c := range cmds {
		names[strings.Fields(c.Use)[0]] = true
	}
	return names
}

func TestCommandsRegistered(t *testing.T) {
	require.NotNil(t, rootCmd)
	names := commandNames(rootCmd.Commands())
	for _, want := range []string{"views", "list", "browse", "logs", "saved", "serve"} {
		assert.True(t, names[want], "expected %q to be registered with the root command", want)
	}
}

func TestSavedHasSubcommands(t *testing.T) {
	names := commandNames(savedCmd.Commands())
	for _, want := range []string{"save", "list", "open", "delete", "recent"} {
		assert.True(t, names[want], "expected saved %s", want)
	}
}

func TestQueryFlagsRegistered(t *testing.T) {
	for _, cmd := range []*cobra.Command{listCmd, logsCmd, savedSaveCmd} {
		for _, flag := range []string{"query", "search", "filter", "sort", "page", "limit"} {
			assert.NotNil(t, cmd.Flags().Lookup(flag), "%s --%s", cmd.Name(), flag)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, flag := range []string{"config", "output", "no-color", "log-level"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), flag)
	}
	assert.Equal(t, "o", rootCmd.PersistentFlags().Lookup("output").Shorthand)
}

func TestCompleteViewNames(t *testing.T) {
	useConfig(t, nil)

	names, directive := completeViewNames(listCmd, nil, "")
	assert.Contains(t, names, "members")
	assert.Contains(t, names, "logs")
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	names, _ = completeViewNames(listCmd, []string{"members"}, "")
	assert.Empty(t, names)
}

func TestCurrentFormat(t *testing.T) {
	useConfig(t, nil)

	outputFormat = "json"
	f, err := currentFormat()
	require.NoError(t, err)
	assert.Equal(t, "json", string(f))

	outputFormat = "xml"
	_, err = currentFormat()
	assert.Error(t, err)
}
