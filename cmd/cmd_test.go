//nolint:testpackage
package cmd

import (
	"testing"

	"github.com/inconshreveable/log15/v3"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsExpectedSubcommands(t *testing.T) {
	t.Parallel()

	root := New(log15.New())

	require.Equal(t, "blockframe", root.Name)

	names := make([]string, len(root.Commands))
	for i, c := range root.Commands {
		names[i] = c.Name
	}

	require.ElementsMatch(t, []string{"commit", "health", "serve", "mount"}, names)
}
