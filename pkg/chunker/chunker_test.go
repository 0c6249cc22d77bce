package chunker_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockframe/blockframe/pkg/archive"
	"github.com/blockframe/blockframe/pkg/chunker"
	"github.com/blockframe/blockframe/pkg/manifest"
)

func TestCommitTierTiny(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "small.txt")
	content := []byte("a small archival payload, well under the tier threshold")
	require.NoError(t, os.WriteFile(srcPath, content, 0o600))

	archiveDir := filepath.Join(dir, "archive")

	m, err := chunker.Commit(context.Background(), archiveDir, srcPath)
	require.NoError(t, err)
	require.Equal(t, manifest.TierTiny, m.Tier)
	require.Equal(t, int64(len(content)), m.Size)
	require.NoError(t, m.Validate())

	fileDir := archive.FileDir(archiveDir, "small.txt", m.ContentHash)

	data, err := os.ReadFile(archive.DataPath(fileDir))
	require.NoError(t, err)
	require.Equal(t, content, data)

	for i := 0; i < 3; i++ {
		_, err := os.Stat(archive.ParityPathT1(fileDir, i))
		require.NoError(t, err)
	}

	_, err = os.Stat(archive.ManifestPath(fileDir))
	require.NoError(t, err)
}

func TestCommitRejectsDuplicate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	srcPath := filepath.Join(dir, "dup.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("duplicate-test-contents"), 0o600))

	archiveDir := filepath.Join(dir, "archive")

	_, err := chunker.Commit(context.Background(), archiveDir, srcPath)
	require.NoError(t, err)

	_, err = chunker.Commit(context.Background(), archiveDir, srcPath)
	require.Error(t, err)
}

func TestCommitMissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := chunker.Commit(context.Background(), filepath.Join(dir, "archive"), filepath.Join(dir, "missing.bin"))
	require.Error(t, err)
}
