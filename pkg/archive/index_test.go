package archive_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockframe/blockframe/pkg/archive"
	"github.com/blockframe/blockframe/pkg/hashx"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/merkle"
)

func writeTestManifest(t *testing.T, archiveDir, name string) {
	t.Helper()

	contentHash := hashx.HashBytes([]byte(name + "-contents"))
	dir := archive.FileDir(archiveDir, name, contentHash)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	leafHash := hashx.HashBytes([]byte("segment-0"))

	m := &manifest.Manifest{
		Name:          name,
		ContentHash:   contentHash,
		TruncatedHash: archive.TruncatedHash(contentHash),
		Size:          9,
		Tier:          manifest.TierTiny,
		SegmentSize:   9,
		CreatedAt:     time.Unix(1700000000, 0).UTC(),
		ErasureCoding: manifest.ErasureCoding{Algorithm: "reed-solomon", DataShards: 1, ParityShards: 3},
		MerkleTree: manifest.MerkleView{
			Root:   merkle.FromHashes([]string{leafHash}).Root(),
			Leaves: map[string]string{"0": leafHash},
		},
	}

	require.NoError(t, m.WriteFile(archive.ManifestPath(dir)))
}

func TestRescanAndGet(t *testing.T) {
	t.Parallel()

	archiveDir := t.TempDir()
	writeTestManifest(t, archiveDir, "report.pdf")
	writeTestManifest(t, archiveDir, "notes.txt")

	idx := archive.NewIndex(archiveDir)
	require.NoError(t, idx.Rescan(context.Background()))

	entry, err := idx.Get(context.Background(), "report.pdf")
	require.NoError(t, err)
	require.Equal(t, "report.pdf", entry.Manifest.Name)

	list, err := idx.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	idx := archive.NewIndex(t.TempDir())
	require.NoError(t, idx.Rescan(context.Background()))

	_, err := idx.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestAddMakesEntryVisibleWithoutRescan(t *testing.T) {
	t.Parallel()

	archiveDir := t.TempDir()
	idx := archive.NewIndex(archiveDir)
	require.NoError(t, idx.Rescan(context.Background()))

	writeTestManifest(t, archiveDir, "late.bin")
	dir := archive.FileDir(archiveDir, "late.bin", hashx.HashBytes([]byte("late.bin-contents")))

	m, err := manifest.FromFile(archive.ManifestPath(dir))
	require.NoError(t, err)

	require.NoError(t, idx.Add(context.Background(), archive.Entry{Manifest: m, Dir: dir}))

	entry, err := idx.Get(context.Background(), "late.bin")
	require.NoError(t, err)
	require.Equal(t, dir, entry.Dir)
}
