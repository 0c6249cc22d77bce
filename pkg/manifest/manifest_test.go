package manifest_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockframe/blockframe/pkg/hashx"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/merkle"
)

func segmentedManifest(chunks [][]byte) *manifest.Manifest {
	hashes := make([]string, len(chunks))
	leaves := make(map[string]string, len(chunks))

	for i, c := range chunks {
		h := hashx.HashBytes(c)
		hashes[i] = h
		leaves[itoa(i)] = h
	}

	root := merkle.FromHashes(hashes).Root()

	return &manifest.Manifest{
		Name:          "report.pdf",
		ContentHash:   hashx.HashBytes([]byte("whole-file-contents")),
		TruncatedHash: "abc0123456",
		Size:          4096,
		Tier:          manifest.TierSegmented,
		SegmentSize:   1 << 20,
		CreatedAt:     time.Unix(1700000000, 0).UTC(),
		ErasureCoding: manifest.ErasureCoding{Algorithm: "reed-solomon", DataShards: 1, ParityShards: 3},
		MerkleTree:    manifest.MerkleView{Root: root, Leaves: leaves},
	}
}

func itoa(i int) string {
	return [...]string{"0", "1", "2"}[i]
}

func TestWriteFileThenFromFileRoundTrip(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("seg-0"), []byte("seg-1"), []byte("seg-2")}
	m := segmentedManifest(chunks)

	path := filepath.Join(t.TempDir(), manifest.FileName)
	require.NoError(t, m.WriteFile(path))

	loaded, err := manifest.FromFile(path)
	require.NoError(t, err)
	require.Equal(t, m.ContentHash, loaded.ContentHash)
	require.Equal(t, m.MerkleTree.Root, loaded.MerkleTree.Root)
	require.NoError(t, loaded.Validate())
}

func TestFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := manifest.FromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestValidateRejectsBadRoot(t *testing.T) {
	t.Parallel()

	m := segmentedManifest([][]byte{[]byte("only")})
	m.MerkleTree.Root = "not-hex"

	require.Error(t, m.Validate())
}

func TestValidateRejectsNonContiguousLeaves(t *testing.T) {
	t.Parallel()

	m := segmentedManifest([][]byte{[]byte("a"), []byte("b")})
	delete(m.MerkleTree.Leaves, "0")
	m.MerkleTree.Leaves["5"] = hashx.HashBytes([]byte("a"))

	require.Error(t, m.Validate())
}

func TestValidateRequiresBlocksForTier3(t *testing.T) {
	t.Parallel()

	m := segmentedManifest([][]byte{[]byte("a")})
	m.Tier = manifest.TierBlocked

	require.Error(t, m.Validate())
}

func TestVerifyAgainstChunksSucceeds(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("seg-0"), []byte("seg-1"), []byte("seg-2")}
	m := segmentedManifest(chunks)

	ok, err := m.VerifyAgainstChunks(chunks)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyAgainstChunksDetectsTamper(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("seg-0"), []byte("seg-1"), []byte("seg-2")}
	m := segmentedManifest(chunks)

	tampered := [][]byte{[]byte("seg-0"), []byte("tampered"), []byte("seg-2")}

	ok, err := m.VerifyAgainstChunks(tampered)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyAgainstChunksLengthMismatch(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("seg-0"), []byte("seg-1"), []byte("seg-2")}
	m := segmentedManifest(chunks)

	ok, err := m.VerifyAgainstChunks(chunks[:2])
	require.NoError(t, err)
	require.False(t, ok)
}
