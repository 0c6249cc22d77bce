package hashx_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockframe/blockframe/pkg/hashx"
)

func TestHashBytesDeterministic(t *testing.T) {
	t.Parallel()

	a := hashx.HashBytes([]byte("blockframe"))
	b := hashx.HashBytes([]byte("blockframe"))

	require.Equal(t, a, b)
	require.True(t, hashx.IsValidHex(a, 64))
}

func TestHashBytesDiffers(t *testing.T) {
	t.Parallel()

	a := hashx.HashBytes([]byte("blockframe-a"))
	b := hashx.HashBytes([]byte("blockframe-b"))

	require.NotEqual(t, a, b)
}

func TestHashFileStreamingMatchesHashBytes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")

	data := make([]byte, 3*streamTestChunk)
	for i := range data {
		data[i] = byte(i)
	}

	require.NoError(t, os.WriteFile(path, data, 0o600))

	want := hashx.HashBytes(data)

	got, err := hashx.HashFileStreaming(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHashFileStreamingMissingFile(t *testing.T) {
	t.Parallel()

	_, err := hashx.HashFileStreaming(filepath.Join(t.TempDir(), "missing.bin"))
	require.Error(t, err)
}

const streamTestChunk = 1 << 18
