package erasure_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockframe/blockframe/pkg/erasure"
)

func TestPadToAlignmentRoundsUp(t *testing.T) {
	t.Parallel()

	require.Len(t, erasure.PadToAlignment([]byte("x")), erasure.ShardAlignment)
	require.Len(t, erasure.PadToAlignment(make([]byte, erasure.ShardAlignment)), erasure.ShardAlignment)
	require.Len(t, erasure.PadToAlignment(make([]byte, erasure.ShardAlignment+1)), 2*erasure.ShardAlignment)
	require.Len(t, erasure.PadToAlignment(nil), erasure.ShardAlignment)
}

func TestEncodeReconstructSingleDataShard(t *testing.T) {
	t.Parallel()

	data := erasure.PadToAlignment([]byte("segment payload"))

	parity, err := erasure.Encode([][]byte{data}, erasure.ParityShards)
	require.NoError(t, err)
	require.Len(t, parity, erasure.ParityShards)

	shards := make([][]byte, 1+erasure.ParityShards)
	shards[0] = nil // data shard missing
	copy(shards[1:], parity)

	require.NoError(t, erasure.Reconstruct(shards, 1, erasure.ParityShards))
	require.True(t, bytes.Equal(shards[0], data))
}

func TestEncodeReconstructMultiDataShard(t *testing.T) {
	t.Parallel()

	segments := [][]byte{
		erasure.PadToAlignment([]byte("segment-0")),
		erasure.PadToAlignment([]byte("segment-1")),
		erasure.PadToAlignment([]byte("segment-2")),
		erasure.PadToAlignment([]byte("segment-3")),
	}

	parity, err := erasure.Encode(segments, erasure.ParityShards)
	require.NoError(t, err)

	shards := make([][]byte, len(segments)+erasure.ParityShards)
	copy(shards, segments)
	copy(shards[len(segments):], parity)

	// Drop one data shard, reconstruction must still succeed.
	shards[1] = nil

	require.NoError(t, erasure.Reconstruct(shards, len(segments), erasure.ParityShards))
	require.True(t, bytes.Equal(shards[1], segments[1]))
}

func TestReconstructFailsWithTooManyMissing(t *testing.T) {
	t.Parallel()

	segments := [][]byte{
		erasure.PadToAlignment([]byte("segment-0")),
		erasure.PadToAlignment([]byte("segment-1")),
	}

	parity, err := erasure.Encode(segments, erasure.ParityShards)
	require.NoError(t, err)

	shards := make([][]byte, len(segments)+erasure.ParityShards)
	copy(shards, segments)
	copy(shards[len(segments):], parity)

	shards[0] = nil
	shards[1] = nil
	shards[2] = nil
	shards[3] = nil

	require.Error(t, erasure.Reconstruct(shards, len(segments), erasure.ParityShards))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	t.Parallel()

	data := erasure.PadToAlignment([]byte("segment payload"))

	parity, err := erasure.Encode([][]byte{data}, erasure.ParityShards)
	require.NoError(t, err)

	shards := append([][]byte{data}, parity...)

	ok, err := erasure.Verify(shards, 1, erasure.ParityShards)
	require.NoError(t, err)
	require.True(t, ok)

	shards[0][0] ^= 0xFF

	ok, err = erasure.Verify(shards, 1, erasure.ParityShards)
	require.NoError(t, err)
	require.False(t, ok)
}
