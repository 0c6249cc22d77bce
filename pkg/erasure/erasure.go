// Package erasure wraps klauspost/reedsolomon with the shard-sizing and
// padding conventions Blockframe uses to protect both individual segments
// (RS(1,3)) and Tier 3 blocks (RS(30,3)).
package erasure

import (
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/blockframe/blockframe/pkg/errs"
)

// ShardAlignment is the byte boundary every shard must be padded to
// before encoding; klauspost/reedsolomon requires uniform shard sizes,
// and Blockframe pads to a multiple of 64 so all tiers share one rule.
const ShardAlignment = 64

// ParityShards is the fixed number of recovery shards every protection
// unit carries, regardless of tier.
const ParityShards = 3

// PadToAlignment returns data padded with trailing zero bytes to the
// next multiple of ShardAlignment. Non-empty data that is already
// aligned is copied unchanged in length; the empty slice pads to one
// full ShardAlignment-byte shard.
func PadToAlignment(data []byte) []byte {
	size := paddedSize(len(data))

	padded := make([]byte, size)
	copy(padded, data)

	return padded
}

func paddedSize(n int) int {
	if n == 0 {
		return ShardAlignment
	}

	if rem := n % ShardAlignment; rem != 0 {
		return n + (ShardAlignment - rem)
	}

	return n
}

// Encode computes ParityShards recovery shards over dataShards. Every
// input shard must already be the same length (callers pad with
// PadToAlignment first); Encode does not mutate dataShards.
func Encode(dataShards [][]byte, parityShards int) ([][]byte, error) {
	if len(dataShards) == 0 {
		return nil, errs.Wrap(errs.ConfigError, "erasure encode requires at least one data shard", nil)
	}

	shardSize := len(dataShards[0])
	for _, s := range dataShards {
		if len(s) != shardSize {
			return nil, errs.Wrap(errs.ConfigError, "erasure encode requires uniform shard length", nil)
		}
	}

	enc, err := reedsolomon.New(len(dataShards), parityShards)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigError, "constructing reed-solomon encoder", err)
	}

	shards := make([][]byte, len(dataShards)+parityShards)
	copy(shards, dataShards)

	for i := len(dataShards); i < len(shards); i++ {
		shards[i] = make([]byte, shardSize)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, errs.Wrap(errs.RecoveryFailed, "encoding parity shards", err)
	}

	return shards[len(dataShards):], nil
}

// Reconstruct fills in the nil entries of shards (length
// dataShards+parityShards, data shards first) given enough surviving
// shards, returning errs.RecoveryFailed if reconstruction is impossible.
func Reconstruct(shards [][]byte, dataShardCount, parityShardCount int) error {
	if len(shards) != dataShardCount+parityShardCount {
		return errs.Wrap(errs.ConfigError, fmt.Sprintf("expected %d shards, got %d", dataShardCount+parityShardCount, len(shards)), nil)
	}

	enc, err := reedsolomon.New(dataShardCount, parityShardCount)
	if err != nil {
		return errs.Wrap(errs.ConfigError, "constructing reed-solomon encoder", err)
	}

	if err := enc.Reconstruct(shards); err != nil {
		return errs.Wrap(errs.RecoveryFailed, "reconstructing shards", err)
	}

	return nil
}

// Verify reports whether every parity shard in shards is consistent with
// its data shards. shards must be fully populated (no nils).
func Verify(shards [][]byte, dataShardCount, parityShardCount int) (bool, error) {
	enc, err := reedsolomon.New(dataShardCount, parityShardCount)
	if err != nil {
		return false, errs.Wrap(errs.ConfigError, "constructing reed-solomon encoder", err)
	}

	ok, err := enc.Verify(shards)
	if err != nil {
		return false, errs.Wrap(errs.RecoveryFailed, "verifying shards", err)
	}

	return ok, nil
}
