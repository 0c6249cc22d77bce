// Package filestore implements on-the-fly segment recovery and batch
// health checking over committed archive entries. The recovery functions
// in this file operate purely in memory on caller-supplied shards; the
// mount read path calls them (the batch repair operation reconstructs
// through erasure.Reconstruct instead), and they never touch a manifest
// or decide what to persist.
package filestore

import (
	"fmt"

	"github.com/blockframe/blockframe/pkg/erasure"
	"github.com/blockframe/blockframe/pkg/errs"
)

// RecoverSegmentRS13 reconstructs a single missing or corrupt data
// segment from its three RS(1,3) parity shards. expectedSize, when
// non-negative, truncates the recovered bytes to remove the zero
// padding added at encode time (used for Tier 1's single padded unit).
func RecoverSegmentRS13(parityShards [3][]byte, expectedSize int) ([]byte, error) {
	shardSize := len(parityShards[0])

	for _, p := range parityShards {
		if len(p) != shardSize {
			return nil, errs.Wrap(errs.ConfigError, "all parity shards must be the same size", nil)
		}
	}

	shards := make([][]byte, 1+erasure.ParityShards)
	shards[1] = parityShards[0]
	shards[2] = parityShards[1]
	shards[3] = parityShards[2]

	if err := erasure.Reconstruct(shards, 1, erasure.ParityShards); err != nil {
		return nil, errs.Wrap(errs.RecoveryFailed, "recovering rs(1,3) segment", err)
	}

	recovered := shards[0]
	if expectedSize >= 0 && len(recovered) > expectedSize {
		recovered = recovered[:expectedSize]
	}

	return recovered, nil
}

// RecoverSegmentRS30_3 reconstructs one segment of a Tier 3 block from
// whatever segments in the block are still valid plus the block's three
// parity shards. validSegments has exactly 30 entries indexed by
// in-block position, nil where a segment is missing or failed
// verification; at most three may be nil.
// expectedSize, when non-negative, truncates the recovered segment to
// remove the zero padding added at encode time.
func RecoverSegmentRS30_3(validSegments [30][]byte, blockParity [3][]byte, targetIndex, expectedSize int) ([]byte, error) {
	if targetIndex < 0 || targetIndex >= 30 {
		return nil, errs.Wrap(errs.ConfigError, "target index must be 0-29", nil)
	}

	missing := 0

	for _, s := range validSegments {
		if s == nil {
			missing++
		}
	}

	if missing > erasure.ParityShards {
		return nil, errs.Wrap(errs.RecoveryFailed, fmt.Sprintf("too many missing segments: %d (max %d for rs(30,3))", missing, erasure.ParityShards), nil)
	}

	shards := make([][]byte, 30+erasure.ParityShards)

	for i, s := range validSegments {
		shards[i] = s
	}

	shards[30] = blockParity[0]
	shards[31] = blockParity[1]
	shards[32] = blockParity[2]

	if err := erasure.Reconstruct(shards, 30, erasure.ParityShards); err != nil {
		return nil, errs.Wrap(errs.RecoveryFailed, "recovering rs(30,3) segment", err)
	}

	recovered := shards[targetIndex]
	if expectedSize >= 0 && len(recovered) > expectedSize {
		recovered = recovered[:expectedSize]
	}

	return recovered, nil
}
