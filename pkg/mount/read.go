package mount

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/blockframe/blockframe/pkg/archive"
	"github.com/blockframe/blockframe/pkg/erasure"
	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/filestore"
	"github.com/blockframe/blockframe/pkg/hashx"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/metrics"
	"github.com/blockframe/blockframe/pkg/segcache"
	"github.com/blockframe/blockframe/pkg/source"
)

// readRange returns up to size bytes of name's content starting at
// offset, clamped to the file's actual length. A nil/empty result with
// a nil error means the read starts at or past EOF.
func readRange(ctx context.Context, src source.SegmentSource, cache *segcache.Cache, name string, m *manifest.Manifest, offset int64, size int) ([]byte, error) {
	if offset >= m.Size {
		return nil, nil
	}

	if offset+int64(size) > m.Size {
		size = int(m.Size - offset)
	}

	if m.Tier == manifest.TierTiny {
		data, err := readTier1(ctx, src, cache, name, m)
		if err != nil {
			return nil, err
		}

		end := int(offset) + size
		if end > len(data) {
			end = len(data)
		}

		return data[offset:end], nil
	}

	result := make([]byte, 0, size)
	remaining := size
	current := offset

	for remaining > 0 {
		segIndex := int(current / m.SegmentSize)
		offsetInSegment := int(current % m.SegmentSize)

		segment, err := readSegment(ctx, src, cache, name, m, segIndex)
		if err != nil {
			return nil, err
		}

		if offsetInSegment >= len(segment) {
			break
		}

		available := len(segment) - offsetInSegment
		toRead := remaining
		if toRead > available {
			toRead = available
		}

		result = append(result, segment[offsetInSegment:offsetInSegment+toRead]...)
		remaining -= toRead
		current += int64(toRead)
	}

	return result, nil
}

// readTier1 returns the whole file, verifying against the manifest's
// single leaf and recovering through parity on mismatch.
func readTier1(ctx context.Context, src source.SegmentSource, cache *segcache.Cache, name string, m *manifest.Manifest) ([]byte, error) {
	key := segcache.Key(name, -1, 0)

	if data, ok := cache.Get(key); ok {
		return data, nil
	}

	data, err := src.ReadData(ctx, name)
	if err != nil {
		return nil, err
	}

	expected := m.MerkleTree.Leaves["0"]

	if expected != "" && hashx.HashBytes(data) != expected {
		zerolog.Ctx(ctx).Warn().Str("name", name).Msg("tier 1 data corrupted, recovering from parity")

		recovered, err := recoverTier1(ctx, src, name, int(m.Size))
		if err != nil {
			return nil, err
		}

		if hashx.HashBytes(recovered) != expected {
			return nil, errs.Wrap(errs.IntegrityError, fmt.Sprintf("recovered data for %q still fails verification", name), nil)
		}

		data = recovered

		writeBack(ctx, src, name, 0, data)
	}

	cache.Put(key, data)

	return data, nil
}

// readSegment returns one segment (Tier 2 or Tier 3, by file-wide
// segIndex), verifying and recovering on mismatch.
func readSegment(ctx context.Context, src source.SegmentSource, cache *segcache.Cache, name string, m *manifest.Manifest, segIndex int) ([]byte, error) {
	if m.Tier == manifest.TierBlocked {
		return readBlockedSegment(ctx, src, cache, name, m, segIndex)
	}

	key := segcache.Key(name, -1, segIndex)

	if data, ok := cache.Get(key); ok {
		return data, nil
	}

	data, err := src.ReadSegment(ctx, name, segIndex)
	if err != nil {
		return nil, err
	}

	expected := m.MerkleTree.Leaves[strconv.Itoa(segIndex)]

	if expected != "" && hashx.HashBytes(data) != expected {
		zerolog.Ctx(ctx).Warn().Str("name", name).Int("segment", segIndex).Msg("segment corrupted, recovering from parity")

		recovered, err := recoverTier2(ctx, src, name, segIndex, segmentByteLength(m, segIndex))
		if err != nil {
			return nil, err
		}

		if hashx.HashBytes(recovered) != expected {
			return nil, errs.Wrap(errs.IntegrityError, fmt.Sprintf("recovered segment %d of %q still fails verification", segIndex, name), nil)
		}

		data = recovered

		writeBack(ctx, src, name, segIndex, data)
	}

	cache.Put(key, data)

	return data, nil
}

func readBlockedSegment(ctx context.Context, src source.SegmentSource, cache *segcache.Cache, name string, m *manifest.Manifest, segIndex int) ([]byte, error) {
	blockID := segIndex / archive.SegmentsPerBlock
	segInBlock := segIndex % archive.SegmentsPerBlock

	key := segcache.Key(name, blockID, segInBlock)

	if data, ok := cache.Get(key); ok {
		return data, nil
	}

	block, ok := m.MerkleTree.Blocks[strconv.Itoa(blockID)]
	if !ok {
		return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("block %d of %q", blockID, name), nil)
	}

	data, err := src.ReadBlockSegment(ctx, name, blockID, segIndex)
	if err != nil {
		return nil, err
	}

	var expected string
	if segInBlock < len(block.SegmentHashes) {
		expected = block.SegmentHashes[segInBlock]
	}

	if expected != "" && hashx.HashBytes(data) != expected {
		zerolog.Ctx(ctx).Warn().Str("name", name).Int("block", blockID).Int("segment", segInBlock).Msg("block segment corrupted, recovering")

		recovered, err := recoverTier3(ctx, src, name, blockID, segIndex, segInBlock, len(block.SegmentHashes), segmentByteLength(m, segIndex))
		if err != nil {
			return nil, err
		}

		if hashx.HashBytes(recovered) != expected {
			return nil, errs.Wrap(errs.IntegrityError, fmt.Sprintf("recovered block %d segment %d of %q still fails verification", blockID, segInBlock, name), nil)
		}

		data = recovered

		writeBack(ctx, src, name, segIndex, data)
	}

	cache.Put(key, data)

	return data, nil
}

func recoverTier1(ctx context.Context, src source.SegmentSource, name string, expectedSize int) ([]byte, error) {
	metrics.RecordReconstruction(ctx, "tier1")

	var parity [3][]byte

	for i := range parity {
		p, err := src.ReadParity(ctx, name, 0, i, nil)
		if err != nil {
			return nil, err
		}

		parity[i] = p
	}

	return filestore.RecoverSegmentRS13(parity, expectedSize)
}

func recoverTier2(ctx context.Context, src source.SegmentSource, name string, segIndex, expectedSize int) ([]byte, error) {
	metrics.RecordReconstruction(ctx, "tier2")

	var parity [3][]byte

	for i := range parity {
		p, err := src.ReadParity(ctx, name, segIndex, i, nil)
		if err != nil {
			return nil, err
		}

		parity[i] = p
	}

	return filestore.RecoverSegmentRS13(parity, expectedSize)
}

// segmentByteLength returns the expected unpadded length of file-wide
// segment i: segments are zero-padded to the erasure shard alignment
// before encoding, so a reconstructed segment must be truncated back to
// its true length before it can match the manifest's leaf hash.
func segmentByteLength(m *manifest.Manifest, i int) int {
	if m.SegmentSize <= 0 {
		return int(m.Size)
	}

	start := int64(i) * m.SegmentSize
	remaining := m.Size - start

	if remaining > m.SegmentSize {
		return int(m.SegmentSize)
	}

	if remaining < 0 {
		return 0
	}

	return int(remaining)
}

// recoverTier3 reconstructs the segment at (blockID, segInBlock).
// Full blocks (30 segments) use the fixed RS(30,3) helper; the ragged
// final block uses a generically-sized reconstruction instead, since it
// was encoded with fewer than 30 data shards.
func recoverTier3(ctx context.Context, src source.SegmentSource, name string, blockID, failedGlobalIndex, segInBlock, blockSegments, expectedSize int) ([]byte, error) {
	metrics.RecordReconstruction(ctx, "tier3")

	var parity [3][]byte

	for i := range parity {
		p, err := src.ReadParity(ctx, name, segInBlock, i, &blockID)
		if err != nil {
			return nil, err
		}

		parity[i] = p
	}

	firstGlobalIndex := failedGlobalIndex - segInBlock

	if blockSegments == archive.SegmentsPerBlock {
		var segments [30][]byte

		for j := 0; j < archive.SegmentsPerBlock; j++ {
			if j == segInBlock {
				continue
			}

			data, err := src.ReadBlockSegment(ctx, name, blockID, firstGlobalIndex+j)
			if err == nil {
				padded := make([]byte, len(parity[0]))
				copy(padded, data)
				segments[j] = padded
			}
		}

		return filestore.RecoverSegmentRS30_3(segments, parity, segInBlock, expectedSize)
	}

	shards := make([][]byte, blockSegments+erasure.ParityShards)

	for j := 0; j < blockSegments; j++ {
		if j == segInBlock {
			continue
		}

		data, err := src.ReadBlockSegment(ctx, name, blockID, firstGlobalIndex+j)
		if err == nil {
			padded := make([]byte, len(parity[0]))
			copy(padded, data)
			shards[j] = padded
		}
	}

	copy(shards[blockSegments:], parity[:])

	if err := erasure.Reconstruct(shards, blockSegments, erasure.ParityShards); err != nil {
		return nil, errs.Wrap(errs.RecoveryFailed, "recovering ragged rs block segment", err)
	}

	recovered := shards[segInBlock]
	if expectedSize >= 0 && len(recovered) > expectedSize {
		recovered = recovered[:expectedSize]
	}

	return recovered, nil
}

// writeBack persists a recovered segment back to durable storage when
// the source supports it (local archives only); it never fails the
// read that triggered it.
func writeBack(ctx context.Context, src source.SegmentSource, name string, segIndex int, data []byte) {
	wb, ok := src.(source.WriteBacker)
	if !ok {
		return
	}

	if err := wb.WriteSegment(ctx, name, segIndex, data); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("name", name).Int("segment", segIndex).Msg("failed to write back recovered segment")
	}
}

