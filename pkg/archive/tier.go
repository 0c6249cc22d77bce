package archive

import (
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/blockframe/blockframe/pkg/manifest"
)

// MinSegmentSize is the lower bound below which a file is stored as a
// single Tier 1 unit rather than being segmented.
const MinSegmentSize = 512 * 1024

// SegmentsPerBlock is the fixed number of segments grouped under one
// Tier 3 block-level parity set.
const SegmentsPerBlock = 30

const (
	memoryThreshold4GB  = 4_000_000_000
	memoryThreshold16GB = 16_000_000_000

	segmentSizeLowMemory    = 1 * 1024 * 1024
	segmentSizeMediumMemory = 8 * 1024 * 1024
	segmentSizeHighMemory   = 32 * 1024 * 1024
)

// availableMemory reports host available memory in bytes; it is
// overridden in tests to avoid depending on the machine actually running
// the test.
var availableMemory = func() (uint64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}

	return stat.Available, nil
}

// segmentSizeForMemory maps host available memory to the Tier 2/3
// segment size per §3.
func segmentSizeForMemory(available uint64) int64 {
	switch {
	case available < memoryThreshold4GB:
		return segmentSizeLowMemory
	case available < memoryThreshold16GB:
		return segmentSizeMediumMemory
	default:
		return segmentSizeHighMemory
	}
}

// DetermineTier chooses the storage tier and segment size for a file of
// the given size, per §3's tier rules. A Tier 1 file reports its own
// size as the segment size (it is stored as one segment); Tier 2/3
// segment size is derived from host available memory.
func DetermineTier(fileSize int64) (manifest.Tier, int64, error) {
	if fileSize < MinSegmentSize {
		return manifest.TierTiny, fileSize, nil
	}

	available, err := availableMemory()
	if err != nil {
		return 0, 0, err
	}

	segmentSize := segmentSizeForMemory(available)

	segmentCount := (fileSize + segmentSize - 1) / segmentSize
	if segmentCount > SegmentsPerBlock {
		return manifest.TierBlocked, segmentSize, nil
	}

	return manifest.TierSegmented, segmentSize, nil
}
