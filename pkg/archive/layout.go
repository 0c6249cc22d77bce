// Package archive owns the on-disk directory layout for committed files,
// the tier/segment-size decision made at commit time, and an
// in-memory index of known files that is rebuilt by directory rescans.
package archive

import (
	"path/filepath"
	"strconv"

	"github.com/blockframe/blockframe/pkg/manifest"
)

// AliasLen is the number of leading hex characters of a content hash used
// as the short directory alias.
const AliasLen = 10

// TruncatedHash returns the directory alias for a full content hash.
func TruncatedHash(contentHash string) string {
	if len(contentHash) <= AliasLen {
		return contentHash
	}

	return contentHash[:AliasLen]
}

// DirName returns the archive directory name for a committed file.
func DirName(name, contentHash string) string {
	return name + "_" + TruncatedHash(contentHash)
}

// FileDir returns the directory under archiveDir that a committed file
// lives in.
func FileDir(archiveDir, name, contentHash string) string {
	return filepath.Join(archiveDir, DirName(name, contentHash))
}

// ManifestPath returns the manifest path inside a file's archive
// directory.
func ManifestPath(fileDir string) string {
	return filepath.Join(fileDir, manifest.FileName)
}

// DataPath returns the Tier 1 whole-file data shard path.
func DataPath(fileDir string) string {
	return filepath.Join(fileDir, "data.dat")
}

// ParityPathT1 returns the Tier 1 parity shard path for parityIdx in
// {0,1,2}.
func ParityPathT1(fileDir string, parityIdx int) string {
	return filepath.Join(fileDir, "parity_"+strconv.Itoa(parityIdx)+".dat")
}

// SegmentDir returns the directory for segment segIdx (Tier 2 and Tier
// 3 share this layout for their data shards).
func SegmentDir(fileDir string, segIdx int) string {
	return filepath.Join(fileDir, "segments", "segment_"+strconv.Itoa(segIdx))
}

// SegmentChunkPath returns the single data-shard path for segment
// segIdx.
func SegmentChunkPath(fileDir string, segIdx int) string {
	return filepath.Join(SegmentDir(fileDir, segIdx), "chunks", "chunk_0.dat")
}

// SegmentParityPathT2 returns the Tier 2 per-segment parity shard path.
func SegmentParityPathT2(fileDir string, segIdx, parityIdx int) string {
	return filepath.Join(SegmentDir(fileDir, segIdx), "parity", "parity_"+strconv.Itoa(parityIdx)+".dat")
}

// BlockDir returns the directory for Tier 3 block blockIdx.
func BlockDir(fileDir string, blockIdx int) string {
	return filepath.Join(fileDir, "blocks", "block_"+strconv.Itoa(blockIdx))
}

// BlockParityPathT3 returns the Tier 3 block-level parity shard path.
func BlockParityPathT3(fileDir string, blockIdx, parityIdx int) string {
	return filepath.Join(BlockDir(fileDir, blockIdx), "parity", "parity_"+strconv.Itoa(parityIdx)+".dat")
}
