package filestore

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/blockframe/blockframe/pkg/archive"
	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/manifest"
)

// File pairs a loaded manifest with the directory it was read from.
type File struct {
	Manifest *manifest.Manifest
	Dir      string
}

// Find locates the archive directory whose name prefix equals the
// requested display name and loads its manifest.
func Find(archiveDir, name string) (File, error) {
	dirents, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, errs.Wrap(errs.NotFound, fmt.Sprintf("file %q", name), nil)
		}

		return File{}, errs.Wrap(errs.PermanentIO, "reading archive directory", err)
	}

	prefix := name + "_"

	for _, d := range dirents {
		if !d.IsDir() || !strings.HasPrefix(d.Name(), prefix) {
			continue
		}

		if len(d.Name())-len(prefix) != archive.AliasLen {
			continue
		}

		dir := archiveDir + string(os.PathSeparator) + d.Name()

		m, err := manifest.FromFile(archive.ManifestPath(dir))
		if err != nil {
			return File{}, err
		}

		if err := m.Validate(); err != nil {
			return File{}, err
		}

		return File{Manifest: m, Dir: dir}, nil
	}

	return File{}, errs.Wrap(errs.NotFound, fmt.Sprintf("file %q", name), nil)
}

// GetAll enumerates every archive directory and loads its manifest,
// skipping (without failing) directories whose manifest cannot be read
// or parsed. Manifests are not validated here, and skipped directories
// appear neither in the result nor in BatchHealthCheck's report.
func GetAll(archiveDir string) ([]File, error) {
	dirents, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errs.Wrap(errs.PermanentIO, "reading archive directory", err)
	}

	files := make([]File, 0, len(dirents))

	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}

		dir := archiveDir + string(os.PathSeparator) + d.Name()

		m, err := manifest.FromFile(archive.ManifestPath(dir))
		if err != nil {
			continue
		}

		files = append(files, File{Manifest: m, Dir: dir})
	}

	return files, nil
}

// unit is one protection unit (a segment in Tier 1/2, a block in Tier
// 3) reduced to the paths and expected hashes health checking and
// repair need.
type unit struct {
	index int
	tier  manifest.Tier

	dataPaths  []string
	dataHashes []string

	parityPaths []string
	// parityHashes is nil for Tier 1/2, where the manifest does not
	// carry a reference hash for parity shards.
	parityHashes []string

	// dataLengths is the expected on-disk (unpadded) byte length of each
	// data shard, used to truncate a reconstructed shard back to its
	// original size before re-hashing and writing it back.
	dataLengths []int
}

func unitsForFile(f File) []unit {
	m := f.Manifest

	switch m.Tier {
	case manifest.TierTiny:
		return []unit{{
			index:       0,
			tier:        manifest.TierTiny,
			dataPaths:   []string{archive.DataPath(f.Dir)},
			dataHashes:  []string{m.MerkleTree.Leaves["0"]},
			parityPaths: parityPathsT1(f.Dir),
			dataLengths: []int{int(m.Size)},
		}}
	case manifest.TierSegmented:
		units := make([]unit, len(m.MerkleTree.Leaves))
		for i := range units {
			units[i] = unit{
				index:       i,
				tier:        manifest.TierSegmented,
				dataPaths:   []string{archive.SegmentChunkPath(f.Dir, i)},
				dataHashes:  []string{m.MerkleTree.Leaves[strconv.Itoa(i)]},
				parityPaths: parityPathsT2(f.Dir, i),
				dataLengths: []int{segmentByteLength(m, i)},
			}
		}

		return units
	case manifest.TierBlocked:
		units := make([]unit, 0, len(m.MerkleTree.Blocks))
		segIndex := 0

		for b := 0; b < len(m.MerkleTree.Blocks); b++ {
			block := m.MerkleTree.Blocks[strconv.Itoa(b)]

			dataPaths := make([]string, len(block.SegmentHashes))
			dataLengths := make([]int, len(block.SegmentHashes))

			for j := range dataPaths {
				dataPaths[j] = archive.SegmentChunkPath(f.Dir, segIndex+j)
				dataLengths[j] = segmentByteLength(m, segIndex+j)
			}

			units = append(units, unit{
				index:        b,
				tier:         manifest.TierBlocked,
				dataPaths:    dataPaths,
				dataHashes:   block.SegmentHashes,
				parityPaths:  parityPathsT3(f.Dir, b),
				parityHashes: block.ParityHashes,
				dataLengths:  dataLengths,
			})

			segIndex += len(block.SegmentHashes)
		}

		return units
	default:
		return nil
	}
}

// segmentByteLength returns the expected unpadded length of segment i,
// accounting for the file's final segment being shorter than
// SegmentSize.
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

func parityPathsT1(dir string) []string {
	return []string{archive.ParityPathT1(dir, 0), archive.ParityPathT1(dir, 1), archive.ParityPathT1(dir, 2)}
}

func parityPathsT2(dir string, seg int) []string {
	return []string{
		archive.SegmentParityPathT2(dir, seg, 0),
		archive.SegmentParityPathT2(dir, seg, 1),
		archive.SegmentParityPathT2(dir, seg, 2),
	}
}

func parityPathsT3(dir string, block int) []string {
	return []string{
		archive.BlockParityPathT3(dir, block, 0),
		archive.BlockParityPathT3(dir, block, 1),
		archive.BlockParityPathT3(dir, block, 2),
	}
}
