// Package chunker implements the write path: tier selection, streaming
// segmentation, Reed-Solomon encoding, on-disk layout, and manifest
// emission for a newly committed file.
package chunker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blockframe/blockframe/pkg/archive"
	"github.com/blockframe/blockframe/pkg/erasure"
	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/hashx"
	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/merkle"
	"github.com/blockframe/blockframe/pkg/metrics"
)

const (
	dirMode         = 0o755
	fileMode        = 0o644
	otelPackageName = "github.com/blockframe/blockframe/pkg/chunker"
)

//nolint:gochecknoglobals
var tracer trace.Tracer

//nolint:gochecknoinits
func init() {
	tracer = otel.Tracer(otelPackageName)
}

// Commit ingests the file at filePath into the archive rooted at
// archiveDir: it chooses a tier, segments and erasure-codes the content,
// writes the resulting shards, and writes the manifest. The returned
// manifest is also flushed to disk before Commit returns.
func Commit(ctx context.Context, archiveDir, filePath string) (*manifest.Manifest, error) {
	log := zerolog.Ctx(ctx)

	ctx, span := tracer.Start(
		ctx,
		"chunker.Commit",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("file_path", filePath)),
	)
	defer span.End()

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("source file %q", filePath), err)
		}

		return nil, errs.Wrap(errs.PermanentIO, fmt.Sprintf("stating %q", filePath), err)
	}

	name := filepath.Base(filePath)
	size := info.Size()

	tier, segmentSize, err := archive.DetermineTier(size)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigError, "determining tier", err)
	}

	contentHash, err := hashx.HashFileStreaming(filePath)
	if err != nil {
		return nil, errs.Wrap(errs.PermanentIO, fmt.Sprintf("hashing %q", filePath), err)
	}

	fileDir := archive.FileDir(archiveDir, name, contentHash)

	if _, err := os.Stat(fileDir); err == nil {
		return nil, errs.Wrap(errs.AlreadyExists, fmt.Sprintf("archive directory %q", fileDir), nil)
	}

	if err := os.MkdirAll(fileDir, dirMode); err != nil {
		return nil, errs.Wrap(errs.PermanentIO, fmt.Sprintf("creating archive directory %q", fileDir), err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, errs.Wrap(errs.PermanentIO, fmt.Sprintf("reopening %q", filePath), err)
	}
	defer f.Close()

	var view manifest.MerkleView

	switch tier {
	case manifest.TierTiny:
		view, err = commitTiny(f, fileDir, size)
	case manifest.TierSegmented:
		view, err = commitSegmented(f, fileDir, size, segmentSize)
	case manifest.TierBlocked:
		view, err = commitBlocked(f, fileDir, size, segmentSize)
	default:
		err = errs.Wrap(errs.ConfigError, fmt.Sprintf("unknown tier %d", tier), nil)
	}

	if err != nil {
		log.Error().Err(err).Str("component", "chunker").Str("file_dir", fileDir).Msg("commit failed after directory creation")

		return nil, err
	}

	m := &manifest.Manifest{
		Name:          name,
		ContentHash:   contentHash,
		TruncatedHash: archive.TruncatedHash(contentHash),
		Size:          size,
		Tier:          tier,
		SegmentSize:   segmentSize,
		CreatedAt:     time.Now().UTC(),
		ErasureCoding: manifest.ErasureCoding{Algorithm: "reed-solomon", DataShards: dataShardsForTier(tier), ParityShards: erasure.ParityShards},
		MerkleTree:    view,
	}

	if err := m.WriteFile(archive.ManifestPath(fileDir)); err != nil {
		return nil, err
	}

	log.Info().Str("component", "chunker").Str("name", name).Int("tier", int(tier)).Int64("size", size).Msg("committed file")

	metrics.RecordCommit(ctx, tierLabel(tier))

	return m, nil
}

func tierLabel(tier manifest.Tier) string {
	switch tier {
	case manifest.TierTiny:
		return "tier1"
	case manifest.TierSegmented:
		return "tier2"
	case manifest.TierBlocked:
		return "tier3"
	default:
		return "unknown"
	}
}

func dataShardsForTier(tier manifest.Tier) int {
	if tier == manifest.TierBlocked {
		return archive.SegmentsPerBlock
	}

	return 1
}

// commitTiny encodes the whole file as a single RS(1,3) protection unit.
func commitTiny(f *os.File, fileDir string, size int64) (manifest.MerkleView, error) {
	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return manifest.MerkleView{}, errs.Wrap(errs.PermanentIO, "reading tier 1 file contents", err)
	}

	if err := writeFile(archive.DataPath(fileDir), data); err != nil {
		return manifest.MerkleView{}, err
	}

	padded := erasure.PadToAlignment(data)

	parity, err := erasure.Encode([][]byte{padded}, erasure.ParityShards)
	if err != nil {
		return manifest.MerkleView{}, err
	}

	for i, p := range parity {
		if err := writeFile(archive.ParityPathT1(fileDir, i), p); err != nil {
			return manifest.MerkleView{}, err
		}
	}

	leafHash := hashx.HashBytes(data)

	return manifest.MerkleView{
		Root:   merkle.FromHashes([]string{leafHash}).Root(),
		Leaves: map[string]string{"0": leafHash},
	}, nil
}

// commitSegmented streams the file in segmentSize buffers, RS(1,3)
// encoding each segment independently.
func commitSegmented(f *os.File, fileDir string, size, segmentSize int64) (manifest.MerkleView, error) {
	numSegments := segmentCount(size, segmentSize)
	leaves := make(map[string]string, numSegments)
	hashes := make([]string, 0, numSegments)

	buf := make([]byte, segmentSize)

	for i := 0; i < numSegments; i++ {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return manifest.MerkleView{}, errs.Wrap(errs.PermanentIO, "reading segment", err)
		}

		segment := buf[:n]

		if err := writeFile(archive.SegmentChunkPath(fileDir, i), segment); err != nil {
			return manifest.MerkleView{}, err
		}

		padded := erasure.PadToAlignment(segment)

		parity, err := erasure.Encode([][]byte{padded}, erasure.ParityShards)
		if err != nil {
			return manifest.MerkleView{}, err
		}

		for p, shard := range parity {
			if err := writeFile(archive.SegmentParityPathT2(fileDir, i, p), shard); err != nil {
				return manifest.MerkleView{}, err
			}
		}

		h := hashx.HashBytes(segment)
		leaves[strconv.Itoa(i)] = h
		hashes = append(hashes, h)
	}

	return manifest.MerkleView{
		Root:   merkle.FromHashes(hashes).Root(),
		Leaves: leaves,
	}, nil
}

// commitBlocked streams the file in segmentSize buffers, grouping every
// archive.SegmentsPerBlock segments under one RS(30,3) block.
func commitBlocked(f *os.File, fileDir string, size, segmentSize int64) (manifest.MerkleView, error) {
	numSegments := segmentCount(size, segmentSize)
	leaves := make(map[string]string, numSegments)
	allHashes := make([]string, 0, numSegments)
	blocks := make(map[string]manifest.BlockInfo)

	buf := make([]byte, segmentSize)

	segIndex := 0

	for blockIdx := 0; segIndex < numSegments; blockIdx++ {
		blockSegments := archive.SegmentsPerBlock
		if remaining := numSegments - segIndex; remaining < blockSegments {
			blockSegments = remaining
		}

		dataShards := make([][]byte, blockSegments)
		segmentHashes := make([]string, blockSegments)

		for j := 0; j < blockSegments; j++ {
			n, err := io.ReadFull(f, buf)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return manifest.MerkleView{}, errs.Wrap(errs.PermanentIO, "reading segment", err)
			}

			segment := buf[:n]

			if err := writeFile(archive.SegmentChunkPath(fileDir, segIndex+j), segment); err != nil {
				return manifest.MerkleView{}, err
			}

			h := hashx.HashBytes(segment)
			segmentHashes[j] = h
			leaves[strconv.Itoa(segIndex+j)] = h
			allHashes = append(allHashes, h)

			dataShards[j] = erasure.PadToAlignment(padToSegmentSize(segment, segmentSize))
		}

		parity, err := erasure.Encode(dataShards, erasure.ParityShards)
		if err != nil {
			return manifest.MerkleView{}, err
		}

		parityHashes := make([]string, len(parity))

		for p, shard := range parity {
			if err := writeFile(archive.BlockParityPathT3(fileDir, blockIdx, p), shard); err != nil {
				return manifest.MerkleView{}, err
			}

			parityHashes[p] = hashx.HashBytes(shard)
		}

		blockRoot := merkle.FromHashes(append(append([]string(nil), segmentHashes...), parityHashes...)).Root()

		blocks[strconv.Itoa(blockIdx)] = manifest.BlockInfo{
			BlockRoot:     blockRoot,
			SegmentHashes: segmentHashes,
			ParityHashes:  parityHashes,
		}

		segIndex += blockSegments
	}

	return manifest.MerkleView{
		Root:   merkle.FromHashes(allHashes).Root(),
		Leaves: leaves,
		Blocks: blocks,
	}, nil
}

// padToSegmentSize zero-extends segment to segmentSize so every data
// shard in a block shares one uniform length before RS encoding; the
// on-disk chunk file keeps the unpadded bytes.
func padToSegmentSize(segment []byte, segmentSize int64) []byte {
	if int64(len(segment)) >= segmentSize {
		return segment
	}

	padded := make([]byte, segmentSize)
	copy(padded, segment)

	return padded
}

func segmentCount(size, segmentSize int64) int {
	if segmentSize <= 0 {
		return 0
	}

	return int((size + segmentSize - 1) / segmentSize)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return errs.Wrap(errs.PermanentIO, fmt.Sprintf("creating directory for %q", path), err)
	}

	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+"-*")
	if err != nil {
		return errs.Wrap(errs.PermanentIO, "creating temporary file", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return errs.Wrap(errs.PermanentIO, fmt.Sprintf("writing %q", path), err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return errs.Wrap(errs.PermanentIO, "closing temporary file", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(errs.PermanentIO, fmt.Sprintf("renaming into place %q", path), err)
	}

	return os.Chmod(path, fileMode)
}
