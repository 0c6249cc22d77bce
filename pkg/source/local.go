package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blockframe/blockframe/pkg/archive"
	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/filestore"
	"github.com/blockframe/blockframe/pkg/manifest"
)

// LocalSource reads directly from an on-disk archive directory.
type LocalSource struct {
	archiveDir string
}

var _ SegmentSource = (*LocalSource)(nil)

// NewLocalSource returns a SegmentSource backed by archiveDir.
func NewLocalSource(archiveDir string) *LocalSource {
	return &LocalSource{archiveDir: archiveDir}
}

func (s *LocalSource) ListFiles(_ context.Context) ([]string, error) {
	files, err := filestore.GetAll(s.archiveDir)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Manifest.Name
	}

	return names, nil
}

func (s *LocalSource) GetManifest(_ context.Context, name string) (*manifest.Manifest, error) {
	f, err := filestore.Find(s.archiveDir, name)
	if err != nil {
		return nil, err
	}

	return f.Manifest, nil
}

func (s *LocalSource) ReadSegment(_ context.Context, name string, segmentID int) ([]byte, error) {
	f, err := filestore.Find(s.archiveDir, name)
	if err != nil {
		return nil, err
	}

	return readFile(archive.SegmentChunkPath(f.Dir, segmentID))
}

func (s *LocalSource) ReadBlockSegment(_ context.Context, name string, _, segmentID int) ([]byte, error) {
	f, err := filestore.Find(s.archiveDir, name)
	if err != nil {
		return nil, err
	}

	// Data shards for Tier 3 share the same segments/segment_{i}/chunks
	// layout as Tier 2; segmentID is the file-wide segment index, not
	// the block-local one.
	return readFile(archive.SegmentChunkPath(f.Dir, segmentID))
}

func (s *LocalSource) ReadParity(_ context.Context, name string, segmentID, parityID int, blockID *int) ([]byte, error) {
	f, err := filestore.Find(s.archiveDir, name)
	if err != nil {
		return nil, err
	}

	switch f.Manifest.Tier {
	case manifest.TierTiny:
		return readFile(archive.ParityPathT1(f.Dir, parityID))
	case manifest.TierSegmented:
		return readFile(archive.SegmentParityPathT2(f.Dir, segmentID, parityID))
	case manifest.TierBlocked:
		if blockID == nil {
			return nil, errs.Wrap(errs.ConfigError, "block_id is required for tier 3 parity reads", nil)
		}

		return readFile(archive.BlockParityPathT3(f.Dir, *blockID, parityID))
	default:
		return nil, errs.Wrap(errs.ConfigError, fmt.Sprintf("unknown tier %d", f.Manifest.Tier), nil)
	}
}

func (s *LocalSource) ReadData(_ context.Context, name string) ([]byte, error) {
	f, err := filestore.Find(s.archiveDir, name)
	if err != nil {
		return nil, err
	}

	return readFile(archive.DataPath(f.Dir))
}

var _ WriteBacker = (*LocalSource)(nil)

// WriteSegment persists a recovered data shard for name back to its
// on-disk path: data.dat for Tier 1, the segment's chunk file otherwise.
func (s *LocalSource) WriteSegment(_ context.Context, name string, segmentID int, data []byte) error {
	f, err := filestore.Find(s.archiveDir, name)
	if err != nil {
		return err
	}

	path := archive.SegmentChunkPath(f.Dir, segmentID)
	if f.Manifest.Tier == manifest.TierTiny {
		path = archive.DataPath(f.Dir)
	}

	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
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

	return os.Chmod(path, 0o644)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.NotFound, fmt.Sprintf("shard %q", path), nil)
		}

		return nil, errs.Wrap(errs.PermanentIO, fmt.Sprintf("reading %q", path), err)
	}

	return data, nil
}
