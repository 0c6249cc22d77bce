package archive

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/blockframe/blockframe/pkg/errs"
	"github.com/blockframe/blockframe/pkg/lock"
	"github.com/blockframe/blockframe/pkg/lock/local"
	"github.com/blockframe/blockframe/pkg/manifest"
)

// indexLockKey is the single key the index's RWLocker guards; the index
// has exactly one resource (itself), so a constant key is sufficient.
const indexLockKey = "archive-index"

// indexLockTTL is passed through to the RWLocker interface but ignored
// by the local implementation.
const indexLockTTL = 30 * time.Second

// Entry is a loaded manifest together with the directory it lives in.
type Entry struct {
	Manifest *manifest.Manifest
	Dir      string
}

// Index is an in-memory directory of committed files. The mount and HTTP
// surfaces do not use it; they list files through source.SegmentSource.
// It is mutated by Rescan and Add under the writer lock; lookups take the
// read lock and do not block each other, per the
// single-writer/many-readers concurrency model.
type Index struct {
	archiveDir string
	rw         lock.RWLocker

	entries map[string]Entry
}

// NewIndex creates an index rooted at archiveDir. Call Rescan before
// serving any reads.
func NewIndex(archiveDir string) *Index {
	return &Index{
		archiveDir: archiveDir,
		rw:         local.NewRWLocker(),
		entries:    make(map[string]Entry),
	}
}

// ArchiveDir returns the root directory the index was constructed with.
func (idx *Index) ArchiveDir() string {
	return idx.archiveDir
}

// Rescan walks the archive directory, loads every manifest it finds, and
// atomically replaces the index's contents under the writer lock.
func (idx *Index) Rescan(ctx context.Context) error {
	entries, err := loadEntries(idx.archiveDir)
	if err != nil {
		return err
	}

	if err := idx.rw.Lock(ctx, indexLockKey, indexLockTTL); err != nil {
		return err
	}
	defer idx.rw.Unlock(ctx, indexLockKey) //nolint:errcheck

	idx.entries = entries

	log.Debug().Str("component", "archive").Int("files", len(entries)).Msg("rescanned archive index")

	return nil
}

func loadEntries(archiveDir string) (map[string]Entry, error) {
	dirents, err := os.ReadDir(archiveDir)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Entry), nil
		}

		return nil, errs.Wrap(errs.PermanentIO, "reading archive directory", err)
	}

	entries := make(map[string]Entry, len(dirents))

	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}

		dir := filepath.Join(archiveDir, d.Name())

		m, err := manifest.FromFile(ManifestPath(dir))
		if err != nil {
			log.Warn().Str("component", "archive").Str("dir", dir).Err(err).Msg("skipping directory with unreadable manifest")

			continue
		}

		if err := m.Validate(); err != nil {
			log.Warn().Str("component", "archive").Str("dir", dir).Err(err).Msg("skipping directory with invalid manifest")

			continue
		}

		entries[m.Name] = Entry{Manifest: m, Dir: dir}
	}

	return entries, nil
}

// Get returns the entry for a display name, acquiring a read lock for
// the lookup and releasing it before returning; callers must not assume
// the entry's directory contents are stable beyond what the manifest
// itself guarantees (immutable once committed).
func (idx *Index) Get(ctx context.Context, name string) (Entry, error) {
	if err := idx.rw.RLock(ctx, indexLockKey, indexLockTTL); err != nil {
		return Entry{}, err
	}

	e, ok := idx.entries[name]

	idx.rw.RUnlock(ctx, indexLockKey) //nolint:errcheck

	if !ok {
		return Entry{}, errs.Wrap(errs.NotFound, "file "+name, nil)
	}

	return e, nil
}

// List returns a snapshot of every known entry.
func (idx *Index) List(ctx context.Context) ([]Entry, error) {
	if err := idx.rw.RLock(ctx, indexLockKey, indexLockTTL); err != nil {
		return nil, err
	}
	defer idx.rw.RUnlock(ctx, indexLockKey) //nolint:errcheck

	out := make([]Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}

	return out, nil
}

// Add inserts or replaces a single entry, taking the writer lock only
// for the map mutation. Used right after a successful commit so new
// files are visible without a full rescan.
func (idx *Index) Add(ctx context.Context, e Entry) error {
	if err := idx.rw.Lock(ctx, indexLockKey, indexLockTTL); err != nil {
		return err
	}
	defer idx.rw.Unlock(ctx, indexLockKey) //nolint:errcheck

	idx.entries[e.Manifest.Name] = e

	return nil
}
