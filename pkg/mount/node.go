// Package mount exposes a committed archive (local or remote) as a
// read-only FUSE filesystem: one flat directory of files, transparent
// bit-rot detection and recovery on read, and a frequency-biased
// segment cache shared across all open handles.
package mount

import (
	"context"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/rs/zerolog"

	"github.com/blockframe/blockframe/pkg/manifest"
	"github.com/blockframe/blockframe/pkg/segcache"
	"github.com/blockframe/blockframe/pkg/source"
)

const attrTTL = time.Second

// root is the mount's single directory, populated once from the
// source's file list when the kernel attaches the filesystem.
type root struct {
	fs.Inode

	src   source.SegmentSource
	cache *segcache.Cache
}

var _ fs.NodeOnAdder = (*root)(nil)

func newRoot(src source.SegmentSource, cache *segcache.Cache) *root {
	return &root{src: src, cache: cache}
}

func (r *root) OnAdd(ctx context.Context) {
	names, err := r.src.ListFiles(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("listing files for mount")

		return
	}

	for _, name := range names {
		m, err := r.src.GetManifest(ctx, name)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("name", name).Msg("skipping file: manifest unavailable")

			continue
		}

		child := &fileNode{src: r.src, cache: r.cache, name: name, manifest: m}
		inode := r.NewPersistentInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG})
		r.AddChild(name, inode, true)
	}
}

// fileNode represents one committed file. It holds no open-handle
// state of its own: reads are positional (offset, size), matching the
// archive's POSIX-style read semantics, so a fileHandle carries nothing
// beyond a back-reference to its node and an id for log correlation.
type fileNode struct {
	fs.Inode

	src      source.SegmentSource
	cache    *segcache.Cache
	name     string
	manifest *manifest.Manifest
}

var (
	_ fs.NodeGetattrer = (*fileNode)(nil)
	_ fs.NodeOpener    = (*fileNode)(nil)
)

func (f *fileNode) Getattr(_ context.Context, _ fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0o444
	out.Size = uint64(f.manifest.Size)
	out.SetTimeout(attrTTL)

	return fs.OK
}

// Open allocates a handle; per the archive's state machine this simply
// transitions Closed -> Opened, since reads carry their own offset and
// need no cursor. Each handle gets its own id so open/read/release log
// lines for one session can be correlated without tracking cursor state.
func (f *fileNode) Open(ctx context.Context, _ uint32) (fs.FileHandle, uint32, syscall.Errno) {
	id := uuid.New()

	zerolog.Ctx(ctx).Debug().Str("name", f.name).Str("handle", id.String()).Msg("mount handle opened")

	return &fileHandle{node: f, id: id}, fuse.FOPEN_KEEP_CACHE, fs.OK
}

type fileHandle struct {
	node *fileNode
	id   uuid.UUID
}

var (
	_ fs.FileReader   = (*fileHandle)(nil)
	_ fs.FileReleaser = (*fileHandle)(nil)
)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := readRange(ctx, h.node.src, h.node.cache, h.node.name, h.node.manifest, off, len(dest))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("name", h.node.name).Str("handle", h.id.String()).Int64("offset", off).Msg("mount read failed")

		return nil, syscall.EIO
	}

	return fuse.ReadResultData(data), fs.OK
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	zerolog.Ctx(ctx).Debug().Str("name", h.node.name).Str("handle", h.id.String()).Msg("mount handle released")

	return fs.OK
}
