// Package source abstracts where segment bytes come from: a local
// archive directory, or a remote Blockframe HTTP server. The mount layer
// and the HTTP server are written against the SegmentSource interface so
// they work identically whether the archive is local or remote.
package source

import (
	"context"

	"github.com/blockframe/blockframe/pkg/manifest"
)

// SegmentSource reads committed files, manifests, and individual
// protection-unit shards, without caring whether they live on local
// disk or behind an HTTP API.
type SegmentSource interface {
	// ListFiles returns the display name of every committed file.
	ListFiles(ctx context.Context) ([]string, error)

	// GetManifest returns the manifest for name.
	GetManifest(ctx context.Context, name string) (*manifest.Manifest, error)

	// ReadSegment returns the data shard bytes for segment segmentID of
	// a Tier 2 file.
	ReadSegment(ctx context.Context, name string, segmentID int) ([]byte, error)

	// ReadBlockSegment returns the data shard bytes of a Tier 3 file's
	// segment in block blockID; segmentID is the file-wide segment index,
	// not the block-local one.
	ReadBlockSegment(ctx context.Context, name string, blockID, segmentID int) ([]byte, error)

	// ReadParity returns a parity shard. blockID is nil for Tier 1/2
	// files and required for Tier 3.
	ReadParity(ctx context.Context, name string, segmentID, parityID int, blockID *int) ([]byte, error)

	// ReadData returns the whole-file data shard of a Tier 1 file.
	ReadData(ctx context.Context, name string) ([]byte, error)
}

// WriteBacker is implemented by sources that can persist a recovered
// data shard back to durable storage. LocalSource implements it;
// RemoteSource does not — a mount backed by a remote source recovers
// bytes for the read in hand but leaves repair of the upstream archive
// to that peer's own health check.
type WriteBacker interface {
	// WriteSegment persists recovered data as the data shard for
	// segmentID (the file-wide segment index; 0 for Tier 1).
	WriteSegment(ctx context.Context, name string, segmentID int, data []byte) error
}
