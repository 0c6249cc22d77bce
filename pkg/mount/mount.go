package mount

import (
	"context"
	"fmt"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/blockframe/blockframe/pkg/segcache"
	"github.com/blockframe/blockframe/pkg/source"
)

// Mount attaches src read-only at mountpoint and returns the running
// FUSE server. The server unmounts itself when ctx is cancelled.
func Mount(ctx context.Context, src source.SegmentSource, cache *segcache.Cache, mountpoint string) (*fuse.Server, error) {
	server, err := fs.Mount(mountpoint, newRoot(src, cache), &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:    "blockframe",
			FsName:  "blockframe",
			Options: []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting blockframe archive at %q: %w", mountpoint, err)
	}

	go func() {
		<-ctx.Done()

		_ = server.Unmount()
	}()

	return server, nil
}
