package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/blockframe/blockframe/pkg/config"
	"github.com/blockframe/blockframe/pkg/segcache"
	"github.com/blockframe/blockframe/pkg/source"

	"github.com/blockframe/blockframe/pkg/mount"
)

// ErrMountSourceRequired is returned when neither --archive nor
// --remote was given.
var ErrMountSourceRequired = errors.New("either --archive or --remote is required")

// ErrMountSourceConflict is returned when both --archive and --remote
// were given; a mount reads from exactly one source.
var ErrMountSourceConflict = errors.New("cannot use both --archive and --remote")

func mountCommand(flagSources flagSourcesFn) *cli.Command {
	return &cli.Command{
		Name:   "mount",
		Usage:  "mount the archive (or a remote peer) read-only over FUSE",
		Action: mountAction(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mountpoint",
				Usage:    "directory to mount the archive onto",
				Sources:  flagSources("mount.mountpoint", "BLOCKFRAME_MOUNTPOINT"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "archive",
				Usage:   "path to a local archive directory",
				Sources: flagSources("archive.dir", "BLOCKFRAME_ARCHIVE_DIR"),
			},
			&cli.StringFlag{
				Name:    "remote",
				Usage:   "base URL of a remote Blockframe server to mount instead of a local archive",
				Sources: flagSources("mount.remote", "BLOCKFRAME_MOUNT_REMOTE"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the cache-sizing configuration file",
				Sources: flagSources("mount.config", "BLOCKFRAME_MOUNT_CONFIG"),
			},
		},
	}
}

func mountAction() cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		log := zerolog.Ctx(ctx).With().Str("cmd", "mount").Logger()
		ctx = log.WithContext(ctx)

		src, err := sourceFromFlags(cmd)
		if err != nil {
			return err
		}

		maxBytes, err := cacheMaxBytes(cmd.String("config"))
		if err != nil {
			return err
		}

		cache, err := segcache.New(int64(maxBytes))
		if err != nil {
			return fmt.Errorf("constructing segment cache: %w", err)
		}
		defer cache.Close()

		mountpoint := cmd.String("mountpoint")

		srv, err := mount.Mount(ctx, src, cache, mountpoint)
		if err != nil {
			return fmt.Errorf("mounting %q: %w", mountpoint, err)
		}

		log.Info().Str("mountpoint", mountpoint).Msg("archive mounted")

		srv.Wait()

		return nil
	}
}

func sourceFromFlags(cmd *cli.Command) (source.SegmentSource, error) {
	archiveDir := cmd.String("archive")
	remote := cmd.String("remote")

	switch {
	case archiveDir != "" && remote != "":
		return nil, ErrMountSourceConflict
	case archiveDir != "":
		return source.NewLocalSource(archiveDir), nil
	case remote != "":
		return source.NewRemoteSource(remote), nil
	default:
		return nil, ErrMountSourceRequired
	}
}

func cacheMaxBytes(configPath string) (uint64, error) {
	if configPath == "" {
		var c config.Config

		return c.MaxSizeBytes()
	}

	c, err := config.Load(configPath)
	if err != nil {
		return 0, fmt.Errorf("loading config %q: %w", configPath, err)
	}

	return c.MaxSizeBytes()
}
