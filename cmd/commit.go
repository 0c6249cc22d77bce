package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/blockframe/blockframe/pkg/chunker"
)

func commitCommand(flagSources flagSourcesFn) *cli.Command {
	return &cli.Command{
		Name:   "commit",
		Usage:  "ingest a file into the archive",
		Action: commitAction(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "path to the file to commit",
				Sources:  flagSources("commit.file", "BLOCKFRAME_COMMIT_FILE"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "archive",
				Usage:   "path to the archive directory",
				Sources: flagSources("archive.dir", "BLOCKFRAME_ARCHIVE_DIR"),
				Value:   defaultArchiveDir(),
			},
		},
	}
}

func commitAction() cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		log := zerolog.Ctx(ctx).With().Str("cmd", "commit").Logger()
		ctx = log.WithContext(ctx)

		m, err := chunker.Commit(ctx, cmd.String("archive"), cmd.String("file"))
		if err != nil {
			return fmt.Errorf("committing %q: %w", cmd.String("file"), err)
		}

		log.Info().
			Str("name", m.Name).
			Int64("size", m.Size).
			Int("tier", int(m.Tier)).
			Str("content_hash", m.ContentHash).
			Msg("file committed")

		return nil
	}
}

func defaultArchiveDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "./archive"
	}

	return dir + "/blockframe/archive"
}
