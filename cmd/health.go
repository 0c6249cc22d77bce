package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/blockframe/blockframe/pkg/filestore"
)

func healthCommand(flagSources flagSourcesFn) *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "classify archive files by protection health, optionally repairing them",
		Action: healthAction(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "archive",
				Usage:   "path to the archive directory",
				Sources: flagSources("archive.dir", "BLOCKFRAME_ARCHIVE_DIR"),
				Value:   defaultArchiveDir(),
			},
			&cli.BoolFlag{
				Name:    "repair",
				Usage:   "attempt to reconstruct and rewrite degraded or recoverable files",
				Sources: flagSources("health.repair", "BLOCKFRAME_HEALTH_REPAIR"),
			},
		},
	}
}

func healthAction() cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		log := zerolog.Ctx(ctx).With().Str("cmd", "health").Logger()
		ctx = log.WithContext(ctx)

		archiveDir := cmd.String("archive")

		report, err := filestore.BatchHealthCheck(ctx, archiveDir)
		if err != nil {
			return fmt.Errorf("running batch health check: %w", err)
		}

		for status, count := range report.Counts {
			log.Info().Str("status", status.String()).Int("count", count).Msg("health check summary")
		}

		if !cmd.Bool("repair") {
			return nil
		}

		for _, f := range report.Files {
			if f.Status == filestore.Healthy {
				continue
			}

			repaired, err := filestore.Repair(ctx, archiveDir, f.Name)
			if err != nil {
				log.Error().Err(err).Str("name", f.Name).Msg("repair failed")

				continue
			}

			log.Info().Str("name", f.Name).Str("status", repaired.Status.String()).Msg("repair attempted")
		}

		return nil
	}
}
