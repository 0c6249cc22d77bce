package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
)

// autoMaxProcs periodically re-applies GOMAXPROCS from the container's
// CPU quota, since a quota can change underneath a long-running serve
// process without it restarting.
func autoMaxProcs(ctx context.Context, d time.Duration, logger *zerolog.Logger) error {
	infof := diffInfof(logger)

	setMaxProcs := func() {
		if _, err := maxprocs.Set(maxprocs.Logger(infof)); err != nil {
			logger.Error().Err(err).Msg("failed to set GOMAXPROCS")
		}
	}

	setMaxProcs()

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			setMaxProcs()
		}
	}
}

// diffInfof dedups identical log lines: maxprocs logs its decision every
// time Set is called even when nothing changed.
func diffInfof(logger *zerolog.Logger) func(string, ...interface{}) {
	var last string

	return func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		if msg != last {
			logger.Info().Msg(msg)
			last = msg
		}
	}
}
