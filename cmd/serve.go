package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/blockframe/blockframe/pkg/filestore"
	bfprometheus "github.com/blockframe/blockframe/pkg/prometheus"
	"github.com/blockframe/blockframe/pkg/server"
	"github.com/blockframe/blockframe/pkg/source"
)

func serveCommand(flagSources flagSourcesFn) *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "serve an archive over the read-only peer HTTP API",
		Action:  serveAction(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "archive",
				Usage:   "path to the archive directory",
				Sources: flagSources("archive.dir", "BLOCKFRAME_ARCHIVE_DIR"),
				Value:   defaultArchiveDir(),
			},
			&cli.StringFlag{
				Name:    "server-addr",
				Usage:   "the address to listen on",
				Sources: flagSources("server.addr", "SERVER_ADDR"),
				Value:   ":8420",
			},
			&cli.StringFlag{
				Name: "health-check-schedule",
				//nolint:lll
				Usage:   "cron spec for the periodic archive health check; https://pkg.go.dev/github.com/robfig/cron/v3#hdr-Usage",
				Sources: flagSources("health.schedule", "HEALTH_CHECK_SCHEDULE"),
				Value:   "@every 1h",
				Validator: func(s string) error {
					_, err := cron.ParseStandard(s)

					return err
				},
			},
			&cli.BoolFlag{
				Name:    "prometheus-enabled",
				Usage:   "enable the Prometheus metrics endpoint at /metrics",
				Sources: flagSources("prometheus.enabled", "PROMETHEUS_ENABLED"),
			},
		},
	}
}

func serveAction() cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		logger := zerolog.Ctx(ctx).With().Str("cmd", "serve").Logger()
		ctx = logger.WithContext(ctx)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)

		defer func() {
			if err := g.Wait(); err != nil {
				logger.Error().Err(err).Msg("error returned from g.Wait()")
			}
		}()

		g.Go(func() error {
			return autoMaxProcs(ctx, 30*time.Second, &logger)
		})

		archiveDir := cmd.String("archive")
		src := source.NewLocalSource(archiveDir)

		schedule, err := cron.ParseStandard(cmd.String("health-check-schedule"))
		if err != nil {
			return fmt.Errorf("parsing health-check-schedule: %w", err)
		}

		startHealthCheckCron(ctx, archiveDir, schedule)

		srv := server.New(src)

		var prometheusShutdown func(context.Context) error

		handler := http.Handler(srv)

		if cmd.Bool("prometheus-enabled") {
			gatherer, shutdown, err := bfprometheus.SetupPrometheusMetrics(ctx, cmd.Root().Name, Version)
			if err != nil {
				return fmt.Errorf("setting up Prometheus metrics: %w", err)
			}

			prometheusShutdown = shutdown

			mux := http.NewServeMux()
			mux.Handle("/", srv)
			mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
			handler = mux

			logger.Info().Msg("Prometheus metrics enabled at /metrics")
		}

		defer func() {
			if prometheusShutdown != nil {
				if err := prometheusShutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down Prometheus metrics")
				}
			}
		}()

		httpServer := &http.Server{
			BaseContext:       func(net.Listener) context.Context { return ctx },
			Addr:              cmd.String("server-addr"),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		logger.Info().Str("server_addr", cmd.String("server-addr")).Str("archive", archiveDir).Msg("server started")

		if err := httpServer.ListenAndServe(); err != nil {
			return fmt.Errorf("starting the HTTP listener: %w", err)
		}

		return nil
	}
}

// startHealthCheckCron schedules a periodic batch health check in the
// background; it logs its findings but never blocks serve's own
// readiness on a full archive scan.
func startHealthCheckCron(ctx context.Context, archiveDir string, schedule cron.Schedule) {
	log := zerolog.Ctx(ctx)

	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() {
		report, err := filestore.BatchHealthCheck(ctx, archiveDir)
		if err != nil {
			log.Error().Err(err).Msg("scheduled health check failed")

			return
		}

		for status, count := range report.Counts {
			log.Info().Str("status", status.String()).Int("count", count).Msg("scheduled health check summary")
		}
	}))
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
}
