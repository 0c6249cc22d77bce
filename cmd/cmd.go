// Package cmd assembles Blockframe's command-line surface: a root
// urfave/cli/v3 command whose Before hook bootstraps a zerolog logger
// attached to context.Context, TOML-backed flag sources, and the
// commit/health/serve/mount subcommands.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/rs/zerolog"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// Version is set via ldflags at build time.
//
//nolint:gochecknoglobals
var Version = "dev"

type flagSourcesFn func(configFileKey, envVar string) cli.ValueSourceChain

// New returns the root command. logger is the log15 logger main.go
// bootstrapped before any flag parsing happened; it records the
// Before hook's own diagnostics, after which all library code reads
// its logger from the context zerolog instance instead.
func New(logger log15.Logger) *cli.Command {
	var otelShutdown func(context.Context) error

	var configPath string

	flagSources := func(configFileKey, envVar string) cli.ValueSourceChain {
		return cli.NewValueSourceChain(
			toml.TOML(configFileKey, altsrc.NewStringPtrSourcer(&configPath)),
			cli.EnvVar(envVar),
		)
	}

	return &cli.Command{
		Name:    "blockframe",
		Usage:   "archival storage engine: segment, protect, and serve files with transparent bit-rot repair",
		Version: Version,
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			ctx, err := setupLogger(ctx, cmd)
			if err != nil {
				return ctx, err
			}

			shutdown, err := setupOTelSDK(ctx, cmd)
			if err != nil {
				return ctx, err
			}

			otelShutdown = shutdown

			logger.Info("blockframe starting", "version", Version)

			return ctx, nil
		},
		After: func(ctx context.Context, _ *cli.Command) error {
			if otelShutdown != nil {
				return otelShutdown(ctx)
			}

			return nil
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to the configuration file (toml)",
				Sources:     cli.EnvVars("BLOCKFRAME_CONFIG_FILE"),
				Value:       defaultConfigPath(),
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level",
				Sources: flagSources("log.level", "LOG_LEVEL"),
				Value:   "info",
				Validator: func(lvl string) error {
					_, err := zerolog.ParseLevel(lvl)

					return err
				},
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "enable OpenTelemetry tracing and metrics export",
				Sources: flagSources("opentelemetry.enabled", "OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "otel-grpc-url",
				Usage:   "OpenTelemetry collector gRPC endpoint; omit to emit to stdout when enabled",
				Sources: flagSources("opentelemetry.grpc-url", "OTEL_GRPC_URL"),
			},
		},
		Commands: []*cli.Command{
			commitCommand(flagSources),
			healthCommand(flagSources),
			serveCommand(flagSources),
			mountCommand(flagSources),
		},
	}
}

func setupLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	lvl, err := zerolog.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return ctx, fmt.Errorf("parsing log-level %q: %w", cmd.String("log-level"), err)
	}

	var output io.Writer = os.Stdout

	if term.IsTerminal(int(os.Stdout.Fd())) {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	ctx = zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger().
		WithContext(ctx)

	return ctx, nil
}

func defaultConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(configDir, "blockframe", "config.toml")
}
