package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/logging"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/serializer"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/sweep"
)

const name = "dgxrm"

// version is set at build time via ldflags.
var version = "dev"

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Configuration file path (YAML)",
		Sources: cli.EnvVars("DGXRM_CONFIG"),
	}

	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "Logging verbosity (debug, info, warn, error)",
		Sources: cli.EnvVars("LOG_LEVEL"),
		Value:   "info",
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Write report to file path (default: stdout)",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Usage:   "Report format: json, yaml, text",
		Value:   string(serializer.FormatText),
	}

	dryRunFlag = &cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "Report orphan processes without signaling them",
		Sources: cli.EnvVars("DGXRM_DRY_RUN"),
	}
)

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "Attribute and reclaim orphan GPU processes on shared DGX nodes",
		Version:               version,
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			sweepCmd(),
			watchCmd(),
		},
	}
}

// loadConfig initializes logging and builds the effective sweep
// configuration from the config file and command-line overrides.
func loadConfig(cmd *cli.Command) (*sweep.Config, error) {
	logging.SetDefaultStructuredLoggerWithLevel(name, version, cmd.String("log-level"))

	cfg, err := sweep.NewConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if cmd.Bool("dry-run") {
		cfg.DryRun = true
	}
	return cfg, nil
}

func reportWriter(cmd *cli.Command) (*serializer.Writer, error) {
	format := serializer.Format(cmd.String("format"))
	if format.IsUnknown() {
		return nil, fmt.Errorf("unknown output format: %q (supported: %s)",
			format, strings.Join(serializer.SupportedFormats(), ", "))
	}
	return serializer.NewFileWriterOrStdout(format, cmd.String("output")), nil
}

// Execute runs the CLI. It installs signal handling so SIGINT and SIGTERM
// cancel in-flight cycles cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}
