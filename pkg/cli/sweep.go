package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/sweep"
)

func sweepCmd() *cli.Command {
	return &cli.Command{
		Name:                  "sweep",
		EnableShellCompletion: true,
		Usage:                 "Run one GPU reclamation cycle",
		Description: `Run a single reclamation cycle:
  1. Collect GPU process, SLURM job, and Docker container inventory in parallel
  2. Classify every GPU compute process as SLURM-owned, container-owned, or orphan
  3. Terminate orphans with SIGTERM, then SIGKILL after the grace window
  4. Append kill records to the audit log and print the cycle report

A single unreachable inventory source degrades the cycle (with a warning in
the report); the cycle fails only when every source is unreachable.

Suitable for cron. Exit code 0 covers cycles that reclaimed processes;
exit code 1 means the cycle itself could not run.

# Examples

Report what would be reclaimed without signaling:
  dgxrm sweep --dry-run

Run with a config file and machine-readable output:
  dgxrm sweep --config /etc/dgxrm/config.yaml --format json --output cycle.json`,
		Flags: []cli.Flag{
			configFlag,
			logLevelFlag,
			outputFlag,
			formatFlag,
			dryRunFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			writer, err := reportWriter(cmd)
			if err != nil {
				return err
			}
			defer writer.Close()

			rep, err := sweep.New(cfg).Run(ctx)
			if err != nil {
				return err
			}
			return writer.Serialize(ctx, rep)
		},
	}
}
