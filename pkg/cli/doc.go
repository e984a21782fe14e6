// Package cli implements the command-line interface for the dgxrm tool.
//
// # Overview
//
// The dgxrm CLI reclaims GPU capacity on shared DGX nodes by attributing
// every GPU compute process to a SLURM job (directly or through a Docker
// container) and terminating the processes nothing accounts for.
//
// # Commands
//
// sweep - Run one reclamation cycle:
//
//	dgxrm sweep [--dry-run] [--output FILE] [--format json|yaml|text]
//
// Collects GPU, SLURM, and container inventory, classifies every GPU
// process, terminates orphans with a two-phase SIGTERM/SIGKILL protocol,
// and prints the cycle report. Suitable for cron.
//
// watch - Run cycles continuously:
//
//	dgxrm watch [--interval 5m] [--metrics-addr :9090]
//
// Runs sweep cycles on a fixed interval until interrupted. Notifies
// systemd readiness when running as a service and optionally exposes
// Prometheus metrics.
//
// # Global Flags
//
//	--config, -c     Configuration file path (YAML)
//	--log-level      Logging verbosity (debug, info, warn, error)
//	--output, -o     Output file path (default: stdout)
//	--format, -t     Output format: json, yaml, text (default: text)
//	--dry-run        Report orphans without signaling them
//
// # Exit Codes
//
//	0  Success (including cycles that reclaimed orphans)
//	1  Fatal error (all inventory sources failed, bad configuration)
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/ERR-afk/DGX-Resource-Manager/pkg/cli.version=1.0.0'"
package cli
