package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/serializer"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/sweep"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:                  "watch",
		EnableShellCompletion: true,
		Usage:                 "Run reclamation cycles continuously",
		Description: `Run sweep cycles on a fixed interval until interrupted.

Designed to run as a systemd service: readiness is signaled through the
notify socket when the first cycle starts, and SIGTERM stops the loop after
the in-flight cycle completes. A failed cycle is logged and the loop
continues; persistent failures surface through the dgxrm_cycle_total metric.

# Examples

Run every five minutes with metrics exposed:
  dgxrm watch --interval 5m --metrics-addr :9090

Dry-run continuously while validating a new node:
  dgxrm watch --dry-run --interval 1m`,
		Flags: []cli.Flag{
			configFlag,
			logLevelFlag,
			outputFlag,
			formatFlag,
			dryRunFlag,
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Time between cycle starts (overrides config pollInterval)",
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Expose Prometheus metrics on this address, e.g. :9090",
				Sources: cli.EnvVars("DGXRM_METRICS_ADDR"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if d := cmd.Duration("interval"); d > 0 {
				cfg.PollInterval = d
			}
			if addr := cmd.String("metrics-addr"); addr != "" {
				cfg.MetricsAddr = addr
			}

			writer, err := reportWriter(cmd)
			if err != nil {
				return err
			}
			defer writer.Close()

			return watch(ctx, cfg, writer)
		},
	}
}

func watch(ctx context.Context, cfg *sweep.Config, writer *serializer.Writer) error {
	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr)
	}

	s := sweep.New(cfg)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		slog.Warn("systemd notify failed", slog.String("error", err.Error()))
	} else if sent {
		slog.Debug("notified systemd readiness")
	}
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	slog.Info("watching", slog.Duration("interval", cfg.PollInterval))

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		rep, err := s.Run(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			slog.Error("cycle failed", slog.String("error", err.Error()))
		default:
			if serr := writer.Serialize(ctx, rep); serr != nil {
				slog.Error("serializing report", slog.String("error", serr.Error()))
			}
		}

		select {
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server failed", slog.String("error", err.Error()))
	}
}
