package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/attribution"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/proctree"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/reclaim"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/report"
)

// Sweeper runs reclamation cycles. Construct with New.
type Sweeper struct {
	cfg     *Config
	factory inventory.Factory
	policy  *reclaim.Policy
	capture func(ctx context.Context) (*proctree.Snapshot, error)
	owner   attribution.OwnerFunc
}

// Option customizes a Sweeper.
type Option func(*Sweeper)

// WithFactory overrides the collector factory, for tests.
func WithFactory(f inventory.Factory) Option {
	return func(s *Sweeper) { s.factory = f }
}

// WithPolicy overrides the reclamation policy, for tests.
func WithPolicy(p *reclaim.Policy) Option {
	return func(s *Sweeper) { s.policy = p }
}

func withCapture(fn func(ctx context.Context) (*proctree.Snapshot, error)) Option {
	return func(s *Sweeper) { s.capture = fn }
}

func withOwnerLookup(fn attribution.OwnerFunc) Option {
	return func(s *Sweeper) { s.owner = fn }
}

// New creates a Sweeper for the given configuration.
func New(cfg *Config, opts ...Option) *Sweeper {
	s := &Sweeper{
		cfg:     cfg,
		capture: proctree.Capture,
		owner:   proctree.Owner,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.factory == nil {
		s.factory = NewDefaultFactory(cfg)
	}
	return s
}

// Run executes one cycle and returns its report. Collection is fail-soft
// per source; the cycle errors only when every inventory source fails or
// the process tree cannot be captured.
func (s *Sweeper) Run(ctx context.Context) (*report.Report, error) {
	start := time.Now()
	cycleID := uuid.NewString()

	rep := &report.Report{
		CycleID:   cycleID,
		StartedAt: start,
		DryRun:    s.cfg.DryRun,
	}

	slog.Info("starting sweep cycle",
		slog.String("cycle", cycleID), slog.Bool("dryRun", s.cfg.DryRun))

	status := "success"
	defer func() {
		cycleDuration.Observe(time.Since(start).Seconds())
		cycleTotal.WithLabelValues(status).Inc()
	}()

	var (
		gpuInv inventory.GPUInventory
		jobs   []inventory.Job
		conts  []inventory.Container
		tree   *proctree.Snapshot

		gpuErr, jobErr, contErr, treeErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer observe("gpu", time.Now())
		gpuInv, gpuErr = s.factory.CreateGPUCollector().Collect(gctx)
		return nil
	})
	g.Go(func() error {
		defer observe("slurm", time.Now())
		jobs, jobErr = s.factory.CreateJobCollector().Collect(gctx)
		return nil
	})
	g.Go(func() error {
		defer observe("docker", time.Now())
		conts, contErr = s.factory.CreateContainerCollector().Collect(gctx)
		return nil
	})
	g.Go(func() error {
		defer observe("proctree", time.Now())
		tree, treeErr = s.capture(gctx)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		status = "error"
		return nil, err
	}

	for source, err := range map[string]error{"gpu": gpuErr, "slurm": jobErr, "docker": contErr} {
		if err != nil {
			collectionErrors.WithLabelValues(source).Inc()
			slog.Warn("inventory source failed, continuing without it",
				slog.String("source", source), slog.String("error", err.Error()))
			rep.Warnings = append(rep.Warnings, err.Error())
		}
	}
	if gpuErr != nil && jobErr != nil && contErr != nil {
		status = "error"
		return nil, fmt.Errorf("all inventory sources failed: gpu: %v; slurm: %v; docker: %v", gpuErr, jobErr, contErr)
	}
	if treeErr != nil {
		// Without the process tree no job membership test is possible and
		// every process would fail toward orphan. Abort instead.
		status = "error"
		collectionErrors.WithLabelValues("proctree").Inc()
		return nil, fmt.Errorf("capturing process tree: %w", treeErr)
	}

	engine := attribution.NewEngine(tree,
		attribution.WithTreeDepth(s.cfg.TreeDepth),
		attribution.WithSupervisorName(s.cfg.SupervisorName),
		attribution.WithOwnerLookup(s.owner),
	)

	var orphans []*report.Outcome
	classify := func(proc inventory.Process) report.Outcome {
		if proc.CommandLine == "" {
			proc.CommandLine = tree.CommandLine(proc.PID)
		}
		verdict, err := engine.Classify(ctx, proc, jobs, conts)
		classifiedProcesses.WithLabelValues(string(verdict.Classification)).Inc()

		out := report.Outcome{Process: proc, Verdict: verdict}
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
		}
		if verdict.Containerized() {
			if c := containerByID(conts, verdict.ContainerID); c != nil {
				out.Container = c
				out.Owner = c.Owner
			}
		}
		if out.Owner == "" {
			if owner, err := s.owner(ctx, proc.PID); err == nil {
				out.Owner = owner
			} else {
				out.Owner = inventory.OwnerUnknown
			}
		}
		return out
	}

	for _, dev := range gpuInv.Devices {
		section := report.DeviceSection{Device: dev}
		for _, proc := range dev.Processes {
			out := classify(proc)
			section.Outcomes = append(section.Outcomes, out)
		}
		for _, job := range jobs {
			if !job.OnGPU(dev.Index) {
				continue
			}
			jv := report.JobView{Job: job}
			if pid, ok := tree.FindSupervisor(s.cfg.SupervisorName, job.ID); ok {
				jv.SupervisorPID = pid
			}
			section.Jobs = append(section.Jobs, jv)
		}
		rep.Devices = append(rep.Devices, section)
	}
	for _, proc := range gpuInv.Unresolved {
		rep.Unresolved = append(rep.Unresolved, classify(proc))
	}

	// Index orphan outcomes after all appends settle the slices.
	for i := range rep.Devices {
		for j := range rep.Devices[i].Outcomes {
			if o := &rep.Devices[i].Outcomes[j]; o.Verdict.Classification == attribution.Orphan {
				orphans = append(orphans, o)
			}
		}
	}
	for j := range rep.Unresolved {
		if o := &rep.Unresolved[j]; o.Verdict.Classification == attribution.Orphan {
			orphans = append(orphans, o)
		}
	}

	procCount := len(rep.Unresolved)
	for _, d := range rep.Devices {
		procCount += len(d.Outcomes)
	}
	gpuProcessCount.Set(float64(procCount))

	if len(orphans) > 0 {
		if err := s.reclaimAll(ctx, cycleID, orphans); err != nil {
			status = "error"
			return nil, err
		}
	}

	rep.Duration = time.Since(start)
	rep.Tally()

	slog.Info("sweep cycle complete",
		slog.String("cycle", cycleID),
		slog.Int("processes", rep.Totals.Processes),
		slog.Int("orphans", rep.Totals.Orphans),
		slog.Int("reclaimed", rep.Totals.Reclaimed),
		slog.Int("failed", rep.Totals.Failed),
		slog.Duration("duration", rep.Duration))

	return rep, nil
}

// reclaimAll runs the termination protocol for every orphan in parallel and
// records each outcome on its report entry. Signal failures mark the entry
// and never abort the other reclamations.
func (s *Sweeper) reclaimAll(ctx context.Context, cycleID string, orphans []*report.Outcome) error {
	policy := s.policy
	if policy == nil {
		var audit *reclaim.AuditLog
		if !s.cfg.DryRun {
			var err error
			audit, err = reclaim.OpenAuditLog(s.cfg.AuditPath)
			if err != nil {
				return fmt.Errorf("opening audit log: %w", err)
			}
			defer audit.Close()
		}
		policy = reclaim.NewPolicy(audit,
			reclaim.WithGraceWindow(s.cfg.GraceWindow),
			reclaim.WithRateLimit(s.cfg.KillRateLimit),
			reclaim.WithDryRun(s.cfg.DryRun),
		)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, out := range orphans {
		out := out
		g.Go(func() error {
			target := reclaim.Target{
				Process:     out.Process,
				Owner:       out.Owner,
				CommandLine: out.Process.CommandLine,
				Container:   out.Container,
				CycleID:     cycleID,
			}
			rec, err := policy.Reclaim(gctx, target)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				out.Errors = append(out.Errors, err.Error())
				reclaimedProcesses.WithLabelValues("failed").Inc()
			case rec == nil:
				reclaimedProcesses.WithLabelValues("dry_run").Inc()
			case rec.Forced:
				out.Kill = rec
				reclaimedProcesses.WithLabelValues("forced").Inc()
			default:
				out.Kill = rec
				reclaimedProcesses.WithLabelValues("graceful").Inc()
			}
			return nil
		})
	}
	return g.Wait()
}

func containerByID(conts []inventory.Container, id string) *inventory.Container {
	for i := range conts {
		if conts[i].ID == id {
			return &conts[i]
		}
	}
	return nil
}

func observe(collector string, start time.Time) {
	collectorDuration.WithLabelValues(collector).Observe(time.Since(start).Seconds())
}
