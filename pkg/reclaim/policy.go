package reclaim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/time/rate"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

// State is a phase of the per-process reclamation state machine.
type State string

const (
	StatePending      State = "PENDING"
	StateGracefulSent State = "GRACEFUL_SENT"
	StateForceSent    State = "FORCE_SENT"
	StateTerminated   State = "TERMINATED"
	StateFailed       State = "FAILED"
)

// DefaultGraceWindow is the wait between the graceful and the forced
// termination signal.
const DefaultGraceWindow = 5 * time.Second

// SignalError marks a failed signal delivery. It is terminal for the
// process within the current cycle; the next cycle re-evaluates from
// scratch with no carried state.
type SignalError struct {
	PID   int
	Phase State
	Err   error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("reclaiming pid %d (%s): %v", e.PID, e.Phase, e.Err)
}

func (e *SignalError) Unwrap() error {
	return e.Err
}

// Signaller delivers termination signals and answers liveness. The
// production implementation uses live OS state; tests inject fakes.
type Signaller interface {
	Graceful(ctx context.Context, pid int) error
	Force(ctx context.Context, pid int) error
	Alive(ctx context.Context, pid int) bool
}

// Target bundles the process, its verdict context, and the ownership
// attribution needed for the audit record.
type Target struct {
	Process     inventory.Process
	Owner       string
	CommandLine string
	Container   *inventory.Container
	CycleID     string
}

// Policy executes the two-phase termination protocol for orphan processes.
type Policy struct {
	signaller Signaller
	audit     *AuditLog
	grace     time.Duration
	limiter   *rate.Limiter
	dryRun    bool
	sleep     func(ctx context.Context, d time.Duration) error
}

// PolicyOption customizes a Policy.
type PolicyOption func(*Policy)

// WithGraceWindow overrides the grace window between signals.
func WithGraceWindow(d time.Duration) PolicyOption {
	return func(p *Policy) { p.grace = d }
}

// WithSignaller overrides signal delivery, for tests.
func WithSignaller(s Signaller) PolicyOption {
	return func(p *Policy) { p.signaller = s }
}

// WithRateLimit caps reclamations per second to avoid kill storms on nodes
// with many orphans. Zero disables the limit.
func WithRateLimit(perSecond float64) PolicyOption {
	return func(p *Policy) {
		if perSecond > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithDryRun logs intended kills without sending signals or writing audit
// records.
func WithDryRun(dry bool) PolicyOption {
	return func(p *Policy) { p.dryRun = dry }
}

// withSleep overrides the grace wait, for tests.
func withSleep(fn func(ctx context.Context, d time.Duration) error) PolicyOption {
	return func(p *Policy) { p.sleep = fn }
}

// NewPolicy creates a reclamation policy writing to the given audit log.
func NewPolicy(audit *AuditLog, opts ...PolicyOption) *Policy {
	p := &Policy{
		signaller: osSignaller{},
		audit:     audit,
		grace:     DefaultGraceWindow,
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reclaim runs the state machine for one orphan process. It returns the
// kill record on termination, nil in dry-run mode, and a SignalError when
// the process reaches the FAILED state. A process that has already exited,
// or that vanishes mid-protocol, terminates with forced=false.
func (p *Policy) Reclaim(ctx context.Context, t Target) (*KillRecord, error) {
	pid := t.Process.PID
	state := StatePending

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if !p.signaller.Alive(ctx, pid) {
		// Exited between classification and action: idempotent success.
		slog.Info("orphan already exited before reclamation",
			slog.Int("pid", pid), slog.String("cycle", t.CycleID))
		return p.terminated(t, false)
	}

	if p.dryRun {
		slog.Info("dry run: would reclaim orphan process",
			slog.Int("pid", pid),
			slog.Uint64("memoryMiB", t.Process.MemoryMiB),
			slog.String("owner", t.Owner),
			slog.String("cycle", t.CycleID))
		return nil, nil
	}

	state = StateGracefulSent
	if err := p.signaller.Graceful(ctx, pid); err != nil {
		if vanished(err) {
			return p.terminated(t, false)
		}
		return nil, p.failed(pid, state, err)
	}
	slog.Info("graceful termination sent", slog.Int("pid", pid), slog.String("cycle", t.CycleID))

	if err := p.sleep(ctx, p.grace); err != nil {
		return nil, err
	}

	if !p.signaller.Alive(ctx, pid) {
		return p.terminated(t, false)
	}

	state = StateForceSent
	if err := p.signaller.Force(ctx, pid); err != nil {
		if vanished(err) {
			return p.terminated(t, false)
		}
		return nil, p.failed(pid, state, err)
	}
	slog.Warn("forced termination required", slog.Int("pid", pid), slog.String("cycle", t.CycleID))

	return p.terminated(t, true)
}

func (p *Policy) terminated(t Target, forced bool) (*KillRecord, error) {
	exec := ExecBareMetal
	if t.Container != nil {
		exec = ExecContainer
	}
	rec := &KillRecord{
		PID:         t.Process.PID,
		Timestamp:   time.Now(),
		MemoryMiB:   t.Process.MemoryMiB,
		Execution:   exec,
		Owner:       t.Owner,
		CommandLine: t.CommandLine,
		Container:   t.Container,
		Forced:      forced,
		CycleID:     t.CycleID,
	}
	if p.audit != nil {
		if err := p.audit.Append(*rec); err != nil {
			slog.Error("audit append failed", slog.Int("pid", rec.PID), slog.String("error", err.Error()))
		}
	}
	return rec, nil
}

func (p *Policy) failed(pid int, phase State, err error) error {
	serr := &SignalError{PID: pid, Phase: phase, Err: err}
	slog.Error("reclamation failed",
		slog.Int("pid", pid),
		slog.String("phase", string(phase)),
		slog.String("error", err.Error()))
	if p.audit != nil {
		if aerr := p.audit.AppendError(pid, serr); aerr != nil {
			slog.Error("audit append failed", slog.Int("pid", pid), slog.String("error", aerr.Error()))
		}
	}
	return serr
}

// vanished reports whether a signal failure means the process exited
// between the liveness check and the send.
func vanished(err error) bool {
	return errors.Is(err, process.ErrorProcessNotRunning) ||
		errors.Is(err, syscall.ESRCH)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// osSignaller delivers signals through the OS process table.
type osSignaller struct{}

func (osSignaller) Graceful(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

func (osSignaller) Force(ctx context.Context, pid int) error {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

func (osSignaller) Alive(ctx context.Context, pid int) bool {
	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	return err == nil && ok
}
