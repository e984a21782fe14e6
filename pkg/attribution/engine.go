package attribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/proctree"
)

// Classification is the ownership verdict category for a GPU process.
type Classification string

const (
	// SchedulerOwned marks a bare-metal process owned by a scheduler job.
	SchedulerOwned Classification = "SCHEDULER_OWNED"
	// ContainerSchedulerOwned marks a containerized process whose
	// container acts on behalf of a scheduler job.
	ContainerSchedulerOwned Classification = "CONTAINER_SCHEDULER_OWNED"
	// Orphan marks a process not attributable to any scheduler job.
	Orphan Classification = "ORPHAN"
)

// Verdict is the per-process attribution result. Computed fresh each cycle,
// never persisted.
type Verdict struct {
	PID            int            `json:"pid" yaml:"pid"`
	Classification Classification `json:"classification" yaml:"classification"`
	JobID          string         `json:"jobId,omitempty" yaml:"jobId,omitempty"`
	ContainerID    string         `json:"containerId,omitempty" yaml:"containerId,omitempty"`
}

// Containerized reports whether the process was claimed by a container.
func (v Verdict) Containerized() bool {
	return v.ContainerID != ""
}

// AmbiguityError flags an inconsistency in the observed inventory for one
// process. The verdict it accompanies fails safe toward Orphan; the flag is
// recorded, never suppressed.
type AmbiguityError struct {
	PID    int
	Reason string
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("attribution ambiguity for pid %d: %s", e.PID, e.Reason)
}

// OwnerFunc resolves the OS-level account owning a pid.
type OwnerFunc func(ctx context.Context, pid int) (string, error)

// Engine classifies GPU processes against one cycle's inventory snapshot.
// The zero value is not usable; construct with NewEngine.
type Engine struct {
	tree           *proctree.Snapshot
	treeDepth      int
	supervisorName string
	ownerLookup    OwnerFunc
}

// Option customizes an Engine.
type Option func(*Engine)

// WithTreeDepth overrides the bounded membership depth.
func WithTreeDepth(depth int) Option {
	return func(e *Engine) { e.treeDepth = depth }
}

// WithSupervisorName overrides the scheduler step daemon process name.
func WithSupervisorName(name string) Option {
	return func(e *Engine) { e.supervisorName = name }
}

// WithOwnerLookup overrides the OS-level process owner lookup.
func WithOwnerLookup(fn OwnerFunc) Option {
	return func(e *Engine) { e.ownerLookup = fn }
}

// NewEngine creates an engine over an owned process-tree snapshot.
func NewEngine(tree *proctree.Snapshot, opts ...Option) *Engine {
	e := &Engine{
		tree:           tree,
		treeDepth:      proctree.DefaultDepth,
		supervisorName: proctree.DefaultSupervisorName,
		ownerLookup:    proctree.Owner,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify produces the ownership verdict for one GPU process. Jobs are
// evaluated in scheduler-listing order; the first job satisfying both the
// tree-membership and the identity condition wins. A returned
// AmbiguityError accompanies a still-valid, fail-safe verdict.
func (e *Engine) Classify(ctx context.Context, proc inventory.Process, jobs []inventory.Job, containers []inventory.Container) (Verdict, error) {
	verdict := Verdict{PID: proc.PID, Classification: Orphan}
	var flagged error

	claimant, err := e.containerClaim(proc.PID, containers)
	if err != nil {
		flagged = errors.Join(flagged, err)
	}
	if claimant != nil {
		verdict.ContainerID = claimant.ID
	}

	// A device that could not be resolved to any enumerated GPU has no
	// candidate jobs by definition; the process stays orphan-eligible but
	// the condition is flagged, not silently absorbed.
	if proc.GPUIndex < 0 {
		flagged = errors.Join(flagged, &AmbiguityError{
			PID:    proc.PID,
			Reason: "process device could not be resolved to a known GPU index",
		})
		return verdict, flagged
	}

	for _, job := range jobs {
		// A job not scheduled on this device cannot own a process on it.
		if !job.OnGPU(proc.GPUIndex) {
			continue
		}
		ok, err := e.jobOwns(ctx, proc.PID, job, claimant)
		if err != nil {
			flagged = errors.Join(flagged, err)
			continue
		}
		if !ok {
			continue
		}
		verdict.JobID = job.ID
		if claimant != nil {
			verdict.Classification = ContainerSchedulerOwned
		} else {
			verdict.Classification = SchedulerOwned
		}
		return verdict, flagged
	}

	return verdict, flagged
}

// containerClaim finds the container whose process namespace contains pid.
// Multiple claimants is an inconsistency: the process is treated as
// unclaimed by any container and the conflict is flagged.
func (e *Engine) containerClaim(pid int, containers []inventory.Container) (*inventory.Container, error) {
	var claimant *inventory.Container
	for i := range containers {
		if !containers[i].HasPID(pid) {
			continue
		}
		if claimant != nil {
			return nil, &AmbiguityError{
				PID:    pid,
				Reason: fmt.Sprintf("claimed by multiple containers (%s, %s)", claimant.ID, containers[i].ID),
			}
		}
		claimant = &containers[i]
	}
	return claimant, nil
}

// jobOwns tests the two ownership conditions for a candidate job:
// bounded-depth membership in the tree beneath the job supervisor, then
// identity agreement between the job owner and the process owner.
func (e *Engine) jobOwns(ctx context.Context, pid int, job inventory.Job, claimant *inventory.Container) (bool, error) {
	root, ok := e.tree.FindSupervisor(e.supervisorName, job.ID)
	if !ok {
		return false, nil
	}
	if !e.tree.WithinDepth(root, pid, e.treeDepth) {
		return false, nil
	}

	if claimant != nil {
		if claimant.Owner == job.Owner {
			return true, nil
		}
		// Tree proximity without identity agreement: the mount-derived
		// ownership convention disagreed with the scheduler record.
		slog.Debug("container owner mismatch on tree match",
			slog.Int("pid", pid),
			slog.String("job", job.ID),
			slog.String("jobOwner", job.Owner),
			slog.String("containerOwner", claimant.Owner))
		return false, nil
	}

	owner, err := e.ownerLookup(ctx, pid)
	if err != nil {
		return false, &AmbiguityError{
			PID:    pid,
			Reason: fmt.Sprintf("process owner unresolved during identity check against job %s: %v", job.ID, err),
		}
	}
	return owner == job.Owner, nil
}
