package inventory

import (
	"context"
	"fmt"
	"time"
)

// OwnerUnknown is the sentinel owner recorded when ownership cannot be
// derived from a container's mount metadata.
const OwnerUnknown = "unknown"

// Process is a single compute process observed on a GPU device. It is
// reconstructed every polling cycle and carries no identity across cycles.
type Process struct {
	PID         int    `json:"pid" yaml:"pid"`
	GPUIndex    int    `json:"gpuIndex" yaml:"gpuIndex"`
	MemoryMiB   uint64 `json:"memoryMiB" yaml:"memoryMiB"`
	CommandLine string `json:"commandLine,omitempty" yaml:"commandLine,omitempty"`
}

// Device is a physical GPU in stable enumeration order; the list index is
// the canonical GPU index used for job correlation.
type Device struct {
	Index     int       `json:"index" yaml:"index"`
	UUID      string    `json:"uuid" yaml:"uuid"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Processes []Process `json:"processes" yaml:"processes"`
}

// GPUInventory is the per-cycle view of all devices and their compute
// processes. Unresolved holds processes whose reported device could not be
// matched to any enumerated device; they are surfaced, not dropped.
type GPUInventory struct {
	Devices    []Device  `json:"devices" yaml:"devices"`
	Unresolved []Process `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
}

// JobState is the coarse scheduler job state relevant to attribution.
type JobState string

const (
	JobRunning JobState = "RUNNING"
	JobOther   JobState = "OTHER"
)

// Job is a read-only per-cycle copy of a scheduler job record.
type Job struct {
	ID         string        `json:"id" yaml:"id"`
	Owner      string        `json:"owner" yaml:"owner"`
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	State      JobState      `json:"state" yaml:"state"`
	NodeList   string        `json:"nodeList,omitempty" yaml:"nodeList,omitempty"`
	GPUIndices []int         `json:"gpuIndices" yaml:"gpuIndices"`
	WorkDir    string        `json:"workDir,omitempty" yaml:"workDir,omitempty"`
	RunTime    time.Duration `json:"runTime,omitempty" yaml:"runTime,omitempty"`
}

// OnGPU reports whether the job is scheduled on the given device index.
func (j Job) OnGPU(idx int) bool {
	for _, i := range j.GPUIndices {
		if i == idx {
			return true
		}
	}
	return false
}

// Container is a per-cycle copy of a container runtime record. Owner is
// derived positionally from the mount source path, a convention-based trust
// boundary; OwnerUnknown marks containers where no derivation was possible.
type Container struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name,omitempty" yaml:"name,omitempty"`
	Owner       string           `json:"owner" yaml:"owner"`
	MountSource string           `json:"mountSource,omitempty" yaml:"mountSource,omitempty"`
	Binds       []string         `json:"binds,omitempty" yaml:"binds,omitempty"`
	MemberPIDs  map[int]struct{} `json:"-" yaml:"-"`
}

// HasPID reports whether the container's process namespace claims the pid.
func (c Container) HasPID(pid int) bool {
	_, ok := c.MemberPIDs[pid]
	return ok
}

// GPUCollector produces the per-device process table. Zero GPUs or zero
// active processes is an empty inventory, not an error.
type GPUCollector interface {
	Collect(ctx context.Context) (GPUInventory, error)
}

// JobCollector produces scheduler jobs in scheduler-listing order. A job with
// a malformed GPU index specification contributes an empty index set; it
// never aborts the collection.
type JobCollector interface {
	Collect(ctx context.Context) ([]Job, error)
}

// ContainerCollector produces container records including their member pids.
type ContainerCollector interface {
	Collect(ctx context.Context) ([]Container, error)
}

// Factory creates the three collectors with their dependencies. The
// interface enables dependency injection for testing.
type Factory interface {
	CreateGPUCollector() GPUCollector
	CreateJobCollector() JobCollector
	CreateContainerCollector() ContainerCollector
}

// CollectionError marks a data source as unreachable or unparseable. The
// pipeline treats it as fail-soft: the source contributes an empty result
// and the error is recorded as a warning.
type CollectionError struct {
	Source string
	Err    error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting %s inventory: %v", e.Source, e.Err)
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}

// NewCollectionError wraps err as a CollectionError for the named source.
func NewCollectionError(source string, err error) *CollectionError {
	return &CollectionError{Source: source, Err: err}
}
