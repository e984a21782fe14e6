package proctree

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// DefaultDepth is the number of generations beneath a job supervisor within
// which a pid is considered a member of the job's process tree.
const DefaultDepth = 4

// DefaultSupervisorName is the scheduler's per-job step daemon process name.
const DefaultSupervisorName = "slurmstepd"

// Entry is one process row in a snapshot.
type Entry struct {
	PID         int
	PPID        int
	Name        string
	CommandLine string
}

// Snapshot is an immutable view of the process table at capture time.
type Snapshot struct {
	entries  map[int]Entry
	children map[int][]int
}

// NewSnapshot builds a snapshot from explicit entries. Used by Capture and
// by tests that fabricate process trees.
func NewSnapshot(entries []Entry) *Snapshot {
	s := &Snapshot{
		entries:  make(map[int]Entry, len(entries)),
		children: make(map[int][]int),
	}
	for _, e := range entries {
		s.entries[e.PID] = e
		s.children[e.PPID] = append(s.children[e.PPID], e.PID)
	}
	return s
}

// Capture reads the host process table into a snapshot. Per-process read
// failures (races with exiting processes) are skipped.
func Capture(ctx context.Context) (*Snapshot, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(procs))
	for _, p := range procs {
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		cmdline, _ := p.CmdlineWithContext(ctx)
		entries = append(entries, Entry{
			PID:         int(p.Pid),
			PPID:        int(ppid),
			Name:        name,
			CommandLine: cmdline,
		})
	}

	slog.Debug("captured process table", slog.Int("processes", len(entries)))
	return NewSnapshot(entries), nil
}

// Lookup returns the entry for pid.
func (s *Snapshot) Lookup(pid int) (Entry, bool) {
	e, ok := s.entries[pid]
	return e, ok
}

// CommandLine returns the captured command line for pid, empty if unknown.
func (s *Snapshot) CommandLine(pid int) string {
	return s.entries[pid].CommandLine
}

// FindSupervisor locates the supervisor process for a job by the scheduler's
// job-scoped naming convention: a process named daemon whose identity
// carries the "[<jobID>.batch]" step marker. At most one such process exists
// per job on a node; the first match is returned.
func (s *Snapshot) FindSupervisor(daemon, jobID string) (int, bool) {
	marker := "[" + jobID + ".batch]"
	for pid, e := range s.entries {
		id := e.CommandLine
		if id == "" {
			id = e.Name
		}
		if strings.Contains(id, daemon) && strings.Contains(id, marker) {
			return pid, true
		}
	}
	return 0, false
}

// WithinDepth reports whether pid appears within maxDepth generations
// beneath root, root itself counting as depth zero. The walk is an explicit
// breadth-first traversal over the owned snapshot; live OS state is never
// re-queried mid-traversal.
func (s *Snapshot) WithinDepth(root, pid, maxDepth int) bool {
	if root == pid {
		return true
	}
	frontier := []int{root}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []int
		for _, parent := range frontier {
			for _, child := range s.children[parent] {
				if child == pid {
					return true
				}
				next = append(next, child)
			}
		}
		frontier = next
	}
	return false
}
