// Package report assembles and renders the per-cycle sweep result: every
// GPU process with its attribution verdict and any reclamation outcome,
// plus the scheduler jobs scheduled on each device. Every observed process
// appears exactly once; silent drops are forbidden.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/attribution"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/reclaim"
)

// Outcome is the full per-process result for one cycle.
type Outcome struct {
	Process inventory.Process   `json:"process" yaml:"process"`
	Verdict attribution.Verdict `json:"verdict" yaml:"verdict"`
	Owner   string              `json:"owner,omitempty" yaml:"owner,omitempty"`

	// Kill is set when the process was reclaimed this cycle.
	Kill *reclaim.KillRecord `json:"kill,omitempty" yaml:"kill,omitempty"`

	// Errors carries attribution flags and reclamation failures for this
	// process.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Container summarizes the claiming container, when any.
	Container *inventory.Container `json:"container,omitempty" yaml:"container,omitempty"`
}

// JobView is a scheduler job as shown on a device section.
type JobView struct {
	Job           inventory.Job `json:"job" yaml:"job"`
	SupervisorPID int           `json:"supervisorPid,omitempty" yaml:"supervisorPid,omitempty"`
}

// DeviceSection groups outcomes and jobs per GPU device.
type DeviceSection struct {
	Device   inventory.Device `json:"device" yaml:"device"`
	Outcomes []Outcome        `json:"outcomes" yaml:"outcomes"`
	Jobs     []JobView        `json:"jobs,omitempty" yaml:"jobs,omitempty"`
}

// Totals summarizes the cycle.
type Totals struct {
	Processes      int `json:"processes" yaml:"processes"`
	SchedulerOwned int `json:"schedulerOwned" yaml:"schedulerOwned"`
	ContainerOwned int `json:"containerOwned" yaml:"containerOwned"`
	Orphans        int `json:"orphans" yaml:"orphans"`
	Reclaimed      int `json:"reclaimed" yaml:"reclaimed"`
	Forced         int `json:"forced" yaml:"forced"`
	Failed         int `json:"failed" yaml:"failed"`
}

// Report is the rendered result of one sweep cycle.
type Report struct {
	CycleID    string          `json:"cycleId" yaml:"cycleId"`
	StartedAt  time.Time       `json:"startedAt" yaml:"startedAt"`
	Duration   time.Duration   `json:"duration" yaml:"duration"`
	DryRun     bool            `json:"dryRun,omitempty" yaml:"dryRun,omitempty"`
	Devices    []DeviceSection `json:"devices" yaml:"devices"`
	Unresolved []Outcome       `json:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Warnings   []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Totals     Totals          `json:"totals" yaml:"totals"`
}

// Tally recomputes the totals from the accumulated outcomes.
func (r *Report) Tally() {
	var t Totals
	count := func(o Outcome) {
		t.Processes++
		switch o.Verdict.Classification {
		case attribution.SchedulerOwned:
			t.SchedulerOwned++
		case attribution.ContainerSchedulerOwned:
			t.ContainerOwned++
		case attribution.Orphan:
			t.Orphans++
		}
		if o.Kill != nil {
			t.Reclaimed++
			if o.Kill.Forced {
				t.Forced++
			}
		}
		if o.Verdict.Classification == attribution.Orphan && o.Kill == nil && len(o.Errors) > 0 {
			t.Failed++
		}
	}
	for _, d := range r.Devices {
		for _, o := range d.Outcomes {
			count(o)
		}
	}
	for _, o := range r.Unresolved {
		count(o)
	}
	r.Totals = t
}

// RenderText writes the report in the historical human-readable layout.
func (r *Report) RenderText(w io.Writer) error {
	bw := &errWriter{w: w}

	bw.printf("\nGPU Usage Analysis (cycle %s):\n", r.CycleID)
	bw.printf("%s\n", strings.Repeat("=", 80))
	if r.DryRun {
		bw.printf("DRY RUN: no processes were signaled\n")
	}

	for _, section := range r.Devices {
		bw.printf("\nGPU %d:\n", section.Device.Index)
		bw.printf("%s\n", strings.Repeat("-", 40))

		for _, o := range section.Outcomes {
			renderOutcome(bw, o)
		}
		for _, jv := range section.Jobs {
			renderJob(bw, jv)
		}
	}

	if len(r.Unresolved) > 0 {
		bw.printf("\nUnresolved devices:\n")
		bw.printf("%s\n", strings.Repeat("-", 40))
		for _, o := range r.Unresolved {
			renderOutcome(bw, o)
		}
	}

	for _, warning := range r.Warnings {
		bw.printf("Warning: %s\n", warning)
	}

	bw.printf("\nProcesses: %d  SLURM-owned: %d  Container+SLURM: %d  Orphans: %d  Reclaimed: %d (forced: %d, failed: %d)\n",
		r.Totals.Processes, r.Totals.SchedulerOwned, r.Totals.ContainerOwned,
		r.Totals.Orphans, r.Totals.Reclaimed, r.Totals.Forced, r.Totals.Failed)

	return bw.err
}

func renderOutcome(bw *errWriter, o Outcome) {
	bw.printf("PID %d (Live GPU Memory: %d MiB):\n", o.Process.PID, o.Process.MemoryMiB)

	execType := "Bare Metal"
	if o.Verdict.Containerized() {
		execType = "Container"
	}
	bw.printf("  - Execution Type: %s\n", execType)

	switch o.Verdict.Classification {
	case attribution.SchedulerOwned, attribution.ContainerSchedulerOwned:
		bw.printf("  - Resource Management: SLURM & belongs to Jobid %s\n", o.Verdict.JobID)
	default:
		bw.printf("  - Resource Management: Non-SLURM\n")
	}
	bw.printf("  - Live GPU Memory Usage: %d MiB\n", o.Process.MemoryMiB)

	if o.Container != nil {
		bw.printf("  - Container Name: %s\n", o.Container.Name)
		bw.printf("  - Container User: %s\n", o.Container.Owner)
		bw.printf("  - Mount Source: %s\n", o.Container.MountSource)
		if len(o.Container.Binds) > 0 {
			bw.printf("  - Container Binds: %s\n", strings.Join(o.Container.Binds, ", "))
		}
	} else {
		bw.printf("  - User: %s\n", orUnknown(o.Owner))
	}
	bw.printf("  - Command: %s\n", orUnknown(o.Process.CommandLine))

	if o.Kill != nil {
		if o.Kill.Forced {
			bw.printf("  - Reclaimed: yes (forced)\n")
		} else {
			bw.printf("  - Reclaimed: yes\n")
		}
	}
	for _, e := range o.Errors {
		bw.printf("  - Error: %s\n", e)
	}
	bw.printf("\n")
}

func renderJob(bw *errWriter, jv JobView) {
	job := jv.Job
	bw.printf("\nSLURM Job ID: %s\n", job.ID)
	bw.printf("  - User: %s\n", job.Owner)
	bw.printf("  - Job Name: %s\n", job.Name)
	bw.printf("  - State: %s\n", job.State)
	bw.printf("  - Node List: %s\n", job.NodeList)
	bw.printf("  - Working Directory: %s\n", job.WorkDir)
	bw.printf("  - Running Time: %s\n", HumanizeDuration(job.RunTime))
	if jv.SupervisorPID != 0 {
		bw.printf("  - Supervisor PID: %d\n", jv.SupervisorPID)
	}
}

// HumanizeDuration renders a run time the way the audit trail always has:
// "2 days, 3 hours, 4 minutes, 5 seconds" (days omitted when zero).
func HumanizeDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%d days, %d hours, %d minutes, %d seconds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%d hours, %d minutes, %d seconds", hours, minutes, seconds)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

// errWriter collects the first write error so rendering code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
