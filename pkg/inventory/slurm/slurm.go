package slurm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

const (
	squeueCommand   = "squeue"
	scontrolCommand = "scontrol"

	// One record per job: id, owner, name, state, node list.
	squeueFormat = "%i %u %j %T %R"
)

// Collector gathers the SLURM job table. It implements the
// inventory.JobCollector interface.
type Collector struct {
	// runner overrides command execution in tests.
	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Collect returns the jobs in squeue listing order. Per-job descriptor
// failures (scontrol errors, malformed GPU index specs) degrade the single
// job and are logged; only a total squeue failure is a collection error.
func (c *Collector) Collect(ctx context.Context) ([]inventory.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Debug("collecting SLURM job inventory")

	run := c.runner
	if run == nil {
		run = runCommand
	}

	out, err := run(ctx, squeueCommand, "-h", "-o", squeueFormat)
	if err != nil {
		return nil, inventory.NewCollectionError("slurm", err)
	}

	var jobs []inventory.Job
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			slog.Warn("skipping malformed squeue record", slog.String("record", line))
			continue
		}

		job := inventory.Job{
			ID:       fields[0],
			Owner:    fields[1],
			Name:     fields[2],
			State:    jobState(fields[3]),
			NodeList: fields[4],
		}

		descriptor, err := run(ctx, scontrolCommand, "show", "job", job.ID, "-dd")
		if err != nil {
			slog.Warn("scontrol descriptor unavailable, job kept without GPU detail",
				slog.String("job", job.ID),
				slog.String("error", err.Error()))
			jobs = append(jobs, job)
			continue
		}

		c.enrich(&job, string(descriptor))
		jobs = append(jobs, job)
	}

	slog.Debug("collected SLURM jobs", slog.Int("count", len(jobs)))
	return jobs, nil
}

// enrich fills GPU indices, working directory and run time from the
// scontrol -dd descriptor.
func (c *Collector) enrich(job *inventory.Job, descriptor string) {
	if spec := indexSpec(descriptor); spec != "" {
		indices, err := ExpandIndexSpec(spec)
		if err != nil {
			// Malformed spec degrades this job to an empty index set;
			// attribution then simply never selects it as a candidate.
			slog.Warn("malformed GPU index spec",
				slog.String("job", job.ID),
				slog.String("spec", spec),
				slog.String("error", err.Error()))
		}
		job.GPUIndices = indices
	}

	job.WorkDir = descriptorField(descriptor, "WorkDir")

	if rt := descriptorField(descriptor, "RunTime"); rt != "" {
		d, err := ParseRunTime(rt)
		if err != nil {
			slog.Warn("unparseable run time",
				slog.String("job", job.ID),
				slog.String("runTime", rt))
		} else {
			job.RunTime = d
		}
	}
}

func jobState(s string) inventory.JobState {
	if strings.EqualFold(s, string(inventory.JobRunning)) {
		return inventory.JobRunning
	}
	return inventory.JobOther
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
