package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/attribution"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/reclaim"
)

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "0 hours, 0 minutes, 30 seconds", HumanizeDuration(30*time.Second))
	assert.Equal(t, "3 hours, 4 minutes, 5 seconds", HumanizeDuration(3*time.Hour+4*time.Minute+5*time.Second))
	assert.Equal(t, "2 days, 1 hours, 0 minutes, 0 seconds", HumanizeDuration(49*time.Hour))
	assert.Equal(t, "0 hours, 0 minutes, 0 seconds", HumanizeDuration(-time.Second))
}

func TestTally(t *testing.T) {
	r := &Report{
		Devices: []DeviceSection{
			{
				Device: inventory.Device{Index: 0},
				Outcomes: []Outcome{
					{Verdict: attribution.Verdict{Classification: attribution.SchedulerOwned, JobID: "101"}},
					{
						Verdict: attribution.Verdict{Classification: attribution.Orphan},
						Kill:    &reclaim.KillRecord{Forced: true},
					},
				},
			},
		},
		Unresolved: []Outcome{
			{
				Verdict: attribution.Verdict{Classification: attribution.Orphan},
				Errors:  []string{"signal failed"},
			},
		},
	}
	r.Tally()

	assert.Equal(t, 3, r.Totals.Processes)
	assert.Equal(t, 1, r.Totals.SchedulerOwned)
	assert.Equal(t, 2, r.Totals.Orphans)
	assert.Equal(t, 1, r.Totals.Reclaimed)
	assert.Equal(t, 1, r.Totals.Forced)
	assert.Equal(t, 1, r.Totals.Failed)
}

func TestRenderText(t *testing.T) {
	r := &Report{
		CycleID:   "c-1",
		StartedAt: time.Now(),
		Devices: []DeviceSection{
			{
				Device: inventory.Device{Index: 0, UUID: "GPU-aaa", Name: "A100"},
				Outcomes: []Outcome{
					{
						Process: inventory.Process{PID: 4242, GPUIndex: 0, MemoryMiB: 2048, CommandLine: "python train.py"},
						Verdict: attribution.Verdict{PID: 4242, Classification: attribution.SchedulerOwned, JobID: "101"},
						Owner:   "alice",
					},
					{
						Process: inventory.Process{PID: 5151, GPUIndex: 0, MemoryMiB: 512, CommandLine: "python stray.py"},
						Verdict: attribution.Verdict{PID: 5151, Classification: attribution.Orphan},
						Owner:   "mallory",
						Kill:    &reclaim.KillRecord{PID: 5151, Forced: false},
					},
				},
				Jobs: []JobView{
					{
						Job: inventory.Job{
							ID: "101", Owner: "alice", Name: "train", State: inventory.JobRunning,
							NodeList: "dgx-01", WorkDir: "/home/alice", RunTime: 90 * time.Minute,
						},
						SupervisorPID: 900,
					},
				},
			},
		},
	}
	r.Tally()

	var buf bytes.Buffer
	require.NoError(t, r.RenderText(&buf))
	out := buf.String()

	assert.Contains(t, out, "GPU Usage Analysis (cycle c-1):")
	assert.Contains(t, out, "GPU 0:")
	assert.Contains(t, out, "PID 4242 (Live GPU Memory: 2048 MiB):")
	assert.Contains(t, out, "Resource Management: SLURM & belongs to Jobid 101")
	assert.Contains(t, out, "Resource Management: Non-SLURM")
	assert.Contains(t, out, "  - Reclaimed: yes\n")
	assert.Contains(t, out, "SLURM Job ID: 101")
	assert.Contains(t, out, "Running Time: 1 hours, 30 minutes, 0 seconds")
	assert.Contains(t, out, "Supervisor PID: 900")
	assert.Contains(t, out, "Orphans: 1")
}

func TestRenderTextContainer(t *testing.T) {
	r := &Report{
		CycleID: "c-2",
		Devices: []DeviceSection{
			{
				Device: inventory.Device{Index: 1},
				Outcomes: []Outcome{
					{
						Process: inventory.Process{PID: 777, GPUIndex: 1, MemoryMiB: 128, CommandLine: "python infer.py"},
						Verdict: attribution.Verdict{
							PID:            777,
							Classification: attribution.ContainerSchedulerOwned,
							JobID:          "202",
							ContainerID:    "abc123",
						},
						Container: &inventory.Container{
							ID: "abc123", Name: "trainer", Owner: "bob",
							MountSource: "/home/bob/data",
							Binds:       []string{"/home/bob/data:/data"},
						},
					},
				},
			},
		},
	}
	r.Tally()

	var buf bytes.Buffer
	require.NoError(t, r.RenderText(&buf))
	out := buf.String()

	assert.Contains(t, out, "Execution Type: Container")
	assert.Contains(t, out, "Container Name: trainer")
	assert.Contains(t, out, "Container User: bob")
	assert.Contains(t, out, "Mount Source: /home/bob/data")
	assert.Contains(t, out, "Container Binds: /home/bob/data:/data")
	assert.NotContains(t, out, "  - User:")
}
