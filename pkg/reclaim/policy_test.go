package reclaim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

// fakeSignaller scripts liveness and signal outcomes per pid.
type fakeSignaller struct {
	mu            sync.Mutex
	alive         map[int]bool
	gracefulErr   map[int]error
	forceErr      map[int]error
	diesOnTerm    map[int]bool
	gracefulSends []int
	forceSends    []int
}

func (f *fakeSignaller) Graceful(_ context.Context, pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gracefulSends = append(f.gracefulSends, pid)
	if err := f.gracefulErr[pid]; err != nil {
		return err
	}
	if f.diesOnTerm[pid] {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeSignaller) Force(_ context.Context, pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forceSends = append(f.forceSends, pid)
	if err := f.forceErr[pid]; err != nil {
		return err
	}
	f.alive[pid] = false
	return nil
}

func (f *fakeSignaller) Alive(_ context.Context, pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive[pid]
}

func noSleep(context.Context, time.Duration) error { return nil }

func testAudit(t *testing.T) (*AuditLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpu_kills.log")
	audit, err := OpenAuditLog(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })
	return audit, path
}

func orphanTarget(pid int, memMiB uint64) Target {
	return Target{
		Process:     inventory.Process{PID: pid, GPUIndex: 2, MemoryMiB: memMiB},
		Owner:       "bob",
		CommandLine: "python mine.py",
		CycleID:     "cycle-1",
	}
}

func TestReclaim_GracefulSufficient(t *testing.T) {
	sig := &fakeSignaller{alive: map[int]bool{6000: true}, diesOnTerm: map[int]bool{6000: true}}
	audit, path := testAudit(t)
	p := NewPolicy(audit, WithSignaller(sig), withSleep(noSleep))

	rec, err := p.Reclaim(context.Background(), orphanTarget(6000, 1024))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.False(t, rec.Forced)
	assert.Equal(t, ExecBareMetal, rec.Execution)
	assert.Equal(t, []int{6000}, sig.gracefulSends)
	assert.Empty(t, sig.forceSends)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PID 6000 (Live GPU Memory: 1024 MiB):")
	assert.Contains(t, string(data), "  - User: bob")
	assert.NotContains(t, string(data), "Force kill was required")
}

func TestReclaim_ForceRequired(t *testing.T) {
	sig := &fakeSignaller{alive: map[int]bool{6000: true}}
	audit, path := testAudit(t)
	p := NewPolicy(audit, WithSignaller(sig), withSleep(noSleep))

	rec, err := p.Reclaim(context.Background(), orphanTarget(6000, 2048))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.Forced)
	assert.Equal(t, []int{6000}, sig.gracefulSends)
	assert.Equal(t, []int{6000}, sig.forceSends)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Force kill was required")
}

func TestReclaim_AlreadyExitedIsIdempotentSuccess(t *testing.T) {
	sig := &fakeSignaller{alive: map[int]bool{}}
	audit, _ := testAudit(t)
	p := NewPolicy(audit, WithSignaller(sig), withSleep(noSleep))

	rec, err := p.Reclaim(context.Background(), orphanTarget(8000, 512))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.False(t, rec.Forced)
	assert.Empty(t, sig.gracefulSends, "no signal may be sent to an exited process")
}

func TestReclaim_VanishedMidSendIsTerminated(t *testing.T) {
	// The process exits between the liveness check and the signal send:
	// the ESRCH failure is success, not a reclamation error.
	sig := &fakeSignaller{
		alive:       map[int]bool{8000: true},
		gracefulErr: map[int]error{8000: syscall.ESRCH},
	}
	audit, _ := testAudit(t)
	p := NewPolicy(audit, WithSignaller(sig), withSleep(noSleep))

	rec, err := p.Reclaim(context.Background(), orphanTarget(8000, 512))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Forced)
}

func TestReclaim_SignalFailureIsTerminal(t *testing.T) {
	sig := &fakeSignaller{
		alive:       map[int]bool{6000: true},
		gracefulErr: map[int]error{6000: syscall.EPERM},
	}
	audit, path := testAudit(t)
	p := NewPolicy(audit, WithSignaller(sig), withSleep(noSleep))

	rec, err := p.Reclaim(context.Background(), orphanTarget(6000, 1024))
	require.Error(t, err)
	assert.Nil(t, rec)

	var serr *SignalError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 6000, serr.PID)
	assert.Equal(t, StateGracefulSent, serr.Phase)

	// The failure itself lands in the audit trail.
	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Contains(t, string(data), "Error killing PID 6000")
}

func TestReclaim_DryRunSendsNothing(t *testing.T) {
	sig := &fakeSignaller{alive: map[int]bool{6000: true}}
	audit, path := testAudit(t)
	p := NewPolicy(audit, WithSignaller(sig), withSleep(noSleep), WithDryRun(true))

	rec, err := p.Reclaim(context.Background(), orphanTarget(6000, 1024))
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, sig.gracefulSends)

	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	assert.Empty(t, data, "dry run must not write audit records")
}

func TestReclaim_ContainerRecordLayout(t *testing.T) {
	sig := &fakeSignaller{alive: map[int]bool{7000: true}, diesOnTerm: map[int]bool{7000: true}}
	audit, path := testAudit(t)
	p := NewPolicy(audit, WithSignaller(sig), withSleep(noSleep))

	target := Target{
		Process:     inventory.Process{PID: 7000, GPUIndex: 1, MemoryMiB: 4096},
		Owner:       "carol",
		CommandLine: "python finetune.py",
		Container: &inventory.Container{
			ID:          "c1",
			Name:        "trainer",
			Owner:       "carol",
			MountSource: "/home/carol/data",
			Binds:       []string{"/home/carol/data:/data"},
		},
		CycleID: "cycle-2",
	}

	rec, err := p.Reclaim(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, ExecContainer, rec.Execution)

	data, rerr := os.ReadFile(path)
	require.NoError(t, rerr)
	out := string(data)
	assert.Contains(t, out, "  - Execution Type: Container")
	assert.Contains(t, out, "  - Container Name: trainer")
	assert.Contains(t, out, "  - Container User: carol")
	assert.Contains(t, out, "  - Mount Source: /home/carol/data")
	assert.Contains(t, out, "  - Container Binds: /home/carol/data:/data")
	assert.Contains(t, out, "  - Cycle: cycle-2")
}

func TestAuditLog_ConcurrentAppends(t *testing.T) {
	audit, path := testAudit(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			rec := KillRecord{
				PID:       pid,
				Timestamp: time.Now(),
				MemoryMiB: 100,
				Execution: ExecBareMetal,
				Owner:     "bob",
			}
			assert.NoError(t, audit.Append(rec))
		}(9000 + i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Every record must be intact: one "killed at" header per separator.
	headers := 0
	seps := 0
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case line == recordSeparator:
			seps++
		case strings.HasPrefix(line, "Process killed at "):
			headers++
		}
	}
	assert.Equal(t, 20, headers)
	assert.Equal(t, 20, seps)
}
