package reclaim

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

// ExecutionType describes how a reclaimed process was running.
type ExecutionType string

const (
	ExecBareMetal ExecutionType = "Bare Metal"
	ExecContainer ExecutionType = "Container"
)

// KillRecord is the append-only audit entry for one reclamation action.
// Write-once; never mutated or deleted by this system.
type KillRecord struct {
	PID         int                  `json:"pid" yaml:"pid"`
	Timestamp   time.Time            `json:"timestamp" yaml:"timestamp"`
	MemoryMiB   uint64               `json:"memoryMiB" yaml:"memoryMiB"`
	Execution   ExecutionType        `json:"execution" yaml:"execution"`
	Owner       string               `json:"owner" yaml:"owner"`
	CommandLine string               `json:"commandLine,omitempty" yaml:"commandLine,omitempty"`
	Container   *inventory.Container `json:"container,omitempty" yaml:"container,omitempty"`
	Forced      bool                 `json:"forced" yaml:"forced"`
	CycleID     string               `json:"cycleId,omitempty" yaml:"cycleId,omitempty"`
}

const (
	auditTimeLayout  = "2006-01-02 15:04:05"
	recordSeparator  = "----------------------------------------"
	defaultAuditMode = 0o644
)

// AuditLog appends multi-line reclamation records to a text file. Appends
// are serialized so concurrent reclamations never interleave records.
type AuditLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenAuditLog opens (creating if needed) the audit file in append-only
// mode.
func OpenAuditLog(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultAuditMode)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &AuditLog{f: f}, nil
}

// Append writes one kill record.
func (a *AuditLog) Append(rec KillRecord) error {
	return a.write(formatRecord(rec))
}

// AppendError records a failed reclamation attempt so the audit trail
// reflects every action taken, successful or not.
func (a *AuditLog) AppendError(pid int, err error) error {
	return a.write(fmt.Sprintf("Error killing PID %d: %v\n", pid, err))
}

// Close releases the underlying file handle.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}

func (a *AuditLog) write(s string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.f.WriteString(s); err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	return nil
}

// formatRecord renders the record in the historical gpu_kills.log layout.
func formatRecord(rec KillRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nProcess killed at %s:\n", rec.Timestamp.Format(auditTimeLayout))
	fmt.Fprintf(&b, "PID %d (Live GPU Memory: %d MiB):\n", rec.PID, rec.MemoryMiB)
	fmt.Fprintf(&b, "  - Execution Type: %s\n", rec.Execution)
	fmt.Fprintf(&b, "  - Resource Management: Non-SLURM\n")
	fmt.Fprintf(&b, "  - Live GPU Memory Usage: %d MiB\n", rec.MemoryMiB)

	if rec.Container != nil {
		fmt.Fprintf(&b, "  - Container Name: %s\n", rec.Container.Name)
		fmt.Fprintf(&b, "  - Container User: %s\n", rec.Container.Owner)
		fmt.Fprintf(&b, "  - Mount Source: %s\n", rec.Container.MountSource)
		if len(rec.Container.Binds) > 0 {
			fmt.Fprintf(&b, "  - Container Binds: %s\n", strings.Join(rec.Container.Binds, ", "))
		}
	} else {
		fmt.Fprintf(&b, "  - User: %s\n", rec.Owner)
	}

	command := rec.CommandLine
	if command == "" {
		command = "Unknown"
	}
	fmt.Fprintf(&b, "  - Command: %s\n", command)
	if rec.CycleID != "" {
		fmt.Fprintf(&b, "  - Cycle: %s\n", rec.CycleID)
	}

	fmt.Fprintf(&b, "Killed PID %d successfully (Non-SLURM process)\n", rec.PID)
	if rec.Forced {
		b.WriteString("Force kill was required\n")
	}
	b.WriteString(recordSeparator + "\n")

	return b.String()
}
