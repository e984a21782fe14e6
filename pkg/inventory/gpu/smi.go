package gpu

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

const defaultSMIPath = "nvidia-smi"

var errNoResults = errors.New("nvidia-smi reported no results")

// deviceLineRe matches nvidia-smi -L lines, e.g.
// "GPU 0: NVIDIA A100-SXM4-80GB (UUID: GPU-7bd2...)".
var deviceLineRe = regexp.MustCompile(`^GPU\s+(\d+):\s+(.+?)\s+\(UUID:\s+([^)]+)\)`)

func collectSMI(ctx context.Context, binary string) (inventory.GPUInventory, error) {
	if strings.TrimSpace(binary) == "" {
		binary = defaultSMIPath
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return inventory.GPUInventory{}, fmt.Errorf("nvidia-smi not found in PATH: %w", err)
	}

	devices, err := enumerateDevices(ctx, path)
	if err != nil {
		return inventory.GPUInventory{}, err
	}

	rows, err := queryComputeApps(ctx, path)
	if err != nil {
		// Some driver versions exit non-zero with "No running processes
		// found" when the node is idle; that is an empty table.
		if errors.Is(err, errNoResults) {
			rows = nil
		} else {
			return inventory.GPUInventory{}, err
		}
	}

	byUUID := make(map[string]*inventory.Device, len(devices))
	for i := range devices {
		byUUID[devices[i].UUID] = &devices[i]
	}

	var unresolved []inventory.Process
	for _, r := range rows {
		dev, ok := byUUID[r.uuid]
		if !ok {
			unresolved = append(unresolved, inventory.Process{PID: r.pid, GPUIndex: -1, MemoryMiB: r.memMiB})
			continue
		}
		dev.Processes = append(dev.Processes, inventory.Process{
			PID:       r.pid,
			GPUIndex:  dev.Index,
			MemoryMiB: r.memMiB,
		})
	}

	return inventory.GPUInventory{Devices: devices, Unresolved: unresolved}, nil
}

type computeRow struct {
	uuid   string
	pid    int
	memMiB uint64
}

func enumerateDevices(ctx context.Context, path string) ([]inventory.Device, error) {
	out, err := runSMI(ctx, path, "-L")
	if err != nil {
		if errors.Is(err, errNoResults) {
			return nil, nil
		}
		return nil, err
	}

	var devices []inventory.Device
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		m := deviceLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		// The listing order defines the canonical index; the printed
		// ordinal is validated against it.
		idx := len(devices)
		if printed, err := strconv.Atoi(m[1]); err == nil {
			idx = printed
		}
		devices = append(devices, inventory.Device{
			Index: idx,
			Name:  m[2],
			UUID:  m[3],
		})
	}
	return devices, nil
}

func queryComputeApps(ctx context.Context, path string) ([]computeRow, error) {
	out, err := runSMI(ctx, path,
		"--query-compute-apps=gpu_uuid,pid,used_memory",
		"--format=csv,noheader,nounits",
	)
	if err != nil {
		return nil, err
	}
	return parseComputeApps(out), nil
}

func parseComputeApps(out []byte) []computeRow {
	var rows []computeRow
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cols := strings.Split(line, ",")
		if len(cols) < 3 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(cols[1]))
		if err != nil {
			continue
		}
		mem, _ := strconv.ParseUint(strings.TrimSpace(cols[2]), 10, 64)
		rows = append(rows, computeRow{
			uuid:   strings.TrimSpace(cols[0]),
			pid:    pid,
			memMiB: mem,
		})
	}
	return rows
}

func runSMI(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		se := strings.TrimSpace(stderr.String())
		if strings.Contains(strings.ToLower(se), "no running processes") ||
			strings.Contains(strings.ToLower(se), "no devices were found") {
			return nil, errNoResults
		}
		return nil, fmt.Errorf("nvidia-smi %s failed: %w: %s", strings.Join(args, " "), err, se)
	}
	return out, nil
}
