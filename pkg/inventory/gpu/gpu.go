package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

// Backend selects how GPU inventory is gathered.
type Backend string

const (
	// BackendNVML queries the driver through the NVML bindings.
	BackendNVML Backend = "nvml"
	// BackendSMI shells out to nvidia-smi query mode.
	BackendSMI Backend = "smi"
)

// Collector gathers the per-device compute process table.
// It implements the inventory.GPUCollector interface.
type Collector struct {
	// Backend selects nvml or smi collection. Empty defaults to smi.
	Backend Backend

	// SMIPath overrides the nvidia-smi binary location for the smi backend.
	SMIPath string
}

// Collect returns the GPU inventory for this cycle.
func (c *Collector) Collect(ctx context.Context) (inventory.GPUInventory, error) {
	if err := ctx.Err(); err != nil {
		return inventory.GPUInventory{}, err
	}

	slog.Debug("collecting GPU process inventory", slog.String("backend", string(c.backend())))

	var (
		inv inventory.GPUInventory
		err error
	)
	switch c.backend() {
	case BackendNVML:
		inv, err = collectNVML(ctx)
	case BackendSMI:
		inv, err = collectSMI(ctx, c.SMIPath)
	default:
		return inventory.GPUInventory{}, fmt.Errorf("unknown gpu backend: %q", c.Backend)
	}
	if err != nil {
		return inventory.GPUInventory{}, inventory.NewCollectionError("gpu", err)
	}

	procs := 0
	for _, d := range inv.Devices {
		procs += len(d.Processes)
	}
	slog.Debug("collected GPU inventory",
		slog.Int("devices", len(inv.Devices)),
		slog.Int("processes", procs),
		slog.Int("unresolved", len(inv.Unresolved)))
	return inv, nil
}

func (c *Collector) backend() Backend {
	switch Backend(strings.ToLower(strings.TrimSpace(string(c.Backend)))) {
	case BackendNVML:
		return BackendNVML
	default:
		return BackendSMI
	}
}
