package gpu

import (
	"context"
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
)

const bytesPerMiB = 1024 * 1024

func collectNVML(ctx context.Context) (inventory.GPUInventory, error) {
	if err := ctx.Err(); err != nil {
		return inventory.GPUInventory{}, err
	}

	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return inventory.GPUInventory{}, fmt.Errorf("nvml init failed: %s", nvml.ErrorString(ret))
	}
	defer func() { _ = nvml.Shutdown() }()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return inventory.GPUInventory{}, fmt.Errorf("nvml device count failed: %s", nvml.ErrorString(ret))
	}

	inv := inventory.GPUInventory{Devices: make([]inventory.Device, 0, count)}
	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return inventory.GPUInventory{}, fmt.Errorf("nvml device handle index=%d failed: %s", i, nvml.ErrorString(ret))
		}

		uuid, _ := dev.GetUUID()
		name, _ := dev.GetName()

		procs, ret := dev.GetComputeRunningProcesses()
		if ret != nvml.SUCCESS && ret != nvml.ERROR_NOT_FOUND {
			return inventory.GPUInventory{}, fmt.Errorf("nvml compute processes index=%d failed: %s", i, nvml.ErrorString(ret))
		}

		list := make([]inventory.Process, 0, len(procs))
		for _, p := range procs {
			list = append(list, inventory.Process{
				PID:       int(p.Pid),
				GPUIndex:  i,
				MemoryMiB: p.UsedGpuMemory / bytesPerMiB,
			})
		}

		inv.Devices = append(inv.Devices, inventory.Device{
			Index:     i,
			UUID:      uuid,
			Name:      name,
			Processes: list,
		})
	}

	return inv, nil
}
