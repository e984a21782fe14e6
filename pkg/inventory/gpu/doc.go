// Package gpu collects the per-device GPU compute process table.
//
// Two backends are supported:
//
//   - nvml: NVML bindings via github.com/NVIDIA/go-nvml. Preferred on nodes
//     where the driver library is available to the agent.
//   - smi: nvidia-smi in query mode, joining the compute-apps listing against
//     the device enumeration (nvidia-smi -L) by GPU UUID. The device list
//     order defines the canonical GPU index.
//
// Either backend returns an empty inventory when the node has no GPUs or no
// active compute processes; that is not an error. A compute process whose
// device UUID matches no enumerated device is reported in
// GPUInventory.Unresolved rather than silently dropped.
package gpu
