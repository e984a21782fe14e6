package sweep

import (
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory/docker"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory/gpu"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory/slurm"
)

// defaultFactory builds production collectors from the sweep configuration.
type defaultFactory struct {
	cfg *Config
}

// NewDefaultFactory returns a factory producing the real nvidia-smi/NVML,
// squeue/scontrol, and Docker engine collectors.
func NewDefaultFactory(cfg *Config) inventory.Factory {
	return &defaultFactory{cfg: cfg}
}

func (f *defaultFactory) CreateGPUCollector() inventory.GPUCollector {
	return &gpu.Collector{
		Backend: gpu.Backend(f.cfg.GPUBackend),
		SMIPath: f.cfg.SMIPath,
	}
}

func (f *defaultFactory) CreateJobCollector() inventory.JobCollector {
	return &slurm.Collector{}
}

func (f *defaultFactory) CreateContainerCollector() inventory.ContainerCollector {
	return &docker.Collector{
		Host:         f.cfg.DockerHost,
		OwnerSegment: f.cfg.OwnerSegment,
	}
}
