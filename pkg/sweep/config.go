package sweep

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory/docker"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/inventory/gpu"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/proctree"
	"github.com/ERR-afk/DGX-Resource-Manager/pkg/reclaim"
)

// DefaultAuditPath is where kill records are appended when no override is
// given. Matches the path the node fleet has always used.
const DefaultAuditPath = "gpu_kills.log"

// Config holds sweep configuration.
type Config struct {
	// GPUBackend selects nvml or smi inventory collection.
	GPUBackend string `yaml:"gpuBackend"`

	// SMIPath overrides the nvidia-smi binary location.
	SMIPath string `yaml:"smiPath"`

	// DockerHost overrides the engine endpoint (DOCKER_HOST semantics).
	DockerHost string `yaml:"dockerHost"`

	// OwnerSegment is the mount-source path component naming the container
	// owner, counted over non-empty components from zero.
	OwnerSegment int `yaml:"ownerSegment"`

	// SupervisorName is the scheduler step daemon process name.
	SupervisorName string `yaml:"supervisorName"`

	// TreeDepth bounds the ancestor walk when testing job membership.
	TreeDepth int `yaml:"treeDepth"`

	// GraceWindow is the wait between the graceful and forced signals.
	GraceWindow time.Duration `yaml:"graceWindow"`

	// KillRateLimit caps reclamations per second. Zero disables the cap.
	KillRateLimit float64 `yaml:"killRateLimit"`

	// AuditPath is the append-only kill log location.
	AuditPath string `yaml:"auditPath"`

	// DryRun reports intended kills without signaling.
	DryRun bool `yaml:"dryRun"`

	// PollInterval is the cycle period in watch mode.
	PollInterval time.Duration `yaml:"pollInterval"`

	// MetricsAddr exposes Prometheus metrics in watch mode when non-empty,
	// e.g. ":9090".
	MetricsAddr string `yaml:"metricsAddr"`
}

// NewConfig returns a Config with defaults, overlaid with the YAML file at
// path (when non-empty) and then with DGXRM_* environment variables.
func NewConfig(path string) (*Config, error) {
	cfg := &Config{
		GPUBackend:     string(gpu.BackendSMI),
		OwnerSegment:   docker.DefaultOwnerSegment,
		SupervisorName: proctree.DefaultSupervisorName,
		TreeDepth:      proctree.DefaultDepth,
		GraceWindow:    reclaim.DefaultGraceWindow,
		AuditPath:      DefaultAuditPath,
		PollInterval:   5 * time.Minute,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DGXRM_GPU_BACKEND"); v != "" {
		c.GPUBackend = v
	}
	if v := os.Getenv("DGXRM_SMI_PATH"); v != "" {
		c.SMIPath = v
	}
	if v := os.Getenv("DGXRM_DOCKER_HOST"); v != "" {
		c.DockerHost = v
	}
	if v := os.Getenv("DGXRM_OWNER_SEGMENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.OwnerSegment = n
		}
	}
	if v := os.Getenv("DGXRM_AUDIT_PATH"); v != "" {
		c.AuditPath = v
	}
	if v := os.Getenv("DGXRM_GRACE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GraceWindow = d
		}
	}
	if v := os.Getenv("DGXRM_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := os.Getenv("DGXRM_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv("DGXRM_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DryRun = b
		}
	}
}

func (c *Config) validate() error {
	switch gpu.Backend(c.GPUBackend) {
	case gpu.BackendNVML, gpu.BackendSMI:
	default:
		return fmt.Errorf("invalid gpu backend: %q", c.GPUBackend)
	}
	if c.OwnerSegment < 0 {
		return fmt.Errorf("owner segment must not be negative: %d", c.OwnerSegment)
	}
	if c.TreeDepth < 1 {
		return fmt.Errorf("tree depth must be at least 1: %d", c.TreeDepth)
	}
	if c.GraceWindow < 0 {
		return fmt.Errorf("grace window must not be negative: %s", c.GraceWindow)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive: %s", c.PollInterval)
	}
	return nil
}
