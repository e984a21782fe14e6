package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseComputeApps(t *testing.T) {
	out := []byte(`GPU-aaaa, 5000, 2048
GPU-bbbb, 6000, 0

GPU-aaaa, 7000, 512
`)
	rows := parseComputeApps(out)
	require.Len(t, rows, 3)

	assert.Equal(t, "GPU-aaaa", rows[0].uuid)
	assert.Equal(t, 5000, rows[0].pid)
	assert.Equal(t, uint64(2048), rows[0].memMiB)

	// Zero memory usage is still a valid row; classification is
	// orthogonal to reclamation eligibility.
	assert.Equal(t, 6000, rows[1].pid)
	assert.Equal(t, uint64(0), rows[1].memMiB)
}

func TestParseComputeApps_MalformedRows(t *testing.T) {
	out := []byte(`not a csv line
GPU-aaaa, notapid, 100
GPU-aaaa, 5000, 100
`)
	rows := parseComputeApps(out)
	require.Len(t, rows, 1)
	assert.Equal(t, 5000, rows[0].pid)
}

func TestDeviceLinePattern(t *testing.T) {
	tests := []struct {
		name string
		line string
		want bool
	}{
		{"a100", "GPU 0: NVIDIA A100-SXM4-80GB (UUID: GPU-7bd2571e-25aa-4b9b-b524-9b1b0a8e2a30)", true},
		{"h100", "GPU 3: NVIDIA H100 80GB HBM3 (UUID: GPU-11112222-3333-4444-5555-666677778888)", true},
		{"mig line", "  MIG 1g.10gb Device 0: (UUID: MIG-xxxx)", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := deviceLineRe.FindStringSubmatch(tc.line)
			assert.Equal(t, tc.want, m != nil)
		})
	}
}

func TestCollector_BackendDefault(t *testing.T) {
	c := &Collector{}
	assert.Equal(t, BackendSMI, c.backend())

	c = &Collector{Backend: "NVML"}
	assert.Equal(t, BackendNVML, c.backend())

	c = &Collector{Backend: " smi "}
	assert.Equal(t, BackendSMI, c.backend())
}
