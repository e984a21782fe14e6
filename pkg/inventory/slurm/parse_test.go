package slurm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandIndexSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{"single", "0", []int{0}, false},
		{"list", "0,3,5", []int{0, 3, 5}, false},
		{"range", "2-4", []int{2, 3, 4}, false},
		{"mixed", "0,2-4", []int{0, 2, 3, 4}, false},
		{"overlap dedup", "0-2,1,2", []int{0, 1, 2}, false},
		{"empty", "", nil, false},
		{"malformed token", "0,abc-4", nil, true},
		{"bad range end", "0,2-x", nil, true},
		{"reversed range", "4-2", nil, true},
		{"negative", "-1", nil, true},
		{"trailing comma", "0,", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExpandIndexSpec(tc.spec)
			if tc.wantErr {
				require.Error(t, err)
				assert.Empty(t, got, "malformed spec must yield an empty index set")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseRunTime(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"plain", "01:02:03", time.Hour + 2*time.Minute + 3*time.Second, false},
		{"with days", "2-03:04:05", 51*time.Hour + 4*time.Minute + 5*time.Second, false},
		{"zero", "00:00:00", 0, false},
		{"missing seconds", "01:02", 0, true},
		{"garbage", "soon", 0, true},
		{"empty", "", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRunTime(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDescriptorField(t *testing.T) {
	descriptor := "JobId=123 JobName=train\n   RunTime=1-02:00:00 TimeLimit=2-00:00:00\n   WorkDir=/home/alice/train\n"

	assert.Equal(t, "/home/alice/train", descriptorField(descriptor, "WorkDir"))
	assert.Equal(t, "1-02:00:00", descriptorField(descriptor, "RunTime"))
	assert.Equal(t, "", descriptorField(descriptor, "Partition"))
}

func TestIndexSpec(t *testing.T) {
	assert.Equal(t, "0,2-4", indexSpec("   Nodes=dgx01 CPU_IDs=0-15 Mem=64000 GRES=gpu(IDX:0,2-4)\n"))
	assert.Equal(t, "", indexSpec("JobId=9 no gres detail here"))
}
