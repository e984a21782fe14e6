package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestRootCommandStructure(t *testing.T) {
	root := rootCmd()
	assert.Equal(t, "dgxrm", root.Name)

	names := make([]string, 0, len(root.Commands))
	for _, c := range root.Commands {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"sweep", "watch"}, names)
}

func TestReportWriterRejectsUnknownFormat(t *testing.T) {
	cmd := &cli.Command{
		Name:  "test",
		Flags: []cli.Flag{formatFlag, outputFlag},
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := reportWriter(cmd)
			return err
		},
	}

	err := cmd.Run(context.Background(), []string{"test", "--format", "xml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestLoadConfigAppliesDryRunFlag(t *testing.T) {
	cmd := &cli.Command{
		Name:  "test",
		Flags: []cli.Flag{configFlag, logLevelFlag, dryRunFlag},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			require.NoError(t, err)
			assert.True(t, cfg.DryRun)
			return nil
		},
	}

	require.NoError(t, cmd.Run(context.Background(), []string{"test", "--dry-run"}))
}
