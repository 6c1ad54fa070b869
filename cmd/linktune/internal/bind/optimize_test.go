package bind

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linktune/linktune/pkg/config"
	"github.com/linktune/linktune/pkg/rankexec"
)

func newOptimizeTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "optimize"}
	cmd.Flags().Int("timeout-ms", 0, "")
	cmd.Flags().Int("top", 0, "")
	cmd.Flags().Int("concurrency", 0, "")
	cmd.Flags().String("output-file", "", "")
	cmd.Flags().StringP("output", "o", "text", "")
	cmd.Flags().Bool("ping", false, "")
	return cmd
}

func TestBindOptimizeOptions_ConfigDefaults(t *testing.T) {
	cmd := newOptimizeTestCommand()
	cfg := config.DefaultConfig()

	params, err := BindOptimizeOptions(cmd, []string{"ss://pw@h.example:443#n", "ips.txt"}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "ss://pw@h.example:443#n", params.Link)
	assert.Equal(t, "ips.txt", params.AddressFile)
	assert.Equal(t, 3*time.Second, params.Timeout)
	assert.Equal(t, 50, params.Concurrency)
	assert.Equal(t, 10, params.Top)
	assert.Equal(t, "optimized_nodes.txt", params.OutputFile)
	assert.Equal(t, "text", params.OutputFormat)
	assert.False(t, params.EnablePing)
}

func TestBindOptimizeOptions_PositionalTimeout(t *testing.T) {
	cmd := newOptimizeTestCommand()

	params, err := BindOptimizeOptions(cmd, []string{"ss://pw@h.example:443#n", "ips.txt", "1500"}, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, params.Timeout)
}

func TestBindOptimizeOptions_BadPositionalTimeout(t *testing.T) {
	tests := []string{"abc", "0", "-20", "3s"}
	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			cmd := newOptimizeTestCommand()
			_, err := BindOptimizeOptions(cmd, []string{"ss://pw@h.example:443#n", "ips.txt", raw}, config.DefaultConfig())
			require.ErrorIs(t, err, rankexec.ErrBadTimeout)
		})
	}
}

func TestBindOptimizeOptions_FlagOverridesPositional(t *testing.T) {
	cmd := newOptimizeTestCommand()
	require.NoError(t, cmd.Flags().Set("timeout-ms", "250"))

	params, err := BindOptimizeOptions(cmd, []string{"ss://pw@h.example:443#n", "ips.txt", "9000"}, config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, params.Timeout)
}

func TestBindOptimizeOptions_FlagOverrides(t *testing.T) {
	cmd := newOptimizeTestCommand()
	require.NoError(t, cmd.Flags().Set("top", "5"))
	require.NoError(t, cmd.Flags().Set("concurrency", "8"))
	require.NoError(t, cmd.Flags().Set("output-file", "custom.txt"))
	require.NoError(t, cmd.Flags().Set("output", "json"))
	require.NoError(t, cmd.Flags().Set("ping", "true"))

	params, err := BindOptimizeOptions(cmd, []string{"ss://pw@h.example:443#n", "ips.txt"}, config.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 5, params.Top)
	assert.Equal(t, 8, params.Concurrency)
	assert.Equal(t, "custom.txt", params.OutputFile)
	assert.Equal(t, "json", params.OutputFormat)
	assert.True(t, params.EnablePing)
}

func TestBindOptimizeOptions_NegativeFlagTimeout(t *testing.T) {
	cmd := newOptimizeTestCommand()
	require.NoError(t, cmd.Flags().Set("timeout-ms", "-5"))

	_, err := BindOptimizeOptions(cmd, []string{"ss://pw@h.example:443#n", "ips.txt"}, config.DefaultConfig())
	require.ErrorIs(t, err, rankexec.ErrBadTimeout)
}
