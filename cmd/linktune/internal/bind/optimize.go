// Package bind centralizes the translation of Cobra flags and positional
// arguments into service-layer parameter structs.
package bind

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/linktune/linktune/pkg/config"
	"github.com/linktune/linktune/pkg/netutil"
	"github.com/linktune/linktune/pkg/rankexec"
)

// BindOptimizeOptions extracts and validates optimize command inputs.
//
// Positional arguments:
//   - args[0]: the node link to optimize
//   - args[1]: path of the newline-separated candidate IP list
//   - args[2]: optional per-attempt timeout in integer milliseconds
//
// Flags override both the positional timeout and the loaded configuration;
// unset flags fall back to cfg values.
func BindOptimizeOptions(cmd *cobra.Command, args []string, cfg config.Config) (rankexec.Params, error) {
	params := rankexec.Params{
		Link:        args[0],
		AddressFile: args[1],
		Timeout:     time.Duration(cfg.Probe.TimeoutMS) * time.Millisecond,
		Concurrency: cfg.Probe.Concurrency,
		Top:         cfg.Rank.Top,
		OutputFile:  cfg.Rank.OutputFile,
	}

	if len(args) == 3 {
		timeout, err := netutil.ParseTimeoutMS(args[2])
		if err != nil {
			return rankexec.Params{}, fmt.Errorf("%w: %v", rankexec.ErrBadTimeout, err)
		}
		params.Timeout = timeout
	}

	flags := cmd.Flags()

	if flags.Changed("timeout-ms") {
		ms, _ := flags.GetInt("timeout-ms")
		if ms <= 0 {
			return rankexec.Params{}, fmt.Errorf("%w: --timeout-ms must be positive, got %d", rankexec.ErrBadTimeout, ms)
		}
		params.Timeout = time.Duration(ms) * time.Millisecond
	}
	if flags.Changed("concurrency") {
		if c, _ := flags.GetInt("concurrency"); c > 0 {
			params.Concurrency = c
		}
	}
	if flags.Changed("top") {
		if n, _ := flags.GetInt("top"); n > 0 {
			params.Top = n
		}
	}
	if flags.Changed("output-file") {
		params.OutputFile, _ = flags.GetString("output-file")
	}

	params.OutputFormat, _ = flags.GetString("output")
	params.EnablePing, _ = flags.GetBool("ping")

	return params, nil
}
