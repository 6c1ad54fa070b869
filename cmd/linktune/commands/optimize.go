package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/linktune/linktune/cmd/linktune/internal/bind"
	"github.com/linktune/linktune/pkg/config"
	"github.com/linktune/linktune/pkg/output"
	"github.com/linktune/linktune/pkg/output/subscribers"
	"github.com/linktune/linktune/pkg/rankexec"
	"github.com/linktune/linktune/pkg/storage"
)

// OptimizeCmd defines the 'optimize' command: probe every candidate address,
// keep the fastest, and emit the node link rewritten per surviving candidate.
var OptimizeCmd = &cobra.Command{
	Use:   "optimize <node_link> <ip_list_file> [timeout_ms]",
	Short: "Rank candidate IPs by connection latency and rewrite the node link",
	Long: `Reads candidate IP addresses from a file, attempts a TCP connection to each
on the node link's port under a per-attempt timeout, and keeps the fastest
responders. Each survivor yields a copy of the node link with its host
replaced, written to the output file and printed in ranked order.

Candidates that fail to connect are dropped without failing the run; a run
with zero reachable candidates still succeeds with an empty result.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runOptimizeCommand,
}

func runOptimizeCommand(cmd *cobra.Command, args []string) error {
	out := setupOutputPipeline(cmd)

	logger := log.With().Str("command", "optimize").Logger()

	cfg := config.DefaultConfig()
	if manager, ok := config.ManagerFromContext(cmd.Context()); ok {
		cfg = manager.Get()
	}

	params, err := bind.BindOptimizeOptions(cmd, args, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to bind optimize options")
		out.Error(err)
		return err
	}

	out.Diag(output.LevelVerbose, "Initializing optimize command", map[string]any{
		"address_file": params.AddressFile,
		"top":          params.Top,
	})

	svc := rankexec.NewService()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Attach storage so the run and its artifact are persisted alongside
	// past runs. Storage failures degrade to an unpersisted run.
	if storageConfig, ok := storage.ConfigFromContext(ctx); ok {
		backend, err := storage.NewBackend(ctx, storageConfig)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create storage backend, run will not be persisted")
		} else if err := backend.Initialize(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize storage, run will not be persisted")
		} else {
			svc = svc.WithStorage(backend)
			defer func() {
				if err := backend.Close(); err != nil {
					logger.Warn().Err(err).Msg("Failed to close storage backend")
				}
			}()
		}
	}

	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		svc = svc.WithProgressSink(&progressLogger{logger: logger, out: out})
	}

	ctx = context.WithValue(ctx, output.OutputKey, out)

	res, runErr := svc.Run(ctx, params)
	if runErr != nil {
		logger.Error().Err(runErr).Msg("Optimization run failed")
		out.Error(runErr)
		return runErr
	}

	return renderOptimizeOutput(out, params, res)
}

// setupOutputPipeline wires the event stream with the formatter matching the
// requested output format plus a verbosity-gated diagnostic subscriber.
func setupOutputPipeline(cmd *cobra.Command) output.Output {
	stream := output.NewOutputEventStream()

	format, _ := cmd.Flags().GetString("output")
	if strings.EqualFold(format, "json") {
		stream.Subscribe(subscribers.NewJSONFormatter(os.Stdout))
	} else {
		colorEnabled := os.Getenv("NO_COLOR") == ""
		stream.Subscribe(subscribers.NewHumanFormatter(os.Stdout, os.Stderr, colorEnabled))
	}

	verbosityCount, _ := cmd.Flags().GetCount("verbosity")
	if verbosityCount > 0 {
		stream.Subscribe(subscribers.NewDiagnosticSubscriber(os.Stderr, output.OutputLevel(verbosityCount)))
	}

	return output.NewDefaultOutput(stream)
}

func renderOptimizeOutput(out output.Output, params rankexec.Params, res *rankexec.Result) error {
	switch strings.ToLower(params.OutputFormat) {
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			out.Error(err)
			return err
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(res)
		if err != nil {
			out.Error(err)
			return err
		}
		fmt.Println(string(data))
	default:
		printOptimizeSummary(out, res)
	}
	return nil
}

func printOptimizeSummary(out output.Output, res *rankexec.Result) {
	if len(res.Entries) == 0 {
		out.Warning(fmt.Sprintf("No reachable address among %d candidates.", res.CandidateCount))
		return
	}

	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Candidates", fmt.Sprintf("%d", res.CandidateCount)},
		{"Reachable", fmt.Sprintf("%d", res.ReachableCount)},
		{"Kept", fmt.Sprintf("%d", len(res.Entries))},
	}
	if res.OutputPath != "" {
		rows = append(rows, []string{"Output File", res.OutputPath})
	}
	out.Table(headers, rows)

	for _, entry := range res.Entries {
		out.Info(fmt.Sprintf("%s (Latency: %s)", entry.Link, entry.Latency))
	}
}

type progressLogger struct {
	logger zerolog.Logger
	out    output.Output
}

func (p *progressLogger) OnEvent(ev rankexec.ProgressEvent) {
	p.logger.Info().
		Str("phase", ev.Phase).
		Str("status", ev.Status).
		Str("message", ev.Message).
		Msg("optimization progress")

	if p.out != nil {
		p.out.Info(fmt.Sprintf("%s %s: %s", getStatusIcon(ev.Status), ev.Phase, ev.Message))
	}
}

// getStatusIcon returns an icon based on status
func getStatusIcon(status string) string {
	switch status {
	case "running", "start":
		return "⏳"
	case "completed", "success":
		return "✓"
	case "failed", "error":
		return "✗"
	default:
		return "•"
	}
}

func init() {
	OptimizeCmd.Flags().Int("timeout-ms", 0, "Per-attempt connection timeout in milliseconds (overrides positional arg and config)")
	OptimizeCmd.Flags().Int("top", 0, "How many lowest-latency links to keep (default from config)")
	OptimizeCmd.Flags().Int("concurrency", 0, "Maximum simultaneous connection attempts (default from config)")
	OptimizeCmd.Flags().String("output-file", "", "Path of the rewritten links artifact (default from config)")
	OptimizeCmd.Flags().StringP("output", "o", "text", "Output format: text, json, yaml")
	OptimizeCmd.Flags().Bool("ping", false, "Probe ICMP echo responders first (ordering hint only, never drops candidates)")
	OptimizeCmd.Flags().Bool("progress", false, "Print live progress updates during the run")
}
