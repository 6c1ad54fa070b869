package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/linktune/linktune/pkg/storage"
)

// NewRunsCommand constructs the 'runs' command for inspecting past
// optimization runs persisted in the workspace.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past optimization runs",
		RunE:  runRunsCommand,
	}

	cmd.Flags().String("status", "", "Filter by run status (running, completed, failed)")
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().StringP("output", "o", "text", "Output format: text, json")

	return cmd
}

func runRunsCommand(cmd *cobra.Command, args []string) error {
	out := setupOutputPipeline(cmd)
	ctx := cmd.Context()

	storageConfig, ok := storage.ConfigFromContext(ctx)
	if !ok {
		return fmt.Errorf("storage is disabled, nothing to list")
	}

	backend, err := storage.NewBackend(ctx, storageConfig)
	if err != nil {
		return fmt.Errorf("create storage backend: %w", err)
	}
	if err := backend.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close storage backend")
		}
	}()

	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	runs, err := backend.Runs().List(ctx, storage.RunFilter{Status: status, Limit: limit})
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		out.Info("No runs recorded yet.")
		return nil
	}

	headers := []string{"Run ID", "Status", "Started", "Candidates", "Reachable", "Duration"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.Duration > 0 {
			duration = fmt.Sprintf("%ds", run.Duration)
		}
		rows = append(rows, []string{
			run.ID,
			run.Status,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d", run.CandidateCount),
			fmt.Sprintf("%d", run.ReachableCount),
			duration,
		})
	}
	out.Table(headers, rows)

	return nil
}
