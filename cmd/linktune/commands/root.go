package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/linktune/linktune/pkg/config"
	"github.com/linktune/linktune/pkg/storage"
)

const cliExecutable = "linktune"

// NewCommand constructs the top-level linktune CLI command, wiring global
// flags, configuration loading, and shared storage preparation.
func NewCommand() *cobra.Command {
	var (
		configFile      string
		storageDir      string
		storageDisabled bool
		verbosityCount  int
		verbose         bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Linktune finds the lowest-latency endpoints for a proxy node link",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			ctx := config.WithManager(cmd.Context(), manager)

			if !storageDisabled {
				storageConfig, err := storage.DefaultConfig()
				if err != nil {
					return fmt.Errorf("get storage config: %w", err)
				}
				if storageDir != "" {
					storageConfig.WorkspaceRoot = storageDir
				}
				if dir := manager.Get().Storage.WorkspaceDir; storageDir == "" && dir != "" {
					storageConfig.WorkspaceRoot = dir
				}
				ctx = storage.WithConfig(ctx, storageConfig)
				log.Debug().Str("storage_root", storageConfig.WorkspaceRoot).Msg("storage ready")
			} else {
				log.Debug().Msg("storage disabled for this run")
			}

			// Configure global log level based on verbosity flags
			// If explicit --verbose is set, show debug and above
			// Else use -v count: 0=>Error, 1=>Info, 2+=>Debug
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				switch {
				case verbosityCount <= 0:
					zerolog.SetGlobalLevel(zerolog.ErrorLevel)
				case verbosityCount == 1:
					zerolog.SetGlobalLevel(zerolog.InfoLevel)
				default:
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
			}

			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&storageDir, "storage-dir", "", "Override storage root directory")
	cmd.PersistentFlags().BoolVar(&storageDisabled, "no-storage", false, "Disable storage persistence for this run")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging (shows service layer logs)")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(OptimizeCmd)
	cmd.AddCommand(NewRunsCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
