// Package cmd provides the CLI commands for carekb.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/carekb/carekb/internal/config"
	"github.com/carekb/carekb/internal/kb"
	"github.com/carekb/carekb/internal/logging"
	"github.com/carekb/carekb/pkg/version"
)

var (
	cfgPath        string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the carekb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carekb",
		Short: "Local hybrid-search knowledge base",
		Long: `carekb maintains a private document corpus and answers queries with
hybrid retrieval: BM25 keyword scoring fused with embedding similarity.

Documents are chunked, stored locally, and indexed without any cloud
dependency. An MCP server mode exposes the corpus to AI assistants.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("carekb version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file path (default ~/.carekb/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.carekb/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is best-effort for CLI runs; commands still work
		// without a log file.
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

// openKB loads configuration and opens the knowledge base.
func openKB() (*kb.KB, *config.Config, error) {
	path := cfgPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	knowledge, err := kb.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	return knowledge, cfg, nil
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		return err
	}
	return nil
}
