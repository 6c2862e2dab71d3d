package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/sleuth/internal/config"
	"github.com/agentic-research/sleuth/internal/ingest"
	"github.com/agentic-research/sleuth/internal/logging"
	"github.com/agentic-research/sleuth/internal/tree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

var (
	recordsPath string
	configPath  string
	logLevel    string
	logFormat   string

	cfg *config.Config
	log *zap.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&recordsPath, "records", "r", "", "Path to the decoded record dump (JSON, or a .db/.sqlite/.sqlite3 staging database)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to an HCL config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console, json)")
}

var rootCmd = &cobra.Command{
	Use:           "sleuth",
	Short:         "Inspect the synced file metadata of a cloud-sync client",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if logFormat != "" {
			cfg.LogFormat = logFormat
		}
		log, err = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

// loadTree builds the tree named by --records.
func loadTree() (*tree.Tree, error) {
	if recordsPath == "" {
		return nil, fmt.Errorf("--records is required")
	}
	return ingest.LoadTree(recordsPath, log)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
