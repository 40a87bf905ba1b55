// Command paperfeed serves personalized paper recommendations and query-expanded search.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/paperfeed/internal/config"
	logpkg "github.com/kailas-cloud/paperfeed/internal/logger"
	"github.com/kailas-cloud/paperfeed/internal/version"
)

var (
	envName    string
	configFile string
	logLevel   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "paperfeed",
		Short: "Personalized paper recommendations and search",
		Long: `paperfeed builds interest profiles from search and view history,
ranks candidate papers from a vector index and serves query-expanded search.

Example usage:
  paperfeed serve                        # Start the HTTP API
  paperfeed index --recent 1000          # Embed the newest stored papers
  paperfeed search "graph transformers"  # Run a fan-out search`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&envName, "env", config.GetEnv(), "environment (local, dev, prod)")
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: config/<env>.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	root.AddCommand(newServeCmd(), newIndexCmd(), newSearchCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadRuntime reads configuration and builds the logger for a command.
func loadRuntime() (config.Config, *zap.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load(envName)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logpkg.NewLogger(envName, level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
