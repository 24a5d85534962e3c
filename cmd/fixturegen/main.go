package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/embedfixtures/internal/config"
	"github.com/dshills/embedfixtures/internal/logging"
	"github.com/dshills/embedfixtures/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	cfgFile  string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the fixturegen command tree
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "fixturegen",
		Short: "Generate embedding fixtures from a text corpus",
		Long: `fixturegen reads a directory of text files, splits each file into
overlapping word-bounded chunks, embeds every chunk and writes the result as a
fixture for loading into a vector database (SOA JSON, row JSON or SQLite).

Logs go to stderr. Stdout carries command output only.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "YAML config file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(
		newGenerateCmd(opts),
		newEmbedQueryCmd(opts),
		newSearchCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fixturegen %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			return nil
		},
	}
}

// loadConfig resolves the configuration file and environment, then applies the --log-level flag
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs always go to stderr.
func newLogger(cfg *config.Config, stderr io.Writer) (*zap.Logger, error) {
	opts := logging.FromEnv()
	opts.Level = cfg.LogLevel
	opts.Output = stderr

	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// isInformational reports errors that end a run without being failures
func isInformational(err error, sentinels ...error) bool {
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
