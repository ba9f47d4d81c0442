// Package cmd provides the CLI commands for nbsretrieve.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/config"
	nbserrors "github.com/WRI-Indonesia/nbs-llm-sub000/internal/errors"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/logging"
	"github.com/WRI-Indonesia/nbs-llm-sub000/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	debug     bool
	configDir string
	envFile   string
}

// NewRootCmd creates the root command for nbsretrieve.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "nbsretrieve",
		Short: "Multilingual hybrid retrieval for nature-based solution documents",
		Long: `nbsretrieve indexes document chunks and answers questions about them.

Queries in Indonesian, Malay, Vietnamese, Thai, Khmer, Lao, Burmese and
English are normalized, split into sub-questions, expanded with domain
synonyms and ranked by a blend of vector similarity and keyword rank.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("nbsretrieve version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to stderr and the log file")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "Directory holding .nbs-retrieval.yaml")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before configuration")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newRewriteCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with a context canceled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), nbserrors.FormatForCLI(err))
	}
	return err
}

// loadConfig reads the env file and configuration for a command, then
// installs file logging as the slog default. The returned cleanup flushes
// the log file.
func loadConfig(opts *globalOptions) (*config.Config, func(), error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return nil, nil, err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: cfg.Logging.Stderr,
	}
	if opts.debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.Debug("config_loaded",
		slog.String("backend", cfg.Search.Backend),
		slog.String("embeddings", cfg.Embeddings.Provider),
		slog.Bool("fusion", cfg.FusionConfigured()))

	return cfg, cleanup, nil
}
