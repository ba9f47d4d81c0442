package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/index"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/output"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	batchSize int
	workers   int
	quiet     bool
}

func newIndexCmd(global *globalOptions) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <chunks.jsonl>",
		Short: "Index chunks from a JSON Lines file",
		Long: `Index chunks from a JSON Lines file, one object per line:

  {"id": "c1", "source": "projects", "entity_key": "riau", "content": "...", "embedding": [0.1, ...]}

Records without an embedding are embedded with the configured provider.
Records that cannot be parsed are reported and skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, global, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Texts per embedding request (default from config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent embedding requests (default from config)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress the progress bar")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, global *globalOptions, path string, opts indexOptions) error {
	cfg, cleanup, err := loadConfig(global)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.NewAuto(cmd.OutOrStdout())

	deps := index.RunnerDependencies{
		Writer:   a.writer,
		Embedder: a.embedder,
		Sinks:    a.sinks,
	}
	if !opts.quiet {
		deps.Progress = func(done, total int) {
			out.Progress(done, total, "embedding")
		}
	}
	runner, err := index.NewRunner(deps)
	if err != nil {
		return err
	}

	runCfg := index.RunnerConfig{
		Path:      path,
		LockPath:  a.lockPath,
		BatchSize: cfg.Embeddings.BatchSize,
		Workers:   cfg.Embeddings.Workers,
	}
	if opts.batchSize > 0 {
		runCfg.BatchSize = opts.batchSize
	}
	if opts.workers > 0 {
		runCfg.Workers = opts.workers
	}

	result, err := runner.Run(ctx, runCfg)
	if err != nil {
		return err
	}

	if n := len(result.Skipped); n > 0 {
		out.Warningf("%d records skipped (see log for details)", n)
	}
	if result.Dropped > 0 {
		out.Warningf("%d supplied embeddings had the wrong dimension and were re-embedded", result.Dropped)
	}
	out.Successf("Indexed %d chunks (%d embedded) in %s", result.Chunks, result.Embedded,
		result.Duration.Round(time.Millisecond))
	if result.Chunks == 0 {
		return fmt.Errorf("no chunks indexed from %s", path)
	}
	return nil
}
