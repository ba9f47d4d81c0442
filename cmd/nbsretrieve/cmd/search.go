package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/output"
	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode          string
	topK          int
	alpha         float64
	minSimilarity float64
	entity        string
	jsonOutput    bool
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed chunks",
		Long: `Search indexed chunks with the full retrieval pipeline.

The query is rewritten (language detection, question splitting, synonym
expansion, stemming), embedded and ranked by hybrid fusion or, with
--mode cosine, by in-process cosine similarity.

Examples:
  nbsretrieve search "Bagaimana restorasi gambut di Riau?"
  nbsretrieve search "mangrove rehabilitation" --alpha 0.3 --top-k 5
  nbsretrieve search "rừng ngập mặn" --mode cosine --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var alpha *float64
			if cmd.Flags().Changed("alpha") {
				alpha = &opts.alpha
			}
			var minSim *float64
			if cmd.Flags().Changed("min-similarity") {
				minSim = &opts.minSimilarity
			}
			return runSearch(cmd.Context(), cmd, global, strings.Join(args, " "), opts, alpha, minSim)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Retrieval mode: hybrid or cosine (default from config)")
	cmd.Flags().IntVarP(&opts.topK, "top-k", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().Float64Var(&opts.alpha, "alpha", search.DefaultAlpha, "Vector weight between 0 and 1")
	cmd.Flags().Float64Var(&opts.minSimilarity, "min-similarity", 0, "Drop candidates below this vector similarity")
	cmd.Flags().StringVarP(&opts.entity, "entity", "e", "", "Restrict results to one entity key")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, global *globalOptions, query string, opts searchOptions, alpha, minSim *float64) error {
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

	searchOpts := search.SearchOptions{
		Mode:      search.Mode(strings.ToLower(opts.mode)),
		TopK:      opts.topK,
		Alpha:     alpha,
		EntityKey: opts.entity,
	}
	if minSim != nil {
		searchOpts.MinSimilarity = *minSim
	}

	resp, err := a.engine.Search(ctx, query, searchOpts)
	if err != nil {
		return err
	}

	out := output.NewAuto(cmd.OutOrStdout())
	if opts.jsonOutput {
		if err := out.JSON(resp); err != nil {
			return fmt.Errorf("failed to encode results: %w", err)
		}
		return nil
	}
	out.SearchResults(resp)
	return nil
}
