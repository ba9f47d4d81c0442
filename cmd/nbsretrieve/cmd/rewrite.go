package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/WRI-Indonesia/nbs-llm-sub000/internal/output"
)

func newRewriteCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "rewrite <query>",
		Short: "Show how a query is normalized before retrieval",
		Long: `Run only the query rewriter: language detection, question splitting,
LLM fusion of multi-question input (when configured), synonym expansion
and stemming. No index is opened.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cleanup, err := loadConfig(global)
			if err != nil {
				return err
			}
			defer cleanup()

			rq := newRewriter(cfg).Rewrite(cmd.Context(), strings.Join(args, " "))

			out := output.NewAuto(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(rq)
			}
			out.Query(rq)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the rewritten query as JSON")
	return cmd
}
