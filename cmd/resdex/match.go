package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	chiTransport "github.com/kailas-cloud/resdex/internal/transport/chi"
)

func newMatchCmd() *cobra.Command {
	var (
		topK          int
		types         []string
		minConfidence float64
		showTokens    bool
	)
	cmd := &cobra.Command{
		Use:     "match <query...>",
		Short:   "Rank registered resources against a free-text request",
		Example: `  resdex match "monthly revenue by region" --type DATABASE --top-k 3`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := match.Request{
				Query:         strings.Join(args, " "),
				TopK:          topK,
				MinConfidence: minConfidence,
			}
			for _, s := range types {
				t, err := resource.ParseType(s)
				if err != nil {
					return err
				}
				req.ResourceTypes = append(req.ResourceTypes, t)
			}

			cfg, env, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, env, logger)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, usage := domain.NewContextWithUsage(cmd.Context())
			results, err := a.matcher.Match(ctx, req)
			if err != nil {
				return fmt.Errorf("match: %w", err)
			}
			if showTokens {
				fmt.Fprintf(cmd.ErrOrStderr(), "embedding tokens: %d\n", usage.TotalTokens())
			}
			return printJSON(cmd.OutOrStdout(), chiTransport.MatchToResponse(results))
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", match.DefaultTopK, "number of results")
	cmd.Flags().StringSliceVar(&types, "type", nil, "restrict to resource types (repeatable)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "drop results below this confidence")
	cmd.Flags().BoolVar(&showTokens, "tokens", false, "print embedding token usage to stderr")
	return cmd
}
