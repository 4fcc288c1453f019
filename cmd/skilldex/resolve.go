package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldex/pkg/engine"
	"github.com/jingkaihe/skilldex/pkg/hosttool"
	"github.com/jingkaihe/skilldex/pkg/presenter"
	"github.com/jingkaihe/skilldex/pkg/resolver"
	"github.com/jingkaihe/skilldex/pkg/scorer"
)

// ResolveConfig holds configuration for the resolve command
type ResolveConfig struct {
	Hints  []string
	Refs   []string
	Budget int
	Limit  int
}

// NewResolveConfig creates a new ResolveConfig with default values
func NewResolveConfig() *ResolveConfig {
	return &ResolveConfig{
		Hints:  nil,
		Refs:   nil,
		Budget: engine.DefaultBudget,
		Limit:  1,
	}
}

var resolveCmd = withTracing(&cobra.Command{
	Use:   "resolve <query>...",
	Short: "Match a query and disclose the winning skill content",
	Long: `Match the query against the corpus, then resolve the top results against an
ephemeral session under the given budget. Overviews are disclosed first;
reference documents load only through an explicit --refs pattern.

Examples:
  skilldex resolve I need interchangeable algorithms
  skilldex resolve --refs 'refs/**/*.md' --budget 1200 use the strategy pattern`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getResolveConfigFromFlags(cmd)

		eng, err := newEngine(ctx)
		if err != nil {
			presenter.Error(err, "failed to load corpus")
			os.Exit(1)
		}

		matches, err := eng.Match(ctx, scorer.Query{
			Text:  strings.Join(args, " "),
			Hints: config.Hints,
		})
		if err != nil {
			presenter.Error(err, "failed to match query")
			os.Exit(1)
		}
		if len(matches) == 0 {
			presenter.Info("No matching skills")
			return
		}
		if config.Limit > 0 && len(matches) > config.Limit {
			matches = matches[:config.Limit]
		}

		resolved, err := eng.Resolve(ctx, "", resolver.Request{
			Matches:     matches,
			RefPatterns: config.Refs,
			Budget:      config.Budget,
		})
		if err != nil {
			presenter.Error(err, "failed to resolve")
			os.Exit(1)
		}

		fmt.Print(hosttool.Render(resolved))
		if resolved.BudgetExceeded {
			presenter.Warning("Budget exhausted before all matches were resolved")
		}
	},
})

func init() {
	defaults := NewResolveConfig()
	resolveCmd.Flags().StringArray("hint", defaults.Hints, "Skill id to force to the top (repeatable)")
	resolveCmd.Flags().StringArray("refs", defaults.Refs, "Reference document pattern to disclose (repeatable, doublestar)")
	resolveCmd.Flags().Int("budget", defaults.Budget, "Maximum content size to disclose")
	resolveCmd.Flags().Int("limit", defaults.Limit, "Maximum number of skills to resolve")
	rootCmd.AddCommand(resolveCmd)
}

// getResolveConfigFromFlags extracts resolve configuration from command flags
func getResolveConfigFromFlags(cmd *cobra.Command) *ResolveConfig {
	config := NewResolveConfig()
	if hints, err := cmd.Flags().GetStringArray("hint"); err == nil {
		config.Hints = hints
	}
	if refs, err := cmd.Flags().GetStringArray("refs"); err == nil {
		config.Refs = refs
	}
	if budget, err := cmd.Flags().GetInt("budget"); err == nil {
		config.Budget = budget
	}
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	return config
}
