package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skilldex/pkg/presenter"
	"github.com/jingkaihe/skilldex/pkg/scorer"
)

// MatchConfig holds configuration for the match command
type MatchConfig struct {
	Hints    []string
	MinScore float64
	Limit    int
	Output   string
}

// NewMatchConfig creates a new MatchConfig with default values
func NewMatchConfig() *MatchConfig {
	return &MatchConfig{
		Hints:    nil,
		MinScore: 0,
		Limit:    10,
		Output:   "table",
	}
}

var matchCmd = withTracing(&cobra.Command{
	Use:   "match <query>...",
	Short: "Rank skills against a query",
	Long: `Score the corpus against a free-text query and print the ranked matches.
An empty result is a normal outcome, not an error.

Examples:
  skilldex match I need interchangeable algorithms
  skilldex match --hint state use the state pattern`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getMatchConfigFromFlags(cmd)

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

		matches = filterMatches(matches, config.MinScore, config.Limit)

		if err := renderMatches(config.Output, matches); err != nil {
			presenter.Error(err, "failed to render matches")
			os.Exit(1)
		}
	},
})

func filterMatches(matches []scorer.MatchResult, minScore float64, limit int) []scorer.MatchResult {
	filtered := make([]scorer.MatchResult, 0, len(matches))
	for _, m := range matches {
		if m.Score >= minScore || m.Hinted {
			filtered = append(filtered, m)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

func renderMatches(output string, matches []scorer.MatchResult) error {
	switch output {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(matches)
	case "yaml":
		out, err := yaml.Marshal(matches)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	case "table":
		if len(matches) == 0 {
			presenter.Info("No matching skills")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "SKILL\tSCORE\tMATCHED KEYWORDS")
		for _, m := range matches {
			score := fmt.Sprintf("%.2f", m.Score)
			if m.Hinted {
				score += " (hinted)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.SkillID, score, strings.Join(m.MatchedKeywords, ", "))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q (supported: table, json, yaml)", output)
	}
}

func init() {
	defaults := NewMatchConfig()
	matchCmd.Flags().StringArray("hint", defaults.Hints, "Skill id to force to the top (repeatable)")
	matchCmd.Flags().Float64("min-score", defaults.MinScore, "Drop results below this score")
	matchCmd.Flags().Int("limit", defaults.Limit, "Maximum number of results")
	matchCmd.Flags().StringP("output", "o", defaults.Output, "Output format (table, json, yaml)")
	rootCmd.AddCommand(matchCmd)
}

// getMatchConfigFromFlags extracts match configuration from command flags
func getMatchConfigFromFlags(cmd *cobra.Command) *MatchConfig {
	config := NewMatchConfig()
	if hints, err := cmd.Flags().GetStringArray("hint"); err == nil {
		config.Hints = hints
	}
	if minScore, err := cmd.Flags().GetFloat64("min-score"); err == nil {
		config.MinScore = minScore
	}
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	return config
}
