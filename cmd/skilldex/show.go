package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldex/pkg/presenter"
	"github.com/jingkaihe/skilldex/pkg/resolver"
)

// ShowConfig holds configuration for the show command
type ShowConfig struct {
	Full bool
}

// NewShowConfig creates a new ShowConfig with default values
func NewShowConfig() *ShowConfig {
	return &ShowConfig{
		Full: false,
	}
}

var showCmd = withTracing(&cobra.Command{
	Use:   "show <skill-id>",
	Short: "Show a skill's overview and reference listing",
	Long: `Print a skill's overview body and list its reference documents. This is a
stateless inspection command: it bypasses session caching and budgets.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getShowConfigFromFlags(cmd)

		eng, err := newEngine(ctx)
		if err != nil {
			presenter.Error(err, "failed to load corpus")
			os.Exit(1)
		}

		skill, err := eng.Describe(args[0])
		if err != nil {
			presenter.Error(err, "unknown skill")
			os.Exit(1)
		}

		presenter.Section(fmt.Sprintf("Skill: %s", skill.ID))
		presenter.Info(skill.Description)
		if skill.Category != "" {
			presenter.Info(fmt.Sprintf("Category: %s", skill.Category))
		}
		fmt.Println()
		fmt.Println(skill.Overview)

		if hints := resolver.ReferenceHints(skill); len(hints) > 0 {
			presenter.Info(fmt.Sprintf("Overview links to: %v", hints))
		}

		if len(skill.References) == 0 {
			return
		}

		presenter.Section("References")
		if config.Full {
			for _, ref := range skill.References {
				presenter.Info(fmt.Sprintf("--- %s ---", ref.Path))
				fmt.Println(ref.Body)
			}
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tSIZE")
		for _, ref := range skill.References {
			fmt.Fprintf(w, "%s\t%d\n", ref.Path, ref.SizeEstimate)
		}
		w.Flush()
	},
})

func init() {
	defaults := NewShowConfig()
	showCmd.Flags().Bool("full", defaults.Full, "Include reference document bodies")
	rootCmd.AddCommand(showCmd)
}

// getShowConfigFromFlags extracts show configuration from command flags
func getShowConfigFromFlags(cmd *cobra.Command) *ShowConfig {
	config := NewShowConfig()
	if full, err := cmd.Flags().GetBool("full"); err == nil {
		config.Full = full
	}
	return config
}
