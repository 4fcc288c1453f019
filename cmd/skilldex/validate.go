package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skilldex/pkg/corpus"
	"github.com/jingkaihe/skilldex/pkg/presenter"
)

// ValidateConfig holds configuration for the validate command
type ValidateConfig struct {
	Quiet bool
}

// NewValidateConfig creates a new ValidateConfig with default values
func NewValidateConfig() *ValidateConfig {
	return &ValidateConfig{
		Quiet: false,
	}
}

var validateCmd = withTracing(&cobra.Command{
	Use:   "validate [path]",
	Short: "Check a skill corpus for structural violations",
	Long: `Walk the skill corpus and report every structural violation: missing or
invalid frontmatter fields, oversized descriptions or overviews, reference
documents carrying frontmatter, and duplicate skill ids.

Exits 0 on a clean corpus, non-zero with one line per violation otherwise.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getValidateConfigFromFlags(cmd)

		root := viper.GetString("corpus")
		if len(args) == 1 {
			root = args[0]
		}

		err := corpus.Lint(ctx, root,
			corpus.WithInclude(viper.GetStringSlice("include")...),
			corpus.WithExclude(viper.GetStringSlice("exclude")...),
		)
		if err == nil {
			if !config.Quiet {
				presenter.Success(fmt.Sprintf("corpus %s is clean", root))
			}
			return
		}

		if !config.Quiet {
			if merr, ok := err.(*multierror.Error); ok {
				for _, violation := range merr.Errors {
					fmt.Fprintln(os.Stderr, violation.Error())
				}
			} else {
				fmt.Fprintln(os.Stderr, err.Error())
			}
		}
		os.Exit(1)
	},
})

func init() {
	defaults := NewValidateConfig()
	validateCmd.Flags().BoolP("quiet", "q", defaults.Quiet, "Suppress output, report via exit code only")
	rootCmd.AddCommand(validateCmd)
}

// getValidateConfigFromFlags extracts validate configuration from command flags
func getValidateConfigFromFlags(cmd *cobra.Command) *ValidateConfig {
	config := NewValidateConfig()
	if quiet, err := cmd.Flags().GetBool("quiet"); err == nil {
		config.Quiet = quiet
	}
	return config
}
