package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skilldex/pkg/presenter"
)

// ListConfig holds configuration for the list command
type ListConfig struct {
	Output   string
	Category string
}

// NewListConfig creates a new ListConfig with default values
func NewListConfig() *ListConfig {
	return &ListConfig{
		Output:   "table",
		Category: "",
	}
}

type skillListing struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	References  int    `json:"references" yaml:"references"`
	Size        int    `json:"size" yaml:"size"`
	Unit        string `json:"unit" yaml:"unit"`
}

var listCmd = withTracing(&cobra.Command{
	Use:   "list",
	Short: "List the skills in the corpus",
	Long:  `List all loaded skills with their descriptions, categories, reference counts, and overview sizes.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getListConfigFromFlags(cmd)

		eng, err := newEngine(ctx)
		if err != nil {
			presenter.Error(err, "failed to load corpus")
			os.Exit(1)
		}

		skills, err := eng.List()
		if err != nil {
			presenter.Error(err, "failed to list skills")
			os.Exit(1)
		}

		c, err := eng.Corpus()
		if err != nil {
			presenter.Error(err, "failed to read corpus")
			os.Exit(1)
		}

		listings := make([]skillListing, 0, len(skills))
		for _, s := range skills {
			if config.Category != "" && s.Category != config.Category {
				continue
			}
			listings = append(listings, skillListing{
				ID:          s.ID,
				Description: s.Description,
				Category:    s.Category,
				References:  len(s.References),
				Size:        s.SizeEstimate,
				Unit:        c.Unit(),
			})
		}

		if err := renderListings(config.Output, listings); err != nil {
			presenter.Error(err, "failed to render skill list")
			os.Exit(1)
		}
	},
})

func renderListings(output string, listings []skillListing) error {
	switch output {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listings)
	case "yaml":
		out, err := yaml.Marshal(listings)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDESCRIPTION\tCATEGORY\tREFS\tSIZE")
		for _, l := range listings {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d %s\n",
				l.ID, truncate(l.Description, 72), l.Category, l.References, l.Size, l.Unit)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format %q (supported: table, json, yaml)", output)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("output", "o", defaults.Output, "Output format (table, json, yaml)")
	listCmd.Flags().StringP("category", "c", defaults.Category, "Only list skills in this category")
	rootCmd.AddCommand(listCmd)
}

// getListConfigFromFlags extracts list configuration from command flags
func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if category, err := cmd.Flags().GetString("category"); err == nil {
		config.Category = category
	}
	return config
}

