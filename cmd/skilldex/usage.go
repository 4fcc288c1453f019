package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldex/pkg/logger"
	"github.com/jingkaihe/skilldex/pkg/presenter"
	"github.com/jingkaihe/skilldex/pkg/usagelog"
)

// UsageConfig holds configuration for the usage command
type UsageConfig struct {
	DB     string
	Top    int
	Recent int
}

// NewUsageConfig creates a new UsageConfig with default values
func NewUsageConfig() *UsageConfig {
	return &UsageConfig{
		DB:     defaultUsageDB(),
		Top:    10,
		Recent: 20,
	}
}

func defaultUsageDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skilldex/usage.db"
	}
	return home + "/.skilldex/usage.db"
}

var usageCmd = withTracing(&cobra.Command{
	Use:   "usage",
	Short: "Show skill activation statistics",
	Long:  `Show the most-activated skills and recent activations from the usage log recorded by serve --usage-db.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getUsageConfigFromFlags(cmd)

		store, err := usagelog.Open(ctx, config.DB)
		if err != nil {
			presenter.Error(err, "failed to open usage log")
			os.Exit(1)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				logger.G(ctx).WithError(closeErr).Error("failed to close usage log")
			}
		}()

		stats, err := store.TopSkills(ctx, config.Top)
		if err != nil {
			presenter.Error(err, "failed to query top skills")
			os.Exit(1)
		}

		presenter.Section("Top skills")
		if len(stats) == 0 {
			presenter.Info("No activations recorded")
		} else {
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "SKILL\tACTIVATIONS\tTOTAL COST")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%d\t%d\n", s.SkillID, s.Activations, s.TotalCost)
			}
			w.Flush()
		}

		recent, err := store.Recent(ctx, config.Recent)
		if err != nil {
			presenter.Error(err, "failed to query recent activations")
			os.Exit(1)
		}
		if len(recent) == 0 {
			return
		}

		presenter.Section("Recent activations")
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSKILL\tREFERENCE\tCOST")
		for _, a := range recent {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d %s\n",
				a.CreatedAt.Local().Format(time.RFC3339), a.SkillID, a.RefPath, a.Cost, a.Unit)
		}
		w.Flush()
	},
})

func init() {
	defaults := NewUsageConfig()
	usageCmd.Flags().String("db", defaults.DB, "Path to the SQLite usage log")
	usageCmd.Flags().Int("top", defaults.Top, "Number of top skills to show")
	usageCmd.Flags().Int("recent", defaults.Recent, "Number of recent activations to show")
	rootCmd.AddCommand(usageCmd)
}

// getUsageConfigFromFlags extracts usage configuration from command flags
func getUsageConfigFromFlags(cmd *cobra.Command) *UsageConfig {
	config := NewUsageConfig()
	if db, err := cmd.Flags().GetString("db"); err == nil {
		config.DB = db
	}
	if top, err := cmd.Flags().GetInt("top"); err == nil {
		config.Top = top
	}
	if recent, err := cmd.Flags().GetInt("recent"); err == nil {
		config.Recent = recent
	}
	return config
}
