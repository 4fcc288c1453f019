package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skilldex/pkg/cost"
	"github.com/jingkaihe/skilldex/pkg/engine"
	"github.com/jingkaihe/skilldex/pkg/logger"
	"github.com/jingkaihe/skilldex/pkg/presenter"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLDEX")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skilldex")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "skilldex",
	Short: "Skill discovery, matching, and progressive-disclosure retrieval",
	Long: `Skilldex indexes a corpus of skill directories (SKILL.md overviews plus
reference documents) and answers runtime queries: which skills match a task,
and which documents to disclose next under a strict context-size budget.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			return err
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().String("corpus", "./skills", "Path to the skill corpus root")
	rootCmd.PersistentFlags().String("budget-unit", cost.UnitLines, "Budget unit for size estimates (lines or tokens)")
	rootCmd.PersistentFlags().StringSlice("include", nil, "Glob patterns of skill directories to include")
	rootCmd.PersistentFlags().StringSlice("exclude", nil, "Glob patterns of skill directories to exclude")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "Log format (fmt, json, text)")

	viper.BindPFlag("corpus", rootCmd.PersistentFlags().Lookup("corpus"))
	viper.BindPFlag("budget_unit", rootCmd.PersistentFlags().Lookup("budget-unit"))
	viper.BindPFlag("include", rootCmd.PersistentFlags().Lookup("include"))
	viper.BindPFlag("exclude", rootCmd.PersistentFlags().Lookup("exclude"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	ctx := context.Background()

	shutdown, err := initTracing(ctx)
	if err != nil {
		presenter.Warning(fmt.Sprintf("Failed to initialize tracing: %s", err))
		shutdown = func(context.Context) error { return nil }
	}
	defer shutdown(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// newEngine builds and loads an engine from the global flags.
func newEngine(ctx context.Context) (*engine.Engine, error) {
	estimator, err := cost.ForUnit(viper.GetString("budget_unit"))
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(
		engine.WithRoot(viper.GetString("corpus")),
		engine.WithEstimator(estimator),
		engine.WithSkillFilters(viper.GetStringSlice("include"), viper.GetStringSlice("exclude")),
	)
	if err != nil {
		return nil, err
	}
	if err := eng.Load(ctx); err != nil {
		return nil, err
	}

	reportMalformed(ctx, eng)
	return eng, nil
}

// reportMalformed warns about skills that were excluded during the load.
func reportMalformed(ctx context.Context, eng *engine.Engine) {
	c, err := eng.Corpus()
	if err != nil {
		return
	}
	for _, m := range c.Malformed() {
		logger.G(ctx).WithField("dir", m.Dir).Warn(m.Reason)
	}
}
