package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skilldex/pkg/api"
	"github.com/jingkaihe/skilldex/pkg/logger"
	"github.com/jingkaihe/skilldex/pkg/presenter"
	"github.com/jingkaihe/skilldex/pkg/usagelog"
)

// ServeConfig holds configuration for the serve command
type ServeConfig struct {
	Host     string
	Port     int
	Watch    bool
	Debounce int
	UsageDB  string
}

// NewServeConfig creates a new ServeConfig with default values
func NewServeConfig() *ServeConfig {
	return &ServeConfig{
		Host:     "localhost",
		Port:     8334,
		Watch:    false,
		Debounce: 500,
		UsageDB:  "",
	}
}

// Validate validates the serve configuration
func (c *ServeConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Host != "localhost" && c.Host != "0.0.0.0" {
		if ip := net.ParseIP(c.Host); ip == nil {
			if strings.Contains(c.Host, " ") || strings.Contains(c.Host, ":") {
				return fmt.Errorf("invalid host: %s", c.Host)
			}
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce time cannot be negative: %d", c.Debounce)
	}
	return nil
}

var serveCmd = withTracing(&cobra.Command{
	Use:   "serve",
	Short: "Serve the retrieval engine over HTTP",
	Long: `Start the HTTP API server for skill listing, matching, session management,
and budget-bounded resolution. With --watch the corpus root is monitored and
every change triggers a stop-the-world reload that invalidates all sessions.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getServeConfigFromFlags(cmd)

		if err := config.Validate(); err != nil {
			presenter.Error(err, "invalid server configuration")
			os.Exit(1)
		}

		eng, err := newEngine(ctx)
		if err != nil {
			presenter.Error(err, "failed to load corpus")
			os.Exit(1)
		}

		var usage *usagelog.Store
		if config.UsageDB != "" {
			usage, err = usagelog.Open(ctx, config.UsageDB)
			if err != nil {
				presenter.Error(err, "failed to open usage log")
				os.Exit(1)
			}
			defer func() {
				if closeErr := usage.Close(); closeErr != nil {
					logger.G(ctx).WithError(closeErr).Error("failed to close usage log")
				}
			}()
		}

		server, err := api.NewServer(&api.ServerConfig{Host: config.Host, Port: config.Port}, eng, usage)
		if err != nil {
			presenter.Error(err, "failed to create api server")
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if config.Watch {
			go func() {
				debounce := time.Duration(config.Debounce) * time.Millisecond
				if err := eng.Watch(ctx, debounce); err != nil && ctx.Err() == nil {
					logger.G(ctx).WithError(err).Error("corpus watcher stopped")
				}
			}()
		}

		presenter.Success(fmt.Sprintf("skilldex API listening on http://%s:%d", config.Host, config.Port))
		presenter.Info("Press Ctrl+C to stop the server")

		if err := server.Start(ctx); err != nil {
			logger.G(ctx).WithError(err).Error("api server error")
			presenter.Error(err, "api server failed")
			os.Exit(1)
		}
		presenter.Info("Server stopped")
	},
})

func init() {
	defaults := NewServeConfig()
	serveCmd.Flags().String("host", defaults.Host, "Host to bind the API server to")
	serveCmd.Flags().Int("port", defaults.Port, "Port to bind the API server to")
	serveCmd.Flags().Bool("watch", defaults.Watch, "Reload the corpus on filesystem changes")
	serveCmd.Flags().Int("debounce", defaults.Debounce, "Debounce time in milliseconds for corpus change events")
	serveCmd.Flags().String("usage-db", defaults.UsageDB, "Path to a SQLite usage log (empty disables recording)")
	rootCmd.AddCommand(serveCmd)
}

// getServeConfigFromFlags extracts serve configuration from command flags
func getServeConfigFromFlags(cmd *cobra.Command) *ServeConfig {
	config := NewServeConfig()
	if host, err := cmd.Flags().GetString("host"); err == nil {
		config.Host = host
	}
	if port, err := cmd.Flags().GetInt("port"); err == nil {
		config.Port = port
	}
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	if debounce, err := cmd.Flags().GetInt("debounce"); err == nil {
		config.Debounce = debounce
	}
	if usageDB, err := cmd.Flags().GetString("usage-db"); err == nil {
		config.UsageDB = usageDB
	}
	return config
}
