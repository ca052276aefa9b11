// Command weathermart runs the weather archive pipeline: crawl the archive
// API into a consolidated CSV dataset, bulk-load it into Postgres, build the
// analytics mart and export it for BI tools.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/config"
	"github.com/vnclimate/weathermart/internal/crawl"
	"github.com/vnclimate/weathermart/internal/logging"
)

// exitRerunLater distinguishes a rate-limit hard stop from ordinary failure:
// all progress is saved and the same invocation will pick up where it left
// off once the API cools down.
const exitRerunLater = 2

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "weathermart",
	Short:         "Resumable weather archive pipeline for Vietnamese provinces",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// .env is optional; real environments set variables directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.New(logging.Options{
			Development: cfg.Logging.Development,
			Level:       cfg.Logging.Level,
		})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (optional; env vars and defaults otherwise)")
	rootCmd.AddCommand(crawlCmd, loadCmd, martCmd, exportCmd, validateCmd)
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, crawl.ErrRateLimitHardStop) {
			fmt.Fprintln(os.Stderr, err)
			return exitRerunLater
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// requireDSN guards the database-backed commands.
func requireDSN() error {
	if cfg.DB.DSN == "" {
		return errors.New("db.dsn is not configured (set WEATHERMART_DB_DSN)")
	}
	return nil
}
