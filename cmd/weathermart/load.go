package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/mart"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Bulk-load the consolidated CSV into Postgres via COPY",
	Long: `Load creates the raw observation table if needed, inferring each
column's SQL type from a sample of the CSV, then streams the whole artifact
into Postgres with the COPY protocol.`,
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, _ []string) error {
	if err := requireDSN(); err != nil {
		return err
	}
	if _, err := os.Stat(cfg.Paths.DatasetCSV); err != nil {
		return fmt.Errorf("dataset artifact not found at %s; run crawl first", cfg.Paths.DatasetCSV)
	}

	ctx := cmd.Context()
	pool, err := mart.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := mart.NewLoader(pool, cfg.DB.Table, logger)
	res, err := loader.Load(ctx, cfg.Paths.DatasetCSV)
	if err != nil {
		return err
	}

	logger.Info("load finished",
		zap.String("table", cfg.DB.Table),
		zap.Int("columns", res.Columns),
		zap.Int64("rows", res.RowsCopied),
		zap.Duration("elapsed", res.Elapsed),
	)
	return nil
}
