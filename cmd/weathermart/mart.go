package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/mart"
)

var martCmd = &cobra.Command{
	Use:   "mart",
	Short: "Build the dimensional analytics model on top of the raw table",
	Long: `Mart derives location and date dimensions, a daily fact table and
summary views (monthly summary, temperature trends with 30-day moving
averages, rainfall patterns) from the loaded raw observations, then creates
the supporting indices.`,
	RunE: runMart,
}

func runMart(cmd *cobra.Command, _ []string) error {
	if err := requireDSN(); err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := mart.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := mart.NewMart(pool, cfg.DB.Table, logger)
	if err := m.Build(ctx); err != nil {
		return err
	}

	stats, err := m.Statistics(ctx)
	if err != nil {
		return err
	}
	logger.Info("mart built",
		zap.Int64("raw_rows", stats.RawRows),
		zap.Int64("fact_rows", stats.FactRows),
		zap.Int64("provinces", stats.Provinces),
		zap.String("from", stats.MinDate.Format("2006-01-02")),
		zap.String("to", stats.MaxDate.Format("2006-01-02")),
	)
	return nil
}
