package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/mart"
)

var exportFormat string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export mart tables and views to CSV/Parquet for BI tools",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "all", "export format: csv, parquet or all")
}

func runExport(cmd *cobra.Command, _ []string) error {
	if err := requireDSN(); err != nil {
		return err
	}

	var formats []string
	switch exportFormat {
	case mart.FormatCSV, mart.FormatParquet:
		formats = []string{exportFormat}
	case "all":
		formats = []string{mart.FormatParquet, mart.FormatCSV}
	default:
		return fmt.Errorf("unsupported export format %q", exportFormat)
	}

	ctx := cmd.Context()
	pool, err := mart.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	exporter := mart.NewExporter(pool, cfg.Export.Dir, logger)
	for _, format := range formats {
		manifest, err := exporter.Export(ctx, format)
		if err != nil {
			return err
		}
		logger.Info("export finished",
			zap.String("format", format),
			zap.Int("objects", len(manifest.Files)),
			zap.Float64("total_size_mb", manifest.TotalSizeMB),
		)
	}

	guidePath, err := mart.WriteBIGuide(cfg.Export.Dir, dsnHost(cfg.DB.DSN), time.Now())
	if err != nil {
		return err
	}
	logger.Info("BI setup guide written", zap.String("path", guidePath))
	return nil
}

// dsnHost extracts host:port for display without leaking credentials.
func dsnHost(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "(configured DSN)"
	}
	return u.Host
}
