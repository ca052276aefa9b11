package mart

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
)

// Export formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// LocationRow mirrors location_dim.
type LocationRow struct {
	LocationID   int64  `db:"location_id" csv:"location_id" parquet:"location_id"`
	ProvinceName string `db:"province_name" csv:"province_name" parquet:"province_name"`
	RecordCount  int64  `db:"record_count" csv:"record_count" parquet:"record_count"`
}

// DateRow mirrors date_dim.
type DateRow struct {
	DateKey    time.Time `db:"date_key" csv:"date_key" parquet:"date_key"`
	Year       int32     `db:"year" csv:"year" parquet:"year"`
	Month      int32     `db:"month" csv:"month" parquet:"month"`
	Day        int32     `db:"day" csv:"day" parquet:"day"`
	Quarter    int32     `db:"quarter" csv:"quarter" parquet:"quarter"`
	WeekNumber int32     `db:"week_number" csv:"week_number" parquet:"week_number"`
	DayOfWeek  int32     `db:"day_of_week" csv:"day_of_week" parquet:"day_of_week"`
	Season     string    `db:"season" csv:"season" parquet:"season"`
}

// DailyFactRow mirrors weather_daily_facts.
type DailyFactRow struct {
	DateKey              time.Time `db:"date_key" csv:"date_key" parquet:"date_key"`
	ProvinceName         string    `db:"province_name" csv:"province_name" parquet:"province_name"`
	LocationID           int64     `db:"location_id" csv:"location_id" parquet:"location_id"`
	AvgTempC             float64   `db:"avg_temp_c" csv:"avg_temp_c" parquet:"avg_temp_c"`
	MaxTempC             float64   `db:"max_temp_c" csv:"max_temp_c" parquet:"max_temp_c"`
	MinTempC             float64   `db:"min_temp_c" csv:"min_temp_c" parquet:"min_temp_c"`
	AvgHumidityPct       float64   `db:"avg_humidity_pct" csv:"avg_humidity_pct" parquet:"avg_humidity_pct"`
	TotalPrecipitationMM float64   `db:"total_precipitation_mm" csv:"total_precipitation_mm" parquet:"total_precipitation_mm"`
	AvgWindSpeed         float64   `db:"avg_wind_speed" csv:"avg_wind_speed" parquet:"avg_wind_speed"`
	MaxGustSpeed         float64   `db:"max_gust_speed" csv:"max_gust_speed" parquet:"max_gust_speed"`
	AvgCloudCoverPct     float64   `db:"avg_cloud_cover_pct" csv:"avg_cloud_cover_pct" parquet:"avg_cloud_cover_pct"`
	AvgPressureHPa       float64   `db:"avg_pressure_hpa" csv:"avg_pressure_hpa" parquet:"avg_pressure_hpa"`
	WeatherCode          int32     `db:"weather_code" csv:"weather_code" parquet:"weather_code"`
	RecordCount          int64     `db:"record_count" csv:"record_count" parquet:"record_count"`
}

// MonthlySummaryRow mirrors the weather_monthly_summary view.
type MonthlySummaryRow struct {
	Year               int32   `db:"year" csv:"year" parquet:"year"`
	Month              int32   `db:"month" csv:"month" parquet:"month"`
	ProvinceName       string  `db:"province_name" csv:"province_name" parquet:"province_name"`
	NumDays            int64   `db:"num_days" csv:"num_days" parquet:"num_days"`
	AvgTemperature     float64 `db:"avg_temperature" csv:"avg_temperature" parquet:"avg_temperature"`
	MaxTemperature     float64 `db:"max_temperature" csv:"max_temperature" parquet:"max_temperature"`
	MinTemperature     float64 `db:"min_temperature" csv:"min_temperature" parquet:"min_temperature"`
	AvgHumidity        float64 `db:"avg_humidity" csv:"avg_humidity" parquet:"avg_humidity"`
	TotalPrecipitation float64 `db:"total_precipitation" csv:"total_precipitation" parquet:"total_precipitation"`
	AvgWindSpeed       float64 `db:"avg_wind_speed" csv:"avg_wind_speed" parquet:"avg_wind_speed"`
	AvgCloudCover      float64 `db:"avg_cloud_cover" csv:"avg_cloud_cover" parquet:"avg_cloud_cover"`
}

// TemperatureTrendRow mirrors the temperature_trends view.
type TemperatureTrendRow struct {
	DateKey       time.Time `db:"date_key" csv:"date_key" parquet:"date_key"`
	Year          int32     `db:"year" csv:"year" parquet:"year"`
	Month         int32     `db:"month" csv:"month" parquet:"month"`
	ProvinceName  string    `db:"province_name" csv:"province_name" parquet:"province_name"`
	AvgTempC      float64   `db:"avg_temp_c" csv:"avg_temp_c" parquet:"avg_temp_c"`
	Temp30DayMA   float64   `db:"temp_30day_ma" csv:"temp_30day_ma" parquet:"temp_30day_ma"`
	MaxTempC      float64   `db:"max_temp_c" csv:"max_temp_c" parquet:"max_temp_c"`
	MinTempC      float64   `db:"min_temp_c" csv:"min_temp_c" parquet:"min_temp_c"`
	Precip30DayMA float64   `db:"precip_30day_ma" csv:"precip_30day_ma" parquet:"precip_30day_ma"`
}

// RainfallPatternRow mirrors the rainfall_patterns view.
type RainfallPatternRow struct {
	Year             int32   `db:"year" csv:"year" parquet:"year"`
	Month            int32   `db:"month" csv:"month" parquet:"month"`
	Season           string  `db:"season" csv:"season" parquet:"season"`
	ProvinceName     string  `db:"province_name" csv:"province_name" parquet:"province_name"`
	NumDays          int64   `db:"num_days" csv:"num_days" parquet:"num_days"`
	TotalRainfall    float64 `db:"total_rainfall" csv:"total_rainfall" parquet:"total_rainfall"`
	AvgDailyRainfall float64 `db:"avg_daily_rainfall" csv:"avg_daily_rainfall" parquet:"avg_daily_rainfall"`
	RainyDays        int64   `db:"rainy_days" csv:"rainy_days" parquet:"rainy_days"`
	RainyDaysPct     float64 `db:"rainy_days_pct" csv:"rainy_days_pct" parquet:"rainy_days_pct"`
}

// ManifestFile is one exported artifact in a Manifest.
type ManifestFile struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	File        string  `json:"file"`
	SizeMB      float64 `json:"size_mb"`
}

// Manifest records what an export run produced.
type Manifest struct {
	RunID       string         `json:"run_id"`
	Format      string         `json:"format"`
	ExportDate  time.Time      `json:"export_date"`
	Files       []ManifestFile `json:"files"`
	TotalSizeMB float64        `json:"total_size_mb"`
}

// Exporter writes mart tables and views to BI-friendly files.
type Exporter struct {
	db     DB
	dir    string
	logger *zap.Logger
}

// NewExporter wires an Exporter over an existing connection.
func NewExporter(db DB, dir string, logger *zap.Logger) *Exporter {
	return &Exporter{db: db, dir: dir, logger: logger}
}

// Export queries every mart object and writes it in the given format under a
// dated subdirectory, then writes a JSON manifest next to the format dirs.
// Individual object failures are logged and skipped so one broken view does
// not block the rest of the export.
func (e *Exporter) Export(ctx context.Context, format string) (Manifest, error) {
	if format != FormatCSV && format != FormatParquet {
		return Manifest{}, fmt.Errorf("unsupported export format %q", format)
	}

	now := time.Now()
	dir := filepath.Join(e.dir, format, now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("failed to create export dir: %w", err)
	}

	manifest := Manifest{
		RunID:      uuid.NewString(),
		Format:     format,
		ExportDate: now,
	}

	e.exportObject(ctx, &manifest, dir, format, "location_dim", "Dimension table: locations",
		`SELECT location_id, province_name, record_count FROM location_dim ORDER BY location_id`,
		collectAs[LocationRow])
	e.exportObject(ctx, &manifest, dir, format, "date_dim", "Dimension table: dates",
		`SELECT date_key, year, month, day, quarter, week_number, day_of_week, season FROM date_dim ORDER BY date_key`,
		collectAs[DateRow])
	e.exportObject(ctx, &manifest, dir, format, "weather_daily_facts", "Fact table: daily weather facts",
		`SELECT date_key, province_name, location_id, avg_temp_c, max_temp_c, min_temp_c,
		        avg_humidity_pct, total_precipitation_mm, avg_wind_speed, max_gust_speed,
		        avg_cloud_cover_pct, avg_pressure_hpa, weather_code, record_count
		 FROM weather_daily_facts ORDER BY province_name, date_key`,
		collectAs[DailyFactRow])
	e.exportObject(ctx, &manifest, dir, format, "weather_monthly_summary", "View: monthly aggregated summary",
		`SELECT year, month, province_name, num_days, avg_temperature, max_temperature,
		        min_temperature, avg_humidity, total_precipitation, avg_wind_speed, avg_cloud_cover
		 FROM weather_monthly_summary ORDER BY province_name, year, month`,
		collectAs[MonthlySummaryRow])
	e.exportObject(ctx, &manifest, dir, format, "temperature_trends", "View: temperature trends with 30-day moving average",
		`SELECT date_key, year, month, province_name, avg_temp_c, temp_30day_ma,
		        max_temp_c, min_temp_c, precip_30day_ma
		 FROM temperature_trends ORDER BY province_name, date_key`,
		collectAs[TemperatureTrendRow])
	e.exportObject(ctx, &manifest, dir, format, "rainfall_patterns", "View: monthly rainfall patterns",
		`SELECT year, month, season, province_name, num_days, total_rainfall,
		        avg_daily_rainfall, rainy_days, rainy_days_pct
		 FROM rainfall_patterns ORDER BY province_name, year, month`,
		collectAs[RainfallPatternRow])

	for _, f := range manifest.Files {
		manifest.TotalSizeMB += f.SizeMB
	}

	manifestPath := filepath.Join(e.dir, fmt.Sprintf("manifest_%s_%s.json", format, now.Format("20060102_150405")))
	if err := writeManifest(manifestPath, manifest); err != nil {
		return manifest, err
	}
	e.logger.Info("Export completed",
		zap.String("format", format),
		zap.Int("objects", len(manifest.Files)),
		zap.String("manifest", manifestPath),
	)
	return manifest, nil
}

// objectWriter queries one mart object and writes it to path.
type objectWriter func(ctx context.Context, db DB, query, path, format string) error

func (e *Exporter) exportObject(ctx context.Context, manifest *Manifest, dir, format, name, description, query string, write objectWriter) {
	path := filepath.Join(dir, name+"."+format)
	if err := write(ctx, e.db, query, path, format); err != nil {
		e.logger.Warn("Failed to export object", zap.String("object", name), zap.Error(err))
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		e.logger.Warn("Failed to stat exported file", zap.String("object", name), zap.Error(err))
		return
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	e.logger.Info("Exported object", zap.String("object", name), zap.Float64("size_mb", sizeMB))

	manifest.Files = append(manifest.Files, ManifestFile{
		Name:        name,
		Description: description,
		File:        path,
		SizeMB:      sizeMB,
	})
}

// collectAs queries rows into T and writes them in the requested format.
func collectAs[T any](ctx context.Context, db DB, query, path, format string) error {
	rows, err := db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	switch format {
	case FormatParquet:
		if err := parquet.WriteFile(path, records); err != nil {
			return fmt.Errorf("parquet write failed: %w", err)
		}
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create failed: %w", err)
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&records, f); err != nil {
			return fmt.Errorf("csv write failed: %w", err)
		}
	}
	return nil
}

func writeManifest(path string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
