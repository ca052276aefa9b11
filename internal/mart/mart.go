// Package mart builds and serves the analytics layer: a bulk-loaded raw
// table, a dimensional model on top of it, and file exports for BI tools.
package mart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DB is the subset of pgx used by the mart. pgxpool.Pool satisfies it in
// production and pgxmock satisfies it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Connect opens a pgx pool and pings it to ensure the DSN is usable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// Mart owns the dimensional model built from the raw observation table.
type Mart struct {
	db       DB
	rawTable string
	logger   *zap.Logger
}

// NewMart wires a Mart over an existing connection.
func NewMart(db DB, rawTable string, logger *zap.Logger) *Mart {
	return &Mart{db: db, rawTable: rawTable, logger: logger}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Build creates the dimension tables, the daily fact table, the summary
// views and the supporting indices. Tables use IF NOT EXISTS so a rerun on
// an already-built mart is a no-op; views are replaced every run.
func (m *Mart) Build(ctx context.Context) error {
	raw := quoteIdent(m.rawTable)

	m.logger.Info("Creating dimensional model", zap.String("raw_table", m.rawTable))

	steps := []struct {
		name string
		sql  string
	}{
		{"location_dim", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS location_dim AS
			SELECT
				ROW_NUMBER() OVER (ORDER BY "Province") AS location_id,
				"Province" AS province_name,
				COUNT(*) AS record_count
			FROM %s
			GROUP BY "Province"`, raw)},
		{"date_dim", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS date_dim AS
			WITH date_range AS (
				SELECT DISTINCT CAST("Datetime" AS date) AS date_value
				FROM %s
			)
			SELECT
				date_value AS date_key,
				EXTRACT(YEAR FROM date_value)::int AS year,
				EXTRACT(MONTH FROM date_value)::int AS month,
				EXTRACT(DAY FROM date_value)::int AS day,
				EXTRACT(QUARTER FROM date_value)::int AS quarter,
				EXTRACT(WEEK FROM date_value)::int AS week_number,
				EXTRACT(DOW FROM date_value)::int AS day_of_week,
				CASE WHEN EXTRACT(MONTH FROM date_value) BETWEEN 5 AND 9 THEN 'Rainy'
				     WHEN EXTRACT(MONTH FROM date_value) IN (11, 12, 1, 2) THEN 'Dry'
				     ELSE 'Transitional' END AS season
			FROM date_range`, raw)},
		{"weather_daily_facts", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS weather_daily_facts AS
			SELECT
				CAST(rw."Datetime" AS date) AS date_key,
				rw."Province" AS province_name,
				ld.location_id,
				COALESCE(AVG(rw."Temperature (°C)"), 0) AS avg_temp_c,
				COALESCE(MAX(rw."Max Temperature (°C)"), 0) AS max_temp_c,
				COALESCE(MIN(rw."Min Temperature (°C)"), 0) AS min_temp_c,
				COALESCE(AVG(rw."Relative Humidity (%%)"), 0) AS avg_humidity_pct,
				COALESCE(SUM(rw."Precipitation (mm)"), 0) AS total_precipitation_mm,
				COALESCE(AVG(rw."Wind Speed 10m (m/s)"), 0) AS avg_wind_speed,
				COALESCE(MAX(rw."Wind Gusts 10m (m/s)"), 0) AS max_gust_speed,
				COALESCE(AVG(rw."Cloud Cover (%%)"), 0) AS avg_cloud_cover_pct,
				COALESCE(AVG(rw."Sea Level Pressure (hPa)"), 0) AS avg_pressure_hpa,
				COALESCE(MAX(rw."Daily Weather Code"), 0)::int AS weather_code,
				COUNT(*) AS record_count
			FROM %s rw
			LEFT JOIN location_dim ld ON rw."Province" = ld.province_name
			GROUP BY CAST(rw."Datetime" AS date), rw."Province", ld.location_id`, raw)},
		{"weather_monthly_summary", `
			CREATE OR REPLACE VIEW weather_monthly_summary AS
			SELECT
				dd.year,
				dd.month,
				wdf.province_name,
				COUNT(*) AS num_days,
				ROUND(AVG(wdf.avg_temp_c), 2) AS avg_temperature,
				ROUND(MAX(wdf.max_temp_c), 2) AS max_temperature,
				ROUND(MIN(wdf.min_temp_c), 2) AS min_temperature,
				ROUND(AVG(wdf.avg_humidity_pct), 2) AS avg_humidity,
				ROUND(SUM(wdf.total_precipitation_mm), 2) AS total_precipitation,
				ROUND(AVG(wdf.avg_wind_speed), 2) AS avg_wind_speed,
				ROUND(AVG(wdf.avg_cloud_cover_pct), 2) AS avg_cloud_cover
			FROM weather_daily_facts wdf
			LEFT JOIN date_dim dd ON wdf.date_key = dd.date_key
			GROUP BY dd.year, dd.month, wdf.province_name`},
		{"temperature_trends", `
			CREATE OR REPLACE VIEW temperature_trends AS
			SELECT
				wdf.date_key,
				dd.year,
				dd.month,
				wdf.province_name,
				wdf.avg_temp_c,
				ROUND(AVG(wdf.avg_temp_c) OVER (
					PARTITION BY wdf.province_name
					ORDER BY wdf.date_key
					ROWS BETWEEN 29 PRECEDING AND CURRENT ROW
				), 2) AS temp_30day_ma,
				wdf.max_temp_c,
				wdf.min_temp_c,
				ROUND(AVG(wdf.total_precipitation_mm) OVER (
					PARTITION BY wdf.province_name
					ORDER BY wdf.date_key
					ROWS BETWEEN 29 PRECEDING AND CURRENT ROW
				), 2) AS precip_30day_ma
			FROM weather_daily_facts wdf
			LEFT JOIN date_dim dd ON wdf.date_key = dd.date_key`},
		{"rainfall_patterns", `
			CREATE OR REPLACE VIEW rainfall_patterns AS
			SELECT
				dd.year,
				dd.month,
				dd.season,
				wdf.province_name,
				COUNT(*) AS num_days,
				ROUND(SUM(wdf.total_precipitation_mm), 2) AS total_rainfall,
				ROUND(AVG(wdf.total_precipitation_mm), 2) AS avg_daily_rainfall,
				COUNT(CASE WHEN wdf.total_precipitation_mm > 0 THEN 1 END) AS rainy_days,
				ROUND(100.0 * COUNT(CASE WHEN wdf.total_precipitation_mm > 0 THEN 1 END) / COUNT(*), 2) AS rainy_days_pct
			FROM weather_daily_facts wdf
			LEFT JOIN date_dim dd ON wdf.date_key = dd.date_key
			GROUP BY dd.year, dd.month, dd.season, wdf.province_name`},
		{"idx_wdf_date", `CREATE INDEX IF NOT EXISTS idx_wdf_date ON weather_daily_facts(date_key)`},
		{"idx_wdf_province", `CREATE INDEX IF NOT EXISTS idx_wdf_province ON weather_daily_facts(province_name)`},
		{"idx_wdf_location", `CREATE INDEX IF NOT EXISTS idx_wdf_location ON weather_daily_facts(location_id)`},
		{"idx_dd_year_month", `CREATE INDEX IF NOT EXISTS idx_dd_year_month ON date_dim(year, month)`},
	}

	for _, step := range steps {
		m.logger.Info("Building mart object", zap.String("object", step.name))
		if _, err := m.db.Exec(ctx, step.sql); err != nil {
			return fmt.Errorf("failed to build %s: %w", step.name, err)
		}
	}

	m.logger.Info("Dimensional model ready")
	return nil
}

// Statistics summarizes the built mart.
type Statistics struct {
	RawRows   int64     `json:"raw_rows"`
	FactRows  int64     `json:"fact_rows"`
	Provinces int64     `json:"provinces"`
	MinDate   time.Time `json:"min_date"`
	MaxDate   time.Time `json:"max_date"`
}

// Statistics queries row counts and the covered date range.
func (m *Mart) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	raw := quoteIdent(m.rawTable)
	if err := m.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", raw)).Scan(&stats.RawRows); err != nil {
		return stats, fmt.Errorf("failed to count raw rows: %w", err)
	}
	if err := m.db.QueryRow(ctx, "SELECT COUNT(*) FROM weather_daily_facts").Scan(&stats.FactRows); err != nil {
		return stats, fmt.Errorf("failed to count fact rows: %w", err)
	}
	if err := m.db.QueryRow(ctx, "SELECT COUNT(*) FROM location_dim").Scan(&stats.Provinces); err != nil {
		return stats, fmt.Errorf("failed to count provinces: %w", err)
	}
	if err := m.db.QueryRow(ctx, "SELECT MIN(date_key), MAX(date_key) FROM date_dim").Scan(&stats.MinDate, &stats.MaxDate); err != nil {
		return stats, fmt.Errorf("failed to read date range: %w", err)
	}

	return stats, nil
}
