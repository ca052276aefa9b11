package mart

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const guideFileName = "BI_SETUP.md"

// WriteBIGuide writes a connection and modeling guide for BI tools next to
// the export directories. Returns the path written.
func WriteBIGuide(exportDir, dsnHost string, now time.Time) (string, error) {
	path := filepath.Join(exportDir, guideFileName)

	content := fmt.Sprintf(`# BI Setup Guide

## Database Information
- **Database Type**: PostgreSQL
- **Host**: %s
- **Last Updated**: %s

## Connection Methods

### Method 1: Direct PostgreSQL Connection (Recommended)
**Steps**:
1. In your BI tool, choose the PostgreSQL connector
2. Enter the database host, port, database name and credentials
3. Select tables:
   - weather_daily_facts (main fact table)
   - location_dim (provinces/locations)
   - date_dim (dates and calendar info)
4. Create relationships:
   - weather_daily_facts.date_key -> date_dim.date_key
   - weather_daily_facts.province_name -> location_dim.province_name

### Method 2: Parquet Files
**Steps**:
1. Load Parquet files from: %s
2. Import and create relationships as in Method 1

### Method 3: CSV Files (Universal)
**Steps**:
1. Load CSV files from: %s
2. Verify data type mappings after import
3. Create relationships as in Method 1

## Table Structure

### Dimensions
- **location_dim**: province information
  - location_id (primary key), province_name, record_count
- **date_dim**: calendar attributes for time-based analysis
  - date_key (primary key)
  - year, month, day, quarter, week_number, day_of_week, season

### Facts
- **weather_daily_facts**: daily aggregated weather data
  - date_key (foreign key to date_dim)
  - province_name (foreign key to location_dim)
  - avg_temp_c, max_temp_c, min_temp_c
  - avg_humidity_pct
  - total_precipitation_mm
  - avg_wind_speed, max_gust_speed
  - avg_cloud_cover_pct, avg_pressure_hpa
  - weather_code, record_count

### Views (Summary Tables)
- **weather_monthly_summary**: monthly aggregates by province
- **temperature_trends**: temperature with 30-day moving averages
- **rainfall_patterns**: monthly rainfall statistics by season

## Refresh Schedule
- Daily: weather_daily_facts (new daily data)
- Weekly: monthly summary and trend views
- Manual: after data corrections
`,
		dsnHost,
		now.Format(time.RFC3339),
		filepath.Join(exportDir, FormatParquet),
		filepath.Join(exportDir, FormatCSV),
	)

	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write BI guide: %w", err)
	}
	return path, nil
}
