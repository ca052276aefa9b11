package mart

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildRunsStepsInDependencyOrder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Dimensions first, then the fact table joining them, then the views
	// and indices on top. pgxmock enforces the order.
	for _, pattern := range []string{
		`CREATE TABLE IF NOT EXISTS location_dim`,
		`CREATE TABLE IF NOT EXISTS date_dim`,
		`CREATE TABLE IF NOT EXISTS weather_daily_facts`,
		`CREATE OR REPLACE VIEW weather_monthly_summary`,
		`CREATE OR REPLACE VIEW temperature_trends`,
		`CREATE OR REPLACE VIEW rainfall_patterns`,
		`CREATE INDEX IF NOT EXISTS idx_wdf_date ON weather_daily_facts`,
		`CREATE INDEX IF NOT EXISTS idx_wdf_province ON weather_daily_facts`,
		`CREATE INDEX IF NOT EXISTS idx_wdf_location ON weather_daily_facts`,
		`CREATE INDEX IF NOT EXISTS idx_dd_year_month ON date_dim`,
	} {
		mock.ExpectExec(pattern).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	m := NewMart(mock, "weather_data", zap.NewNop())
	require.NoError(t, m.Build(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildReadsFromConfiguredRawTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`FROM "custom_raw"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`date_dim`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`FROM "custom_raw" rw`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	m := NewMart(mock, "custom_raw", zap.NewNop())
	err = m.Build(context.Background())
	// Remaining steps have no expectations; the first three must have
	// matched before the mock rejects the fourth.
	require.Error(t, err)
	require.Contains(t, err.Error(), "weather_monthly_summary")
}

func TestBuildStopsOnFirstFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("relation busy")
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS location_dim`).WillReturnError(boom)

	m := NewMart(mock, "weather_data", zap.NewNop())
	err = m.Build(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "location_dim")
	require.NoError(t, mock.ExpectationsWereMet())
}
