package mart

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInferColumnTypes(t *testing.T) {
	header := []string{"Province", "Temperature (°C)", "Datetime", "Sunrise", "Empty"}
	sample := [][]string{
		{"Hà Nội", "21.4", "2024-01-01T00:00", "05:37", ""},
		{"Hà Nội", "", "2024-01-01T01:00", "05:37", ""},
		{"Huế", "-3.5", "2024-01-02", "06:02", ""},
	}

	types := InferColumnTypes(header, sample)
	require.Equal(t, []ColumnType{
		TypeText,      // province names
		TypeNumeric,   // floats with gaps
		TypeTimestamp, // mixed hourly and date-only stamps
		TypeText,      // clock-of-day strings are neither float nor timestamp
		TypeNumeric,   // an all-empty column defaults to numeric
	}, types)
}

func TestInferColumnTypesNumericBeatsTimestamp(t *testing.T) {
	// A column of plain integers could be read either way; numeric wins.
	types := InferColumnTypes([]string{"code"}, [][]string{{"3"}, {"61"}})
	require.Equal(t, []ColumnType{TypeNumeric}, types)
}

func TestCSVCopySourceConvertsByType(t *testing.T) {
	path := writeCSV(t, "Province,Temperature (°C),Datetime\nHà Nội,21.4,2024-01-01T00:00\nHuế,,2024-01-02T05:00\n")

	header, sample, err := readSample(path)
	require.NoError(t, err)
	require.Len(t, sample, 2)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = len(header)
	_, err = r.Read() // header
	require.NoError(t, err)

	src := &csvCopySource{reader: r, types: InferColumnTypes(header, sample)}

	require.True(t, src.Next())
	values, err := src.Values()
	require.NoError(t, err)
	require.Equal(t, "Hà Nội", values[0])
	require.Equal(t, 21.4, values[1])
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), values[2])

	require.True(t, src.Next())
	values, err = src.Values()
	require.NoError(t, err)
	require.Nil(t, values[1], "empty cells load as NULL")

	require.False(t, src.Next())
	require.NoError(t, src.Err())
}

func TestLoaderCreatesTableAndCopies(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// BOM up front, exactly like the crawl artifact.
	path := writeCSV(t, "\xEF\xBB\xBFProvince,Temperature (°C),Datetime\nHà Nội,21.4,2024-01-01T00:00\nHuế,18.2,2024-01-01T01:00\n")

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "weather_data"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"weather_data"}, []string{"Province", "Temperature (°C)", "Datetime"}).
		WillReturnResult(2)

	loader := NewLoader(mock, "weather_data", zap.NewNop())
	res, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 3, res.Columns)
	require.EqualValues(t, 2, res.RowsCopied)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoaderMissingFile(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loader := NewLoader(mock, "weather_data", zap.NewNop())
	_, err = loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	require.Equal(t, `"weather_data"`, quoteIdent("weather_data"))
	require.Equal(t, `"Temperature (°C)"`, quoteIdent("Temperature (°C)"))
	require.Equal(t, `"odd""name"`, quoteIdent(`odd"name`))
}

func TestStatisticsQueriesEveryTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "weather_data"`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(48)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM weather_daily_facts`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM location_dim`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MIN(date_key), MAX(date_key) FROM date_dim`)).
		WillReturnRows(pgxmock.NewRows([]string{"min", "max"}).
			AddRow(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)))

	m := NewMart(mock, "weather_data", zap.NewNop())
	stats, err := m.Statistics(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 48, stats.RawRows)
	require.EqualValues(t, 2, stats.FactRows)
	require.EqualValues(t, 1, stats.Provinces)
	require.Equal(t, 2000, stats.MinDate.Year())
	require.Equal(t, 2024, stats.MaxDate.Year())

	require.NoError(t, mock.ExpectationsWereMet())
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
