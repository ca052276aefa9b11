package mart

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExportRejectsUnknownFormat(t *testing.T) {
	e := NewExporter(nil, t.TempDir(), zap.NewNop())
	_, err := e.Export(context.Background(), "xlsx")
	require.Error(t, err)
}

func TestExportWritesCSVAndManifest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Only location_dim answers; every other object fails its query and is
	// skipped rather than aborting the export.
	mock.ExpectQuery(`SELECT location_id, province_name, record_count FROM location_dim`).
		WillReturnRows(pgxmock.NewRows([]string{"location_id", "province_name", "record_count"}).
			AddRow(int64(1), "An Giang", int64(24)).
			AddRow(int64(2), "Bạc Liêu", int64(48)))

	dir := t.TempDir()
	e := NewExporter(mock, dir, zap.NewNop())

	manifest, err := e.Export(context.Background(), FormatCSV)
	require.NoError(t, err)
	require.Len(t, manifest.Files, 1)
	require.Equal(t, "location_dim", manifest.Files[0].Name)
	require.Equal(t, FormatCSV, manifest.Format)

	_, err = uuid.Parse(manifest.RunID)
	require.NoError(t, err)

	data, err := os.ReadFile(manifest.Files[0].File)
	require.NoError(t, err)
	require.Contains(t, string(data), "location_id,province_name,record_count")
	require.Contains(t, string(data), "Bạc Liêu")

	matches, err := filepath.Glob(filepath.Join(dir, "manifest_csv_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	var onDisk Manifest
	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	require.Equal(t, manifest.RunID, onDisk.RunID)
	require.Len(t, onDisk.Files, 1)
}

func TestExportPlacesFilesUnderDatedFormatDir(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM location_dim`).
		WillReturnRows(pgxmock.NewRows([]string{"location_id", "province_name", "record_count"}).
			AddRow(int64(1), "Cà Mau", int64(12)))

	dir := t.TempDir()
	e := NewExporter(mock, dir, zap.NewNop())

	manifest, err := e.Export(context.Background(), FormatCSV)
	require.NoError(t, err)
	require.Len(t, manifest.Files, 1)

	want := filepath.Join(dir, FormatCSV, time.Now().Format("2006-01-02"), "location_dim.csv")
	require.Equal(t, want, manifest.Files[0].File)
}
