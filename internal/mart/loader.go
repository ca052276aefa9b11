package mart

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// sampleRows is how many data rows are examined to infer a column's type.
const sampleRows = 100

// ColumnType is the SQL type chosen for a CSV column.
type ColumnType string

const (
	TypeNumeric   ColumnType = "NUMERIC"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeText      ColumnType = "TEXT"
)

var timestampLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// Loader bulk-loads the consolidated CSV artifact into a Postgres table using
// the COPY protocol, creating the table first with inferred column types.
type Loader struct {
	db     DB
	table  string
	logger *zap.Logger
}

// NewLoader wires a Loader over an existing connection.
func NewLoader(db DB, table string, logger *zap.Logger) *Loader {
	return &Loader{db: db, table: table, logger: logger}
}

// LoadResult summarizes a bulk load.
type LoadResult struct {
	Columns    int
	RowsCopied int64
	Elapsed    time.Duration
}

// Load creates the target table if needed and streams the whole CSV into it.
func (l *Loader) Load(ctx context.Context, csvPath string) (LoadResult, error) {
	header, sample, err := readSample(csvPath)
	if err != nil {
		return LoadResult{}, err
	}

	types := InferColumnTypes(header, sample)
	if err := l.ensureTable(ctx, header, types); err != nil {
		return LoadResult{}, err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return LoadResult{}, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = len(header)
	if _, err := r.Read(); err != nil {
		return LoadResult{}, fmt.Errorf("failed to read csv header: %w", err)
	}

	start := time.Now()
	src := &csvCopySource{reader: r, types: types}
	copied, err := l.db.CopyFrom(ctx, pgx.Identifier{l.table}, header, src)
	if err != nil {
		return LoadResult{}, fmt.Errorf("copy into %s failed: %w", l.table, err)
	}

	res := LoadResult{Columns: len(header), RowsCopied: copied, Elapsed: time.Since(start)}
	l.logger.Info("Bulk load completed",
		zap.String("table", l.table),
		zap.Int64("rows", res.RowsCopied),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// ensureTable issues CREATE TABLE IF NOT EXISTS with one quoted column per
// CSV header cell.
func (l *Loader) ensureTable(ctx context.Context, header []string, types []ColumnType) error {
	defs := make([]string, len(header))
	for i, col := range header {
		defs[i] = fmt.Sprintf("%s %s", quoteIdent(col), types[i])
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(l.table), strings.Join(defs, ", "))
	if _, err := l.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", l.table, err)
	}
	l.logger.Info("Table ready", zap.String("table", l.table), zap.Int("columns", len(header)))
	return nil
}

// InferColumnTypes picks a SQL type per column from a bounded sample.
// Numeric wins over timestamp, timestamp over text; a column whose sampled
// cells are all empty counts as numeric.
func InferColumnTypes(header []string, sample [][]string) []ColumnType {
	types := make([]ColumnType, len(header))
	for i := range header {
		types[i] = inferColumn(i, sample)
	}
	return types
}

func inferColumn(idx int, sample [][]string) ColumnType {
	numeric, timestamp := true, true
	for _, row := range sample {
		if idx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		if numeric {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
			}
		}
		if timestamp && !parsesAsTime(cell) {
			timestamp = false
		}
		if !numeric && !timestamp {
			return TypeText
		}
	}
	if numeric {
		return TypeNumeric
	}
	if timestamp {
		return TypeTimestamp
	}
	return TypeText
}

func parsesAsTime(s string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// readSample returns the header row plus up to sampleRows data rows.
func readSample(csvPath string) ([]string, [][]string, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var sample [][]string
	for len(sample) < sampleRows {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv sample: %w", err)
		}
		sample = append(sample, row)
	}
	return header, sample, nil
}

// stripBOM skips a UTF-8 byte order mark if the stream starts with one.
func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	lead, err := br.Peek(3)
	if err == nil && bytes.Equal(lead, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	return br
}

// csvCopySource adapts a csv.Reader to pgx's CopyFromSource, converting each
// cell by the inferred column type. Empty cells become NULL.
type csvCopySource struct {
	reader  *csv.Reader
	types   []ColumnType
	current []any
	err     error
}

func (s *csvCopySource) Next() bool {
	row, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		s.err = err
		return false
	}

	values := make([]any, len(row))
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			values[i] = nil
			continue
		}
		switch s.types[i] {
		case TypeNumeric:
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				s.err = fmt.Errorf("column %d: %w", i, err)
				return false
			}
			values[i] = v
		case TypeTimestamp:
			t, ok := parseTime(cell)
			if !ok {
				s.err = fmt.Errorf("column %d: unparseable timestamp %q", i, cell)
				return false
			}
			values[i] = t
		default:
			values[i] = cell
		}
	}
	s.current = values
	return true
}

func (s *csvCopySource) Values() ([]any, error) {
	return s.current, nil
}

func (s *csvCopySource) Err() error {
	return s.err
}
