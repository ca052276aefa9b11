package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
)

// utf8BOM is written at the head of the artifact so spreadsheet tools decode
// the accented column names correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMalformed reports that an existing artifact could not be decoded. The
// caller receives an empty, usable dataset alongside it and a full re-crawl
// from the epoch follows.
var ErrMalformed = errors.New("dataset artifact is malformed")

// Dataset is the consolidated observation table. It is owned by exactly one
// process at a time; no internal locking.
type Dataset struct {
	records []Record
	latest  map[string]time.Time
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{latest: make(map[string]time.Time)}
}

// Load reads the artifact at path. A missing file yields an empty dataset and
// no error. A file that cannot be decoded yields an empty dataset and
// ErrMalformed so the caller can log and re-crawl.
func Load(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)

	var rows []Record
	if err := gocsv.UnmarshalBytes(raw, &rows); err != nil {
		return New(), fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ds := New()
	ds.Merge(rows)
	return ds, nil
}

// Len reports the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// Records exposes the sorted rows. Callers must not mutate the slice.
func (d *Dataset) Records() []Record {
	return d.records
}

// LatestFor returns the most recent timestamp stored for a region, if any.
// The index is maintained incrementally by Merge, so this is O(1) regardless
// of dataset size.
func (d *Dataset) LatestFor(region string) (time.Time, bool) {
	t, ok := d.latest[region]
	return t, ok
}

// Merge folds new fragments into the dataset: rows with an unusable timestamp
// are discarded, duplicates by (province, timestamp) collapse last-write-wins,
// and the result is re-sorted ascending by (province, timestamp). It returns
// the net row-count change.
func (d *Dataset) Merge(fragments []Record) int {
	before := len(d.records)

	combined := make([]Record, 0, len(d.records)+len(fragments))
	combined = append(combined, d.records...)
	combined = append(combined, fragments...)

	byKey := make(map[Key]int, len(combined))
	deduped := combined[:0]
	for _, rec := range combined {
		if rec.Timestamp.IsZero() || rec.Province == "" {
			continue
		}
		if idx, seen := byKey[rec.Key()]; seen {
			deduped[idx] = rec
			continue
		}
		byKey[rec.Key()] = len(deduped)
		deduped = append(deduped, rec)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Province != deduped[j].Province {
			return deduped[i].Province < deduped[j].Province
		}
		return deduped[i].Timestamp.Before(deduped[j].Timestamp.Time)
	})

	d.records = deduped
	d.rebuildLatest()
	return len(d.records) - before
}

func (d *Dataset) rebuildLatest() {
	d.latest = make(map[string]time.Time, len(d.latest))
	for _, rec := range d.records {
		if cur, ok := d.latest[rec.Province]; !ok || rec.Timestamp.After(cur) {
			d.latest[rec.Province] = rec.Timestamp.Time
		}
	}
}

// Save persists the whole dataset, overwriting the artifact. The write goes
// to a temporary file in the same directory followed by an atomic rename so a
// crash mid-write cannot corrupt the only durable record of crawl progress.
func (d *Dataset) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	body, err := gocsv.MarshalBytes(&d.records)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp dataset file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(utf8BOM); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write dataset BOM: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write dataset rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp dataset file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace dataset %s: %w", path, err)
	}
	return nil
}

// Header returns the artifact's column names in invariant order.
func Header() ([]string, error) {
	var empty []Record
	body, err := gocsv.MarshalBytes(&empty)
	if err != nil {
		return nil, fmt.Errorf("derive header: %w", err)
	}
	line := bytes.TrimRight(bytes.SplitN(body, []byte("\n"), 2)[0], "\r")
	var cols []string
	for _, col := range bytes.Split(line, []byte(",")) {
		cols = append(cols, string(col))
	}
	return cols, nil
}
