package crawl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/archive"
	"github.com/vnclimate/weathermart/internal/blob"
	"github.com/vnclimate/weathermart/internal/clock"
	"github.com/vnclimate/weathermart/internal/dataset"
	"github.com/vnclimate/weathermart/internal/region"
)

type fetchCall struct {
	lat, lon   float64
	start, end time.Time
}

// capturingFetcher replays scripted results and records request bounds.
type capturingFetcher struct {
	results []archive.FetchResult
	calls   []fetchCall
}

func (f *capturingFetcher) FetchWindow(_ context.Context, lat, lon float64, start, end time.Time) archive.FetchResult {
	f.calls = append(f.calls, fetchCall{lat: lat, lon: lon, start: start, end: end})
	if len(f.calls) > len(f.results) {
		return archive.FetchResult{Kind: archive.KindClientError, StatusCode: 400}
	}
	return f.results[len(f.calls)-1]
}

func newTestController(t *testing.T, regions []region.Region, ds *dataset.Dataset, fetcher Fetcher, now time.Time, mirror Mirror) (*Controller, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	retrier := newTestRetrier(fetcher, &recordingSleeper{})
	ctl := NewController(regions, ds, retrier, Options{
		DatasetPath: path,
		EpochStart:  day("2000-01-01"),
		WindowDays:  365,
	}, clock.Fixed{T: now}, &recordingSleeper{}, mirror, zap.NewNop())
	ctl.jitter = func(time.Duration) time.Duration { return 0 }
	return ctl, path
}

func TestControllerSkipsCaughtUpRegion(t *testing.T) {
	now := day("2024-03-05")
	ds := dataset.New()
	ds.Merge([]dataset.Record{{
		Province:  "Hà Nội",
		Timestamp: dataset.NewDateTime(day("2024-03-04").Add(23 * time.Hour)),
	}})

	fetcher := &capturingFetcher{}
	ctl, _ := newTestController(t, []region.Region{{Name: "Hà Nội"}}, ds, fetcher, now, nil)

	summary, err := ctl.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.RegionsSkipped)
	require.Zero(t, summary.RegionsCrawled)
	require.Empty(t, fetcher.calls, "a caught-up region triggers no requests")
}

func TestControllerCrawlsFromEpochAndPersists(t *testing.T) {
	now := day("2000-01-05")
	fetcher := &capturingFetcher{results: []archive.FetchResult{
		{Kind: archive.KindSuccess, Payload: hourlyPayload("2000-01-01", 24)},
	}}
	mirror := blob.NewMemoryStore()

	ctl, path := newTestController(t, []region.Region{{Name: "Hà Nội", Latitude: 21, Longitude: 105.8}}, dataset.New(), fetcher, now, mirror)

	summary, err := ctl.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.RegionsCrawled)
	require.Equal(t, 1, summary.WindowsFetched)
	require.Equal(t, 24, summary.RowsAdded)
	require.Equal(t, 24, summary.TotalRows)
	require.NotEmpty(t, summary.RunID)

	// One window covering epoch..yesterday at the region's coordinates.
	require.Len(t, fetcher.calls, 1)
	require.Equal(t, day("2000-01-01"), fetcher.calls[0].start)
	require.Equal(t, day("2000-01-04"), fetcher.calls[0].end)
	require.Equal(t, 21.0, fetcher.calls[0].lat)

	// Artifact persisted and mirrored.
	_, err = os.Stat(path)
	require.NoError(t, err)
	mirrored, ok := mirror.Get("data.csv")
	require.True(t, ok)
	require.NotEmpty(t, mirrored)

	loaded, err := dataset.Load(path)
	require.NoError(t, err)
	require.Equal(t, 24, loaded.Len())
}

func TestControllerResumesAfterLatestTimestamp(t *testing.T) {
	now := day("2000-01-10")
	ds := dataset.New()
	ds.Merge([]dataset.Record{{
		Province:  "Hà Nội",
		Timestamp: dataset.NewDateTime(day("2000-01-02").Add(23 * time.Hour)),
	}})

	fetcher := &capturingFetcher{results: []archive.FetchResult{
		{Kind: archive.KindSuccess, Payload: hourlyPayload("2000-01-03", 2)},
	}}
	ctl, _ := newTestController(t, []region.Region{{Name: "Hà Nội"}}, ds, fetcher, now, nil)

	_, err := ctl.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, fetcher.calls, 1)
	require.Equal(t, day("2000-01-03"), fetcher.calls[0].start, "resume is one day after the latest stored timestamp")
	require.Equal(t, day("2000-01-09"), fetcher.calls[0].end, "crawl never asks for today")
}

func TestControllerRerunAfterCompletionIsIdempotent(t *testing.T) {
	now := day("2000-01-05")
	fetcher := &capturingFetcher{results: []archive.FetchResult{
		{Kind: archive.KindSuccess, Payload: hourlyPayload("2000-01-04", 24)},
	}}
	ds := dataset.New()
	ctl, _ := newTestController(t, []region.Region{{Name: "Hà Nội"}}, ds, fetcher, now, nil)

	_, err := ctl.Run(context.Background())
	require.NoError(t, err)

	// Second run against the same dataset: latest is yesterday 23:00, so the
	// region is already caught up.
	ctl2, _ := newTestController(t, []region.Region{{Name: "Hà Nội"}}, ds, fetcher, now, nil)
	summary, err := ctl2.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.RegionsSkipped)
	require.Len(t, fetcher.calls, 1, "no additional requests on rerun")
}

func TestControllerHardStopPersistsPriorProgress(t *testing.T) {
	now := day("2000-01-05")

	throttled := make([]archive.FetchResult, 0, 7)
	throttled = append(throttled, archive.FetchResult{Kind: archive.KindSuccess, Payload: hourlyPayload("2000-01-01", 24)})
	for i := 0; i < 6; i++ {
		throttled = append(throttled, archive.FetchResult{Kind: archive.KindRateLimited, StatusCode: 429})
	}
	fetcher := &capturingFetcher{results: throttled}

	regions := []region.Region{{Name: "An Giang"}, {Name: "Bạc Liêu"}}
	ctl, path := newTestController(t, regions, dataset.New(), fetcher, now, nil)

	summary, err := ctl.Run(context.Background())
	require.ErrorIs(t, err, ErrRateLimitHardStop)
	require.True(t, summary.HardStopped)
	require.Equal(t, 1, summary.RegionsCrawled)

	// The first region's rows survived the abort.
	loaded, loadErr := dataset.Load(path)
	require.NoError(t, loadErr)
	require.Equal(t, 24, loaded.Len())
	_, ok := loaded.LatestFor("An Giang")
	require.True(t, ok)
	_, notOK := loaded.LatestFor("Bạc Liêu")
	require.False(t, notOK)
}

func TestControllerMalformedPayloadPersistsAndAborts(t *testing.T) {
	now := day("2000-01-05")

	results := []archive.FetchResult{
		{Kind: archive.KindSuccess, Payload: hourlyPayload("2000-01-01", 24)},
		{Kind: archive.KindMalformed, StatusCode: 200, Err: errors.New("decode archive payload: invalid character 'g'")},
	}
	fetcher := &capturingFetcher{results: results}

	regions := []region.Region{{Name: "An Giang"}, {Name: "Bạc Liêu"}}
	ctl, path := newTestController(t, regions, dataset.New(), fetcher, now, nil)

	summary, err := ctl.Run(context.Background())
	require.ErrorIs(t, err, ErrMalformedPayload)
	require.False(t, summary.HardStopped, "a malformed payload is not a rate-limit stop")
	require.Equal(t, 1, summary.RegionsCrawled)
	require.Len(t, fetcher.calls, 2, "no further regions after the broken window")

	// The first region's rows survived the abort; the broken window's region
	// has none, so a rerun starts it from the epoch instead of past the gap.
	loaded, loadErr := dataset.Load(path)
	require.NoError(t, loadErr)
	require.Equal(t, 24, loaded.Len())
	_, ok := loaded.LatestFor("An Giang")
	require.True(t, ok)
	_, notOK := loaded.LatestFor("Bạc Liêu")
	require.False(t, notOK)
}

func TestControllerSoftFailureDropsWindowOnly(t *testing.T) {
	now := day("2000-01-05")
	fetcher := &capturingFetcher{results: []archive.FetchResult{
		{Kind: archive.KindClientError, StatusCode: 400},
	}}
	ctl, path := newTestController(t, []region.Region{{Name: "Hà Nội"}}, dataset.New(), fetcher, now, nil)

	summary, err := ctl.Run(context.Background())
	require.NoError(t, err, "a dropped window does not fail the run")
	require.Equal(t, 1, summary.WindowsSkipped)
	require.Equal(t, 1, summary.RegionsCrawled)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "nothing to persist when no data was merged")
}
