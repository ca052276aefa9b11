package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/clock"
	"github.com/vnclimate/weathermart/internal/dataset"
	"github.com/vnclimate/weathermart/internal/region"
)

// ErrRateLimitHardStop is the run-ending circuit breaker condition. By the
// time it surfaces all progress has already been persisted; the caller maps
// it to a distinguished exit status meaning "rerun later".
var ErrRateLimitHardStop = errors.New("persistent rate limiting, crawl paused; rerun later")

// ErrMalformedPayload ends the run when the archive returns a 200 whose body
// does not decode. Progress is persisted first; continuing instead would move
// the resume point past the broken window and drop its data permanently.
var ErrMalformedPayload = errors.New("archive returned a malformed payload, crawl aborted")

// Mirror optionally copies the dataset artifact to secondary storage after
// each persist. Mirroring is best-effort and never blocks the crawl.
type Mirror interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Options configure a Controller.
type Options struct {
	DatasetPath    string
	EpochStart     time.Time
	WindowDays     int
	WindowDelayMin time.Duration
	WindowDelayMax time.Duration
	RegionDelayMin time.Duration
	RegionDelayMax time.Duration
}

// Summary reports one run's results.
type Summary struct {
	RunID          string        `json:"run_id"`
	RegionsTotal   int           `json:"regions_total"`
	RegionsCrawled int           `json:"regions_crawled"`
	RegionsSkipped int           `json:"regions_skipped"`
	WindowsFetched int           `json:"windows_fetched"`
	WindowsSkipped int           `json:"windows_skipped"`
	RowsAdded      int           `json:"rows_added"`
	TotalRows      int           `json:"total_rows"`
	HardStopped    bool          `json:"hard_stopped"`
	Duration       time.Duration `json:"duration_ns"`
}

// Controller owns the consolidated dataset for the duration of one run and
// drives the sequential crawl: one region, one window, one request at a time.
// Concurrency is deliberately absent; parallel fetches would only amplify
// throttling.
type Controller struct {
	regions []region.Region
	ds      *dataset.Dataset
	retrier *Retrier
	opts    Options
	clk     clock.Clock
	sleeper Sleeper
	jitter  func(time.Duration) time.Duration
	mirror  Mirror
	logger  *zap.Logger
}

// NewController wires a Controller. clk, sleeper and mirror may be nil for
// the system clock, real timers and no mirroring.
func NewController(
	regions []region.Region,
	ds *dataset.Dataset,
	retrier *Retrier,
	opts Options,
	clk clock.Clock,
	sleeper Sleeper,
	mirror Mirror,
	logger *zap.Logger,
) *Controller {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 365
	}
	return &Controller{
		regions: regions,
		ds:      ds,
		retrier: retrier,
		opts:    opts,
		clk:     clk,
		sleeper: sleeper,
		jitter:  cryptoJitter,
		mirror:  mirror,
		logger:  logger,
	}
}

// Run crawls every region sequentially, merging and persisting after each
// one. On a hard stop it persists everything gathered so far and returns
// ErrRateLimitHardStop; persisting failures are surfaced immediately since
// they risk losing crawl progress.
func (c *Controller) Run(ctx context.Context) (Summary, error) {
	started := c.clk.Now()
	summary := Summary{
		RunID:        uuid.NewString(),
		RegionsTotal: len(c.regions),
		TotalRows:    c.ds.Len(),
	}
	logger := c.logger.With(zap.String("run_id", summary.RunID))

	logger.Info("crawl starting",
		zap.Int("regions", len(c.regions)),
		zap.Int("existing_rows", c.ds.Len()),
	)

	for i, reg := range c.regions {
		yesterday := civilDate(c.clk.Now()).AddDate(0, 0, -1)
		resume := c.resumePoint(reg.Name)

		regLogger := logger.With(
			zap.String("region", reg.Name),
			zap.Int("position", i+1),
			zap.Int("of", len(c.regions)),
		)

		if resume.After(yesterday) {
			regLogger.Info("region already caught up, skipping",
				zap.String("through", yesterday.Format("2006-01-02")),
			)
			summary.RegionsSkipped++
			continue
		}

		regLogger.Info("crawling region",
			zap.String("from", resume.Format("2006-01-02")),
			zap.String("to", yesterday.Format("2006-01-02")),
		)

		fragments, windowStats, stopErr := c.crawlRegion(ctx, regLogger, reg, resume, yesterday)
		summary.WindowsFetched += windowStats.fetched
		summary.WindowsSkipped += windowStats.skipped

		if len(fragments) > 0 {
			added := c.ds.Merge(fragments)
			summary.RowsAdded += added
			AddRowsMerged(added)
			if err := c.persist(ctx, regLogger); err != nil {
				return summary, err
			}
			regLogger.Info("region merged and persisted",
				zap.Int("rows_added", added),
				zap.Int("total_rows", c.ds.Len()),
			)
		} else if stopErr == nil {
			regLogger.Info("no new data for region")
		}

		if stopErr != nil {
			summary.HardStopped = errors.Is(stopErr, ErrRateLimitHardStop)
			summary.TotalRows = c.ds.Len()
			summary.Duration = c.clk.Now().Sub(started)
			if len(fragments) == 0 && c.ds.Len() > 0 {
				// Nothing merged for this region, but flush anyway so the
				// artifact reflects all prior regions.
				if err := c.persist(ctx, regLogger); err != nil {
					return summary, err
				}
			}
			logger.Error("run stopping: persisted all progress",
				zap.String("region", reg.Name),
				zap.Int("total_rows", c.ds.Len()),
				zap.Error(stopErr),
			)
			return summary, stopErr
		}

		summary.RegionsCrawled++
		IncRegionCompleted()

		if i < len(c.regions)-1 {
			delay := c.uniformDelay(c.opts.RegionDelayMin, c.opts.RegionDelayMax)
			regLogger.Info("pausing before next region", zap.Duration("delay", delay))
			c.sleeper.Sleep(ctx, delay)
		}
	}

	summary.TotalRows = c.ds.Len()
	summary.Duration = c.clk.Now().Sub(started)
	logger.Info("crawl complete",
		zap.Int("regions_crawled", summary.RegionsCrawled),
		zap.Int("regions_skipped", summary.RegionsSkipped),
		zap.Int("rows_added", summary.RowsAdded),
		zap.Int("total_rows", summary.TotalRows),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

type windowStats struct {
	fetched int
	skipped int
}

// crawlRegion iterates the region's fetch windows, collecting reshaped
// fragments until done or a run-stopping outcome. The triggering window's
// data is not retained; earlier windows' fragments are, so the caller can
// persist them before aborting.
func (c *Controller) crawlRegion(ctx context.Context, logger *zap.Logger, reg region.Region, resume, yesterday time.Time) ([]dataset.Record, windowStats, error) {
	var fragments []dataset.Record
	var stats windowStats

	windows := windowsBetween(resume, yesterday, c.opts.WindowDays)
	for n, win := range windows {
		logger.Info("fetching window",
			zap.String("window", win.String()),
			zap.Int("days", win.Days()),
			zap.Int("n", n+1),
			zap.Int("of", len(windows)),
		)

		records, outcome := c.retrier.Fetch(ctx, reg, win)
		switch outcome {
		case WindowSucceeded:
			ObserveWindow("succeeded")
			stats.fetched++
			if len(records) == 0 {
				logger.Info("window returned no data", zap.String("window", win.String()))
			} else {
				fragments = append(fragments, records...)
				logger.Info("window fetched",
					zap.String("window", win.String()),
					zap.Int("rows", len(records)),
				)
			}
		case WindowSkipped:
			ObserveWindow("skipped")
			stats.skipped++
		case WindowHardStopped:
			ObserveWindow("hard_stopped")
			return fragments, stats, ErrRateLimitHardStop
		case WindowMalformed:
			ObserveWindow("malformed")
			return fragments, stats, ErrMalformedPayload
		}

		if n < len(windows)-1 {
			c.sleeper.Sleep(ctx, c.uniformDelay(c.opts.WindowDelayMin, c.opts.WindowDelayMax))
		}
	}
	return fragments, stats, nil
}

// resumePoint is one day after the region's latest stored timestamp, or the
// epoch start when the region has no rows yet.
func (c *Controller) resumePoint(regionName string) time.Time {
	latest, ok := c.ds.LatestFor(regionName)
	if !ok {
		return civilDate(c.opts.EpochStart)
	}
	return civilDate(latest).AddDate(0, 0, 1)
}

func (c *Controller) persist(ctx context.Context, logger *zap.Logger) error {
	if err := c.ds.Save(c.opts.DatasetPath); err != nil {
		return fmt.Errorf("persist dataset: %w", err)
	}
	if c.mirror == nil {
		return nil
	}
	data, err := os.ReadFile(c.opts.DatasetPath)
	if err != nil {
		logger.Warn("mirror skipped, cannot re-read artifact", zap.Error(err))
		return nil
	}
	if err := c.mirror.Put(ctx, filepath.Base(c.opts.DatasetPath), data); err != nil {
		logger.Warn("mirror upload failed", zap.Error(err))
	}
	return nil
}

func (c *Controller) uniformDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + c.jitter(max-min)
}
