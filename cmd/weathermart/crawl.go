package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/api"
	"github.com/vnclimate/weathermart/internal/archive"
	"github.com/vnclimate/weathermart/internal/blob"
	"github.com/vnclimate/weathermart/internal/crawl"
	"github.com/vnclimate/weathermart/internal/dataset"
	"github.com/vnclimate/weathermart/internal/notify"
	"github.com/vnclimate/weathermart/internal/region"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the weather archive and merge new observations into the dataset",
	Long: `Crawl walks every tracked province sequentially, fetching bounded date
windows from the archive API, reshaping them into hourly rows with daily
aggregates attached, and merging them into the consolidated CSV artifact.
The crawl resumes from each province's latest stored timestamp; persistent
rate limiting saves all progress and exits with status 2.`,
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	crawl.InitMetrics()
	if cfg.Server.Enabled {
		srv := api.NewServer(cfg.Server.Port, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	geocoder, err := buildGeocoder()
	if err != nil {
		return err
	}
	regions, err := region.NewRegistry(cfg.Paths.RegistryCSV, geocoder, logger).Load(ctx)
	if err != nil {
		return fmt.Errorf("load region registry: %w", err)
	}

	ds, err := dataset.Load(cfg.Paths.DatasetCSV)
	if err != nil {
		if !errors.Is(err, dataset.ErrMalformed) {
			return fmt.Errorf("load dataset: %w", err)
		}
		logger.Warn("dataset artifact malformed, starting from scratch",
			zap.String("path", cfg.Paths.DatasetCSV),
		)
	}

	client := archive.NewClient(archive.Config{
		BaseURL:    cfg.Archive.BaseURL,
		Timezone:   cfg.Archive.Timezone,
		Timeout:    cfg.ArchiveTimeout(),
		MaxRetries: cfg.Archive.MaxRetries,
	}, logger)

	backoff := crawl.DefaultBackoff()
	backoff.MaxAttempts = cfg.Crawl.MaxAttempts
	retrier := crawl.NewRetrier(client, backoff, nil, logger)

	mirror, closeMirror, err := buildMirror(ctx)
	if err != nil {
		return err
	}
	defer closeMirror()

	publisher, closePublisher, err := buildPublisher(ctx)
	if err != nil {
		return err
	}
	defer closePublisher()

	ctl := crawl.NewController(regions, ds, retrier, crawl.Options{
		DatasetPath:    cfg.Paths.DatasetCSV,
		EpochStart:     cfg.EpochStart(),
		WindowDays:     cfg.Crawl.WindowDays,
		WindowDelayMin: time.Duration(cfg.Crawl.WindowDelayMinSec) * time.Second,
		WindowDelayMax: time.Duration(cfg.Crawl.WindowDelayMaxSec) * time.Second,
		RegionDelayMin: time.Duration(cfg.Crawl.RegionDelayMinSec) * time.Second,
		RegionDelayMax: time.Duration(cfg.Crawl.RegionDelayMaxSec) * time.Second,
	}, nil, nil, mirror, logger)

	summary, runErr := ctl.Run(ctx)
	publishSummary(publisher, summary)
	return runErr
}

func buildGeocoder() (region.Geocoder, error) {
	switch cfg.Geocode.Provider {
	case "offline":
		return region.NewOfflineGeocoder(logger)
	default:
		return region.NewNominatimGeocoder(cfg.Geocode.UserAgent, logger), nil
	}
}

// buildMirror returns nil when mirroring is disabled; the controller treats a
// nil mirror as "persist locally only".
func buildMirror(ctx context.Context) (crawl.Mirror, func(), error) {
	noop := func() {}
	switch cfg.Blob.Provider {
	case "local":
		store, err := blob.NewLocalStore(cfg.Blob.LocalDir, cfg.Blob.Prefix)
		if err != nil {
			return nil, noop, fmt.Errorf("init local mirror: %w", err)
		}
		return store, noop, nil
	case "gcs":
		store, err := blob.NewGCSStore(ctx, cfg.Blob.GCSBucket, cfg.Blob.Prefix, logger)
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs mirror: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, noop, nil
	}
}

func buildPublisher(ctx context.Context) (notify.Publisher, func(), error) {
	noop := func() {}
	if cfg.Notify.Provider != "pubsub" {
		return notify.Noop{}, noop, nil
	}
	pub, err := notify.NewPubSubPublisher(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicID, logger)
	if err != nil {
		return nil, noop, fmt.Errorf("init run notifications: %w", err)
	}
	return pub, func() { _ = pub.Close() }, nil
}

// publishSummary is best-effort: a crawl that saved its data has succeeded
// even if the completion event cannot be delivered.
func publishSummary(publisher notify.Publisher, summary crawl.Summary) {
	data, err := json.Marshal(summary)
	if err != nil {
		logger.Warn("failed to encode run summary", zap.Error(err))
		return
	}
	// A fresh context: the run context may already be canceled on hard stop.
	pubCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := publisher.Publish(pubCtx, data); err != nil {
		logger.Warn("failed to publish run summary", zap.Error(err))
	}
}
