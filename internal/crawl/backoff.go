// Package crawl implements the resumable crawl/merge controller: the per-window
// retry state machine, the per-region drivers and the top-level run loop.
package crawl

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/vnclimate/weathermart/internal/archive"
	"github.com/vnclimate/weathermart/internal/dataset"
	"github.com/vnclimate/weathermart/internal/region"
)

// Sleeper abstracts blocking waits so tests can observe them instead of
// sleeping. Waits end early when the context finishes.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// TimerSleeper blocks on a real timer.
type TimerSleeper struct{}

// Sleep waits for d or until ctx is done.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Backoff holds the per-attempt wait schedule. Waits scale linearly with the
// attempt counter rather than doubling: over a multi-year, 63-region crawl
// pure exponential growth wastes too much wall clock.
type Backoff struct {
	MaxAttempts     int
	NetworkBase     time.Duration
	ServerBase      time.Duration
	RateLimitBase   time.Duration
	RateLimitJitter time.Duration
}

// DefaultBackoff returns the production schedule.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts:     6,
		NetworkBase:     10 * time.Second,
		ServerBase:      20 * time.Second,
		RateLimitBase:   60 * time.Second,
		RateLimitJitter: 60 * time.Second,
	}
}

// NetworkDelay is the wait after a connection failure on the given attempt.
func (b Backoff) NetworkDelay(attempt int) time.Duration {
	return b.NetworkBase * time.Duration(attempt)
}

// ServerDelay is the wait after a 5xx on the given attempt.
func (b Backoff) ServerDelay(attempt int) time.Duration {
	return b.ServerBase * time.Duration(attempt)
}

// RateLimitDelay is the wait after a 429: longer than the other schedules and
// jittered so parallel deployments do not retry in lockstep.
func (b Backoff) RateLimitDelay(attempt int, jitter func(time.Duration) time.Duration) time.Duration {
	return b.RateLimitBase*time.Duration(attempt) + jitter(b.RateLimitJitter)
}

// WindowOutcome is the terminal state of one window's retry loop.
type WindowOutcome int

const (
	// WindowSucceeded means the payload was fetched and reshaped.
	WindowSucceeded WindowOutcome = iota
	// WindowSkipped means a non-retryable client error dropped this window
	// only; the crawl continues.
	WindowSkipped
	// WindowHardStopped means retries were exhausted against persistent
	// throttling or server errors. The whole run must persist and stop.
	WindowHardStopped
	// WindowMalformed means the archive returned a 200 whose body did not
	// decode. Skipping would let the resume point advance past the window
	// and lose its data for good, so the run must persist and stop.
	WindowMalformed
)

// Fetcher executes one bounded-window request. *archive.Client satisfies it.
type Fetcher interface {
	FetchWindow(ctx context.Context, lat, lon float64, start, end time.Time) archive.FetchResult
}

// Retrier drives the per-window retry state machine.
type Retrier struct {
	fetcher Fetcher
	backoff Backoff
	sleeper Sleeper
	jitter  func(time.Duration) time.Duration
	logger  *zap.Logger
}

// NewRetrier wires a Retrier. sleeper and jitter may be nil for the real
// timer and crypto/rand jitter.
func NewRetrier(fetcher Fetcher, backoff Backoff, sleeper Sleeper, logger *zap.Logger) *Retrier {
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	return &Retrier{
		fetcher: fetcher,
		backoff: backoff,
		sleeper: sleeper,
		jitter:  cryptoJitter,
		logger:  logger,
	}
}

// Fetch runs the retry loop for one window and reshapes the payload on
// success. An empty payload is a success with zero records.
func (r *Retrier) Fetch(ctx context.Context, reg region.Region, win Window) ([]dataset.Record, WindowOutcome) {
	for attempt := 1; attempt <= r.backoff.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			// Treat cancellation like a hard stop: unwind so the
			// controller persists progress before exiting.
			return nil, WindowHardStopped
		}

		res := r.fetcher.FetchWindow(ctx, reg.Latitude, reg.Longitude, win.Start, win.End)
		ObserveFetch(res.Kind.String())

		switch res.Kind {
		case archive.KindSuccess:
			return Reshape(res.Payload, reg.Name), WindowSucceeded

		case archive.KindClientError:
			r.logger.Warn("window dropped on client error",
				zap.String("region", reg.Name),
				zap.String("window", win.String()),
				zap.Int("status", res.StatusCode),
				zap.Error(res.Err),
			)
			return nil, WindowSkipped

		case archive.KindMalformed:
			r.logger.Error("archive payload did not decode, stopping run",
				zap.String("region", reg.Name),
				zap.String("window", win.String()),
				zap.Error(res.Err),
			)
			return nil, WindowMalformed

		case archive.KindNetworkError:
			r.wait(ctx, "network", attempt, r.backoff.NetworkDelay(attempt), reg, win, res)

		case archive.KindRateLimited:
			r.wait(ctx, "rate_limit", attempt, r.backoff.RateLimitDelay(attempt, r.jitter), reg, win, res)

		case archive.KindServerError:
			r.wait(ctx, "server", attempt, r.backoff.ServerDelay(attempt), reg, win, res)
		}
	}

	r.logger.Error("retry attempts exhausted, hard stop",
		zap.String("region", reg.Name),
		zap.String("window", win.String()),
		zap.Int("max_attempts", r.backoff.MaxAttempts),
	)
	return nil, WindowHardStopped
}

func (r *Retrier) wait(ctx context.Context, reason string, attempt int, delay time.Duration, reg region.Region, win Window, res archive.FetchResult) {
	r.logger.Warn("fetch attempt failed, backing off",
		zap.String("region", reg.Name),
		zap.String("window", win.String()),
		zap.String("reason", reason),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", r.backoff.MaxAttempts),
		zap.Int("status", res.StatusCode),
		zap.Duration("wait", delay),
		zap.Error(res.Err),
	)
	ObserveBackoff(reason, delay.Seconds())
	r.sleeper.Sleep(ctx, delay)
}

// cryptoJitter draws a uniform duration in [0, limit).
func cryptoJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
