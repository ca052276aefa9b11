// Package archive implements the HTTP client for the historical weather
// archive API and classifies each response for the crawl retry machine.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Kind classifies one fetch attempt for the retry state machine.
type Kind int

const (
	// KindSuccess carries a decoded payload.
	KindSuccess Kind = iota
	// KindNetworkError marks a connection-level failure.
	KindNetworkError
	// KindServerError marks a 500/502/503/504 response.
	KindServerError
	// KindRateLimited marks a 429 response.
	KindRateLimited
	// KindClientError marks any other non-2xx status (400, 403, ...). The
	// affected window is dropped, not retried.
	KindClientError
	// KindMalformed marks a 200 response whose body does not decode. This is
	// never retried or skipped: the run must stop, otherwise the resume point
	// could advance past a window whose data was silently lost.
	KindMalformed
)

// String names the outcome for logs.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNetworkError:
		return "network_error"
	case KindServerError:
		return "server_error"
	case KindRateLimited:
		return "rate_limited"
	case KindClientError:
		return "client_error"
	case KindMalformed:
		return "malformed_payload"
	default:
		return "unknown"
	}
}

// FetchResult is the classified outcome of one window fetch.
type FetchResult struct {
	Kind       Kind
	StatusCode int
	Payload    *Payload
	Err        error
}

// Config controls the archive client.
type Config struct {
	BaseURL  string
	Timezone string
	Timeout  time.Duration
	// MaxRetries bounds the transport-level retry for connection failures
	// and transient 5xx responses. This sits below the crawl retry machine,
	// which owns the slow per-window schedules.
	MaxRetries int
}

// Client executes bounded-window requests against the archive API. It is
// constructed once and passed explicitly; there is no package-level session.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client with a shared connection pool.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// FetchWindow requests [start, end] (inclusive civil dates) for one
// coordinate pair and classifies the response. It never retries 429 itself,
// and it retries 5xx only within the transport bound; the slow per-window
// schedules belong to the crawl retry machine.
func (c *Client) FetchWindow(ctx context.Context, lat, lon float64, start, end time.Time) FetchResult {
	reqURL := c.windowURL(lat, lon, start, end)

	resp, err := c.do(ctx, reqURL)
	if err != nil {
		return FetchResult{Kind: KindNetworkError, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var payload Payload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return FetchResult{
				Kind:       KindMalformed,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("decode archive payload: %w", err),
			}
		}
		return FetchResult{Kind: KindSuccess, StatusCode: resp.StatusCode, Payload: &payload}
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return FetchResult{Kind: KindRateLimited, StatusCode: resp.StatusCode}
	case isRetryableServerError(resp.StatusCode):
		io.Copy(io.Discard, resp.Body)
		return FetchResult{Kind: KindServerError, StatusCode: resp.StatusCode}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return FetchResult{
			Kind:       KindClientError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("archive returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
}

// do issues the GET with a small transport-level retry for connection
// failures and transient 5xx responses. A 5xx that survives every transport
// attempt is returned for the crawl retry machine to handle.
func (c *Client) do(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build archive request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err == nil {
			if !isRetryableServerError(resp.StatusCode) || attempt >= c.cfg.MaxRetries {
				return resp, nil
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("archive returned %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= c.cfg.MaxRetries {
			return nil, fmt.Errorf("archive request failed after %d attempts: %w", attempt+1, lastErr)
		}

		delay := 250 * time.Millisecond << attempt
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
		c.logger.Debug("transport retry",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) windowURL(lat, lon float64, start, end time.Time) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("hourly", strings.Join(HourlyVariables, ","))
	q.Set("daily", strings.Join(DailyVariables, ","))
	q.Set("timezone", c.cfg.Timezone)
	q.Set("temperature_unit", "celsius")
	q.Set("wind_speed_unit", "ms")
	q.Set("pressure_unit", "hPa")
	return c.cfg.BaseURL + "?" + q.Encode()
}

func isRetryableServerError(status int) bool {
	switch status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
