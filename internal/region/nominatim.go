package region

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// NominatimGeocoder resolves region names through the public Nominatim API.
// It paces itself between lookups; the registry is only built once so the
// delays are irrelevant to steady-state runs.
type NominatimGeocoder struct {
	baseURL    string
	userAgent  string
	country    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNominatimGeocoder builds a geocoder against the public endpoint.
func NewNominatimGeocoder(userAgent string, logger *zap.Logger) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   "https://nominatim.openstreetmap.org/search",
		userAgent: userAgent,
		country:   "Vietnam",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type nominatimHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode looks up "<name>, <country>" and returns the first hit.
func (g *NominatimGeocoder) Geocode(ctx context.Context, name string) (float64, float64, bool, error) {
	g.pause(ctx)

	q := url.Values{}
	q.Set("q", fmt.Sprintf("%s, %s", name, g.country))
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, false, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, 0, false, fmt.Errorf("geocode %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, false, fmt.Errorf("geocode %s: status %d", name, resp.StatusCode)
	}

	var hits []nominatimHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		return 0, 0, false, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(hits) == 0 {
		return 0, 0, false, nil
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse latitude %q: %w", hits[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("parse longitude %q: %w", hits[0].Lon, err)
	}
	return round4(lat), round4(lon), true, nil
}

// pause sleeps 1.5-3.0s between lookups, per the service's usage policy.
func (g *NominatimGeocoder) pause(ctx context.Context) {
	delay := 1500*time.Millisecond + randomJitter(1500*time.Millisecond)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

func round4(v float64) float64 {
	return float64(int64(v*10000+sign(v)*0.5)) / 10000
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
