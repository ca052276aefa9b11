// Package region materializes the list of tracked administrative regions with
// resolved coordinates, cached as a CSV artifact.
package region

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrNoRegions reports that no region could be resolved at all, which makes a
// crawl impossible.
var ErrNoRegions = errors.New("no regions resolved")

// Region is one administrative unit with resolved coordinates. Immutable once
// written to the registry artifact.
type Region struct {
	Name      string  `csv:"province"`
	Latitude  float64 `csv:"latitude"`
	Longitude float64 `csv:"longitude"`
}

// Geocoder resolves a region name to coordinates. ok=false means the name
// could not be resolved; that region is omitted, not fatal.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (lat, lon float64, ok bool, err error)
}

// Registry loads the cached region artifact, resolving and writing it first
// if it does not exist yet.
type Registry struct {
	path     string
	geocoder Geocoder
	logger   *zap.Logger
}

// NewRegistry builds a registry around a cache path and geocoding fallback.
func NewRegistry(path string, geocoder Geocoder, logger *zap.Logger) *Registry {
	return &Registry{path: path, geocoder: geocoder, logger: logger}
}

// Load returns the ordered region list. The artifact is created on first use
// by geocoding every province; afterwards it is read-only.
func (r *Registry) Load(ctx context.Context) ([]Region, error) {
	raw, err := os.ReadFile(r.path)
	if err == nil {
		return decodeRegions(raw)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read region registry %s: %w", r.path, err)
	}

	if r.geocoder == nil {
		return nil, fmt.Errorf("region registry %s missing and no geocoder configured", r.path)
	}

	regions, err := r.resolveAll(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.save(regions); err != nil {
		return nil, err
	}
	r.logger.Info("region registry created",
		zap.String("path", r.path),
		zap.Int("regions", len(regions)),
	)
	return regions, nil
}

func (r *Registry) resolveAll(ctx context.Context) ([]Region, error) {
	regions := make([]Region, 0, len(Provinces))
	for _, name := range Provinces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lat, lon, ok, err := r.geocoder.Geocode(ctx, name)
		if err != nil {
			r.logger.Warn("geocode failed, region omitted",
				zap.String("region", name),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			r.logger.Warn("no coordinates found, region omitted", zap.String("region", name))
			continue
		}
		r.logger.Info("region resolved",
			zap.String("region", name),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
		)
		regions = append(regions, Region{Name: name, Latitude: lat, Longitude: lon})
	}
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}
	return regions, nil
}

func (r *Registry) save(regions []Region) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	body, err := gocsv.MarshalBytes(&regions)
	if err != nil {
		return fmt.Errorf("encode region registry: %w", err)
	}
	if err := os.WriteFile(r.path, append(append([]byte{}, utf8BOM...), body...), 0o600); err != nil {
		return fmt.Errorf("write region registry %s: %w", r.path, err)
	}
	return nil
}

func decodeRegions(raw []byte) ([]Region, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	var regions []Region
	if err := gocsv.UnmarshalBytes(raw, &regions); err != nil {
		return nil, fmt.Errorf("decode region registry: %w", err)
	}
	if len(regions) == 0 {
		return nil, ErrNoRegions
	}
	return regions, nil
}
