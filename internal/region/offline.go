package region

import (
	"context"
	"fmt"

	"github.com/andreiashu/geobed"
	"go.uber.org/zap"
)

// OfflineGeocoder resolves names against the bundled geobed city dataset.
// Used when the machine building the registry has no outbound network access;
// resolution quality is coarser than Nominatim but it requires no API.
type OfflineGeocoder struct {
	gb     *geobed.GeoBed
	logger *zap.Logger
}

// NewOfflineGeocoder loads the geobed dataset. The first call downloads and
// caches the city data, so this can take a while.
func NewOfflineGeocoder(logger *zap.Logger) (*OfflineGeocoder, error) {
	gb, err := geobed.NewGeobed()
	if err != nil {
		return nil, fmt.Errorf("load geobed dataset: %w", err)
	}
	return &OfflineGeocoder{gb: gb, logger: logger}, nil
}

// Geocode resolves the region's principal city from the offline dataset.
func (g *OfflineGeocoder) Geocode(ctx context.Context, name string) (float64, float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, false, err
	}
	city := g.gb.Geocode(fmt.Sprintf("%s, Vietnam", name))
	if city.City == "" || (city.Latitude == 0 && city.Longitude == 0) {
		return 0, 0, false, nil
	}
	g.logger.Debug("offline geocode hit",
		zap.String("region", name),
		zap.String("city", city.City),
	)
	return round4(float64(city.Latitude)), round4(float64(city.Longitude)), true, nil
}
