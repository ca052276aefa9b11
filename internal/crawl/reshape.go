package crawl

import (
	"strings"
	"time"

	"github.com/vnclimate/weathermart/internal/archive"
	"github.com/vnclimate/weathermart/internal/dataset"
)

// Reshape flattens one archive payload into observation records for a single
// region: one row per hourly timestamp, with that date's daily aggregates
// broadcast onto every row. A payload with no hourly rows yields nil, which
// the merge step treats as "no new data".
func Reshape(p *archive.Payload, regionName string) []dataset.Record {
	if p == nil || len(p.Hourly.Time) == 0 {
		return nil
	}

	dailyByDate := indexDaily(&p.Daily)

	records := make([]dataset.Record, 0, len(p.Hourly.Time))
	for i, raw := range p.Hourly.Time {
		ts, err := time.Parse(dataset.TimestampLayout, raw)
		if err != nil {
			// A malformed timestamp would be dropped at merge anyway.
			continue
		}

		h := &p.Hourly
		rec := dataset.Record{
			Province:              regionName,
			WeatherCode:           at(h.WeatherCode, i),
			Temperature:           at(h.Temperature, i),
			RelativeHumidity:      at(h.RelativeHumidity, i),
			DewPoint:              at(h.DewPoint, i),
			ApparentTemperature:   at(h.ApparentTemperature, i),
			SeaLevelPressure:      at(h.SeaLevelPressure, i),
			SurfacePressure:       at(h.SurfacePressure, i),
			Precipitation:         at(h.Precipitation, i),
			CloudCover:            at(h.CloudCover, i),
			CloudCoverLow:         at(h.CloudCoverLow, i),
			CloudCoverMid:         at(h.CloudCoverMid, i),
			CloudCoverHigh:        at(h.CloudCoverHigh, i),
			WindSpeed10m:          at(h.WindSpeed10m, i),
			WindSpeed100m:         at(h.WindSpeed100m, i),
			WindDirection10m:      at(h.WindDirection10m, i),
			WindDirection100m:     at(h.WindDirection100m, i),
			WindGusts10m:          at(h.WindGusts10m, i),
			ShortwaveRadiation:    at(h.ShortwaveRadiation, i),
			SunshineDuration:      at(h.SunshineDuration, i),
			EvapotranspirationH:   at(h.Evapotranspiration, i),
			VapourPressureDeficit: at(h.VapourPressureDeficit, i),
			Timestamp:             dataset.NewDateTime(ts),
		}

		if j, ok := dailyByDate[ts.Format("2006-01-02")]; ok {
			d := &p.Daily
			rec.DailyWeatherCode = at(d.WeatherCode, j)
			rec.TemperatureMax = at(d.TemperatureMax, j)
			rec.TemperatureMin = at(d.TemperatureMin, j)
			rec.TemperatureMean = at(d.TemperatureMean, j)
			rec.ApparentTemperatureMax = at(d.ApparentTemperatureMax, j)
			rec.ApparentTemperatureMin = at(d.ApparentTemperatureMin, j)
			rec.ApparentTemperatureMean = at(d.ApparentTemperatureMean, j)
			rec.PrecipitationSum = at(d.PrecipitationSum, j)
			rec.PrecipitationHours = at(d.PrecipitationHours, j)
			rec.DaylightDuration = at(d.DaylightDuration, j)
			rec.SunshineDurationDaily = at(d.SunshineDuration, j)
			rec.ShortwaveRadiationSum = at(d.ShortwaveRadiationSum, j)
			rec.WindSpeed10mMax = at(d.WindSpeed10mMax, j)
			rec.WindGusts10mMax = at(d.WindGusts10mMax, j)
			rec.WindDirectionDominant = at(d.WindDirectionDominant, j)
			rec.RelativeHumidityMean = at(d.RelativeHumidityMean, j)
			rec.DewPointMean = at(d.DewPointMean, j)
			rec.CloudCoverMean = at(d.CloudCoverMean, j)
			rec.SurfacePressureMean = at(d.SurfacePressureMean, j)
			rec.EvapotranspirationD = at(d.Evapotranspiration, j)
			if j < len(d.Sunrise) {
				rec.Sunrise = clockOfDay(d.Sunrise[j])
			}
			if j < len(d.Sunset) {
				rec.Sunset = clockOfDay(d.Sunset[j])
			}
		}

		records = append(records, rec)
	}
	return records
}

// indexDaily maps a calendar date to its position in the daily arrays.
func indexDaily(d *archive.DailySeries) map[string]int {
	idx := make(map[string]int, len(d.Time))
	for j, date := range d.Time {
		idx[date] = j
	}
	return idx
}

// at reads a parallel array defensively; the archive occasionally returns
// shorter arrays than the time axis.
func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

// clockOfDay normalizes a time-of-day field like sunrise ("2024-05-01T05:37")
// to its HH:MM portion.
func clockOfDay(raw string) string {
	if raw == "" {
		return ""
	}
	if ts, err := time.Parse(dataset.TimestampLayout, raw); err == nil {
		return ts.Format("15:04")
	}
	if i := strings.IndexByte(raw, 'T'); i >= 0 && len(raw) >= i+6 {
		return raw[i+1 : i+6]
	}
	return ""
}
