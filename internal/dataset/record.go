// Package dataset owns the consolidated observation table: its schema, the
// merge/dedup rules and the durable CSV artifact.
package dataset

import "time"

// TimestampLayout is the canonical wire format for the Datetime column. It
// matches what the archive API emits for hourly series.
const TimestampLayout = "2006-01-02T15:04"

// fallbackLayouts are accepted when re-reading an artifact written by an
// earlier tool generation.
var fallbackLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// DateTime wraps time.Time with lenient CSV parsing: an unparseable cell
// becomes the zero time and the row is later discarded by Merge rather than
// failing the whole load.
type DateTime struct {
	time.Time
}

// NewDateTime builds a DateTime from a time.Time.
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t}
}

// MarshalCSV renders the timestamp in the canonical layout.
func (d DateTime) MarshalCSV() (string, error) {
	if d.IsZero() {
		return "", nil
	}
	return d.Format(TimestampLayout), nil
}

// UnmarshalCSV parses the timestamp, tolerating older layouts. Garbage maps
// to the zero time instead of an error.
func (d *DateTime) UnmarshalCSV(s string) error {
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		d.Time = t
		return nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	d.Time = time.Time{}
	return nil
}

// Record is one observation row keyed by (Province, Datetime). Field order is
// load-bearing: gocsv emits columns in declaration order, which is exactly the
// artifact's column-order invariant (region first, code columns, hourly
// metrics, daily aggregates, timestamp last).
type Record struct {
	Province string `csv:"Province"`

	WeatherCode      *float64 `csv:"Weather Code"`
	DailyWeatherCode *float64 `csv:"Daily Weather Code"`

	// Hourly ("instant") metrics, in archive variable order.
	Temperature           *float64 `csv:"Temperature (°C)"`
	RelativeHumidity      *float64 `csv:"Relative Humidity (%)"`
	DewPoint              *float64 `csv:"Dew Point (°C)"`
	ApparentTemperature   *float64 `csv:"Apparent Temperature (°C)"`
	SeaLevelPressure      *float64 `csv:"Sea Level Pressure (hPa)"`
	SurfacePressure       *float64 `csv:"Surface Pressure (hPa)"`
	Precipitation         *float64 `csv:"Precipitation (mm)"`
	CloudCover            *float64 `csv:"Cloud Cover (%)"`
	CloudCoverLow         *float64 `csv:"Low Cloud Cover (%)"`
	CloudCoverMid         *float64 `csv:"Mid Cloud Cover (%)"`
	CloudCoverHigh        *float64 `csv:"High Cloud Cover (%)"`
	WindSpeed10m          *float64 `csv:"Wind Speed 10m (m/s)"`
	WindSpeed100m         *float64 `csv:"Wind Speed 100m (m/s)"`
	WindDirection10m      *float64 `csv:"Wind Direction 10m (°)"`
	WindDirection100m     *float64 `csv:"Wind Direction 100m (°)"`
	WindGusts10m          *float64 `csv:"Wind Gusts 10m (m/s)"`
	ShortwaveRadiation    *float64 `csv:"Shortwave Radiation (W/m2)"`
	SunshineDuration      *float64 `csv:"Sunshine Duration (s)"`
	EvapotranspirationH   *float64 `csv:"FAO Evapotranspiration Hourly (mm)"`
	VapourPressureDeficit *float64 `csv:"Vapour Pressure Deficit (kPa)"`

	// Daily aggregates, broadcast across every hourly row of the same date.
	TemperatureMax          *float64 `csv:"Max Temperature (°C)"`
	TemperatureMin          *float64 `csv:"Min Temperature (°C)"`
	TemperatureMean         *float64 `csv:"Mean Temperature (°C)"`
	ApparentTemperatureMax  *float64 `csv:"Max Apparent Temperature (°C)"`
	ApparentTemperatureMin  *float64 `csv:"Min Apparent Temperature (°C)"`
	ApparentTemperatureMean *float64 `csv:"Mean Apparent Temperature (°C)"`
	PrecipitationSum        *float64 `csv:"Precipitation Sum (mm)"`
	PrecipitationHours      *float64 `csv:"Precipitation Hours (h)"`
	DaylightDuration        *float64 `csv:"Daylight Duration (s)"`
	SunshineDurationDaily   *float64 `csv:"Daily Sunshine Duration (s)"`
	ShortwaveRadiationSum   *float64 `csv:"Shortwave Radiation Sum (W/m2)"`
	WindSpeed10mMax         *float64 `csv:"Max Wind Speed 10m (m/s)"`
	WindGusts10mMax         *float64 `csv:"Max Wind Gusts 10m (m/s)"`
	WindDirectionDominant   *float64 `csv:"Dominant Wind Direction 10m (°)"`
	RelativeHumidityMean    *float64 `csv:"Mean Relative Humidity (%)"`
	DewPointMean            *float64 `csv:"Mean Dew Point (°C)"`
	CloudCoverMean          *float64 `csv:"Mean Cloud Cover (%)"`
	SurfacePressureMean     *float64 `csv:"Mean Surface Pressure (hPa)"`
	EvapotranspirationD     *float64 `csv:"FAO Evapotranspiration Daily (mm)"`
	Sunrise                 string   `csv:"Sunrise"`
	Sunset                  string   `csv:"Sunset"`

	Timestamp DateTime `csv:"Datetime"`
}

// Key identifies a record inside the consolidated dataset.
type Key struct {
	Province  string
	Timestamp time.Time
}

// Key returns the record's composite key.
func (r Record) Key() Key {
	return Key{Province: r.Province, Timestamp: r.Timestamp.Time}
}
