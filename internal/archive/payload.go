package archive

// HourlyVariables lists the archive variable identifiers requested for the
// sub-daily series, in the order they map onto dataset columns.
var HourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"dew_point_2m",
	"apparent_temperature",
	"pressure_msl",
	"surface_pressure",
	"precipitation",
	"cloud_cover",
	"cloud_cover_low",
	"cloud_cover_mid",
	"cloud_cover_high",
	"wind_speed_10m",
	"wind_speed_100m",
	"wind_direction_10m",
	"wind_direction_100m",
	"wind_gusts_10m",
	"weather_code",
	"shortwave_radiation",
	"sunshine_duration",
	"et0_fao_evapotranspiration",
	"vapour_pressure_deficit",
}

// DailyVariables lists the date-grained variable identifiers.
var DailyVariables = []string{
	"weather_code",
	"temperature_2m_max",
	"temperature_2m_min",
	"temperature_2m_mean",
	"apparent_temperature_max",
	"apparent_temperature_min",
	"apparent_temperature_mean",
	"precipitation_sum",
	"precipitation_hours",
	"daylight_duration",
	"sunshine_duration",
	"shortwave_radiation_sum",
	"wind_speed_10m_max",
	"wind_gusts_10m_max",
	"wind_direction_10m_dominant",
	"relative_humidity_2m_mean",
	"dew_point_2m_mean",
	"cloud_cover_mean",
	"surface_pressure_mean",
	"et0_fao_evapotranspiration",
	"sunrise",
	"sunset",
}

// Payload is the decoded archive response for one window.
type Payload struct {
	Hourly HourlySeries `json:"hourly"`
	Daily  DailySeries  `json:"daily"`
}

// HourlySeries carries parallel arrays aligned to Time.
type HourlySeries struct {
	Time                  []string   `json:"time"`
	Temperature           []*float64 `json:"temperature_2m"`
	RelativeHumidity      []*float64 `json:"relative_humidity_2m"`
	DewPoint              []*float64 `json:"dew_point_2m"`
	ApparentTemperature   []*float64 `json:"apparent_temperature"`
	SeaLevelPressure      []*float64 `json:"pressure_msl"`
	SurfacePressure       []*float64 `json:"surface_pressure"`
	Precipitation         []*float64 `json:"precipitation"`
	CloudCover            []*float64 `json:"cloud_cover"`
	CloudCoverLow         []*float64 `json:"cloud_cover_low"`
	CloudCoverMid         []*float64 `json:"cloud_cover_mid"`
	CloudCoverHigh        []*float64 `json:"cloud_cover_high"`
	WindSpeed10m          []*float64 `json:"wind_speed_10m"`
	WindSpeed100m         []*float64 `json:"wind_speed_100m"`
	WindDirection10m      []*float64 `json:"wind_direction_10m"`
	WindDirection100m     []*float64 `json:"wind_direction_100m"`
	WindGusts10m          []*float64 `json:"wind_gusts_10m"`
	WeatherCode           []*float64 `json:"weather_code"`
	ShortwaveRadiation    []*float64 `json:"shortwave_radiation"`
	SunshineDuration      []*float64 `json:"sunshine_duration"`
	Evapotranspiration    []*float64 `json:"et0_fao_evapotranspiration"`
	VapourPressureDeficit []*float64 `json:"vapour_pressure_deficit"`
}

// DailySeries carries parallel arrays aligned to Time (calendar dates).
type DailySeries struct {
	Time                    []string   `json:"time"`
	WeatherCode             []*float64 `json:"weather_code"`
	TemperatureMax          []*float64 `json:"temperature_2m_max"`
	TemperatureMin          []*float64 `json:"temperature_2m_min"`
	TemperatureMean         []*float64 `json:"temperature_2m_mean"`
	ApparentTemperatureMax  []*float64 `json:"apparent_temperature_max"`
	ApparentTemperatureMin  []*float64 `json:"apparent_temperature_min"`
	ApparentTemperatureMean []*float64 `json:"apparent_temperature_mean"`
	PrecipitationSum        []*float64 `json:"precipitation_sum"`
	PrecipitationHours      []*float64 `json:"precipitation_hours"`
	DaylightDuration        []*float64 `json:"daylight_duration"`
	SunshineDuration        []*float64 `json:"sunshine_duration"`
	ShortwaveRadiationSum   []*float64 `json:"shortwave_radiation_sum"`
	WindSpeed10mMax         []*float64 `json:"wind_speed_10m_max"`
	WindGusts10mMax         []*float64 `json:"wind_gusts_10m_max"`
	WindDirectionDominant   []*float64 `json:"wind_direction_10m_dominant"`
	RelativeHumidityMean    []*float64 `json:"relative_humidity_2m_mean"`
	DewPointMean            []*float64 `json:"dew_point_2m_mean"`
	CloudCoverMean          []*float64 `json:"cloud_cover_mean"`
	SurfacePressureMean     []*float64 `json:"surface_pressure_mean"`
	Evapotranspiration      []*float64 `json:"et0_fao_evapotranspiration"`
	Sunrise                 []string   `json:"sunrise"`
	Sunset                  []string   `json:"sunset"`
}
