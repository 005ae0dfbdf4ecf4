package weather

import (
	"context"
	"time"
)

// IndexReading is the outcome of one weather index fetch. Each record is
// parsed independently; a failed record is left at its sentinel and its
// error is set.
type IndexReading struct {
	Current     CurrentWeather
	CurrentErr  error
	Forecast    Forecast
	ForecastErr error
	// Placeholder is set when the page layout was not recognised and the
	// records were built from canned documents.
	Placeholder bool
}

// WeatherSource fetches the weather index for a city code.
type WeatherSource interface {
	FetchIndex(ctx context.Context, cityCode string) (IndexReading, error)
}

// WarningSource fetches the active warnings for a location, which is a
// city code or "lon,lat".
type WarningSource interface {
	FetchWarnings(ctx context.Context, location string) (WarningReport, error)
}

// AlmanacSource fetches the almanac for one day.
type AlmanacSource interface {
	FetchAlmanac(ctx context.Context, day time.Time) (AlmanacDay, error)
}

// CityLocator resolves the city code of the device's public address.
type CityLocator interface {
	LookupCityCode(ctx context.Context) (string, error)
}

// Store keeps the last-known-good records. Every Save replaces its records
// wholesale.
type Store interface {
	SaveWeather(cur CurrentWeather, fc Forecast, ticker []ScrollEntry, at time.Time)
	SaveWarning(r WarningReport, at time.Time)
	SaveAlmanac(day AlmanacDay, scroll []ScrollEntry, at time.Time)
	Snapshot() Snapshot
	GetLatest(cityCode string) (CurrentWeather, error)
	GetRange(cityCode string, from, to time.Time) ([]CurrentWeather, error)
}
