package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/i474232898/desk-weather/internal/payload"
)

// AutoCityCode asks the service to look the city code up from the device's
// public address.
const AutoCityCode = "0"

// Bounds of the refresh interval in minutes.
const (
	MinIntervalMinutes = 1
	MaxIntervalMinutes = 60
)

var (
	// ErrInvalidSetting is returned by setters for out of range values.
	ErrInvalidSetting = errors.New("invalid setting")

	errNoSource = errors.New("source not configured")
)

// Settings is the live, reconfigurable part of the application context.
type Settings struct {
	CityCode        string `json:"cityCode"`
	IntervalMinutes int    `json:"intervalMinutes"`
	// WarningLocation overrides the city code for warning lookups. It is
	// either a location id or "lon,lat".
	WarningLocation string `json:"warningLocation,omitempty"`
	WarningsEnabled bool   `json:"warningsEnabled"`
}

// ValidCityCode reports whether code is AutoCityCode or a 9-digit code in
// the provider's range.
func ValidCityCode(code string) bool {
	if code == AutoCityCode {
		return true
	}
	if len(code) != 9 {
		return false
	}
	n, err := strconv.Atoi(code)
	return err == nil && n >= payload.CityCodeMin && n <= payload.CityCodeMax
}

// Sources bundles the upstreams used by the Service. Warnings and Locator
// may be nil.
type Sources struct {
	Weather  WeatherSource
	Warnings WarningSource
	Almanac  AlmanacSource
	Locator  CityLocator
}

// Service is the application context: settings, sources and the snapshot
// store. Refresh methods keep the last-known-good records on failure.
type Service struct {
	store  Store
	src    Sources
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	settings Settings
}

// NewService creates a new Service.
func NewService(store Store, src Sources, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		src:      src,
		logger:   logger,
		now:      time.Now,
		settings: settings,
	}
}

// WithClock replaces the time source. It is meant for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Settings returns a copy of the current settings.
func (s *Service) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetCityCode updates the city code and reports whether it changed.
func (s *Service) SetCityCode(code string) (bool, error) {
	if !ValidCityCode(code) {
		return false, fmt.Errorf("%w: city code %q", ErrInvalidSetting, code)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings.CityCode == code {
		return false, nil
	}
	s.settings.CityCode = code
	return true, nil
}

// SetIntervalMinutes updates the weather refresh interval.
func (s *Service) SetIntervalMinutes(m int) error {
	if m < MinIntervalMinutes || m > MaxIntervalMinutes {
		return fmt.Errorf("%w: interval %d minutes, want %d-%d", ErrInvalidSetting, m, MinIntervalMinutes, MaxIntervalMinutes)
	}
	s.mu.Lock()
	s.settings.IntervalMinutes = m
	s.mu.Unlock()
	return nil
}

// Interval returns the weather refresh interval.
func (s *Service) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.settings.IntervalMinutes) * time.Minute
}

// SetWarningLocation overrides the location used for warning lookups.
func (s *Service) SetWarningLocation(loc string) {
	s.mu.Lock()
	s.settings.WarningLocation = loc
	s.mu.Unlock()
}

// WarningsEnabled reports whether warning polling is configured and on.
func (s *Service) WarningsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.WarningsEnabled && s.src.Warnings != nil
}

// ResolveCityCode returns the configured city code, looking it up first
// when it is AutoCityCode.
func (s *Service) ResolveCityCode(ctx context.Context) (string, error) {
	code := s.Settings().CityCode
	if code != AutoCityCode && code != "" {
		return code, nil
	}
	if s.src.Locator == nil {
		return "", fmt.Errorf("city lookup: %w", errNoSource)
	}
	got, err := s.src.Locator.LookupCityCode(ctx)
	if err != nil {
		return "", fmt.Errorf("city lookup: %w", err)
	}

	s.mu.Lock()
	if s.settings.CityCode == AutoCityCode || s.settings.CityCode == "" {
		s.settings.CityCode = got
	}
	s.mu.Unlock()

	s.logger.Info("city code resolved", "city_code", got)
	return got, nil
}

// RefreshWeather fetches the weather index and stores the parsed records.
// A record that fails to parse keeps its previous value.
func (s *Service) RefreshWeather(ctx context.Context) error {
	if s.src.Weather == nil {
		return fmt.Errorf("weather: %w", errNoSource)
	}
	code, err := s.ResolveCityCode(ctx)
	if err != nil {
		return err
	}

	r, err := s.src.Weather.FetchIndex(ctx, code)
	if err != nil {
		if r.Placeholder && !s.store.Snapshot().Current.Loaded() {
			s.store.SaveWeather(r.Current, r.Forecast, WeatherTicker(r.Current, r.Forecast), s.now())
		}
		return fmt.Errorf("weather %s: %w", code, err)
	}
	if r.CurrentErr != nil && r.ForecastErr != nil {
		return fmt.Errorf("weather %s: %w", code, errors.Join(r.CurrentErr, r.ForecastErr))
	}

	now := s.now()
	prev := s.store.Snapshot()
	cur, fc := r.Current, r.Forecast
	if r.CurrentErr != nil {
		s.logger.Warn("observation parse failed; keeping previous", "city_code", code, "error", r.CurrentErr)
		cur = prev.Current
	} else {
		cur.CityCode = code
		cur.FetchedAt = now
	}
	if r.ForecastErr != nil {
		s.logger.Warn("forecast parse failed; keeping previous", "city_code", code, "error", r.ForecastErr)
		fc = prev.Forecast
	}

	s.store.SaveWeather(cur, fc, WeatherTicker(cur, fc), now)
	s.logger.Debug("weather stored", "city_code", code, "city", cur.City, "temp_c", cur.TempC)
	return nil
}

// RefreshWarning fetches the warnings for the configured location and
// stores the report.
func (s *Service) RefreshWarning(ctx context.Context) (WarningReport, error) {
	if s.src.Warnings == nil {
		return NewWarningReport(), fmt.Errorf("warning: %w", errNoSource)
	}
	loc := s.Settings().WarningLocation
	if loc == "" {
		code, err := s.ResolveCityCode(ctx)
		if err != nil {
			return NewWarningReport(), err
		}
		loc = code
	}

	r, err := s.src.Warnings.FetchWarnings(ctx, loc)
	if err != nil {
		return NewWarningReport(), fmt.Errorf("warning %s: %w", loc, err)
	}
	s.store.SaveWarning(r, s.now())
	return r, nil
}

// RefreshAlmanac fetches the almanac for day and stores it with its scroll
// set. A scroll set beyond MaxScroll is not stored.
func (s *Service) RefreshAlmanac(ctx context.Context, day time.Time) error {
	if s.src.Almanac == nil {
		return fmt.Errorf("almanac: %w", errNoSource)
	}
	a, err := s.src.Almanac.FetchAlmanac(ctx, day)
	if err != nil {
		return fmt.Errorf("almanac %s: %w", day.Format("20060102"), err)
	}
	scroll, err := AlmanacScroll(a)
	if err != nil {
		return fmt.Errorf("almanac %s: %w", day.Format("20060102"), err)
	}
	s.store.SaveAlmanac(a, scroll, s.now())
	return nil
}

// Snapshot returns a deep copy of the stored records.
func (s *Service) Snapshot() Snapshot {
	return s.store.Snapshot()
}

// GetLatest returns the most recent observation of the configured city.
func (s *Service) GetLatest() (CurrentWeather, error) {
	return s.store.GetLatest(s.Settings().CityCode)
}

// GetRange returns the observations of the configured city between from
// and to (inclusive).
func (s *Service) GetRange(from, to time.Time) ([]CurrentWeather, error) {
	return s.store.GetRange(s.Settings().CityCode, from, to)
}
