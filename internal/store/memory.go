package store

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/i474232898/desk-weather/internal/metrics"
	"github.com/i474232898/desk-weather/internal/weather"
)

var (
	// ErrNotFound is returned when no observation is available for a city.
	ErrNotFound = errors.New("no weather data for city")
)

// history holds a time-ordered list of observations for one city.
type history struct {
	entries []weather.CurrentWeather
}

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// It holds the last-known-good snapshot and a bounded observation history
// per city code.
type MemoryStore struct {
	mu   sync.RWMutex
	snap weather.Snapshot

	// key: city code, value: history
	data map[string]*history

	// retention configuration
	maxHistory int           // max number of observations per city
	maxAge     time.Duration // optional max age for observations

	weatherGen *atomic.Uint64
	warningGen *atomic.Uint64
	almanacGen *atomic.Uint64

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(bootID string, maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		snap:       weather.NewSnapshot(bootID),
		data:       make(map[string]*history),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		weatherGen: atomic.NewUint64(0),
		warningGen: atomic.NewUint64(0),
		almanacGen: atomic.NewUint64(0),
		now:        time.Now,
	}
}

// SaveWeather replaces the observation, forecast and ticker. Observations
// that carry a fetch time are appended to the city's history.
func (s *MemoryStore) SaveWeather(cur weather.CurrentWeather, fc weather.Forecast, ticker []weather.ScrollEntry, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Current = cur
	s.snap.Forecast = fc
	s.snap.Ticker = append([]weather.ScrollEntry(nil), ticker...)
	s.snap.WeatherAt = at
	s.snap.WeatherGen = s.weatherGen.Inc()
	metrics.Generation.WithLabelValues("weather").Set(float64(s.snap.WeatherGen))

	if cur.Loaded() && !cur.FetchedAt.IsZero() {
		s.appendHistory(cur)
	}
}

// SaveWarning replaces the warning report.
func (s *MemoryStore) SaveWarning(r weather.WarningReport, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Warning = r
	s.snap.WarningActive = r.Active()
	s.snap.WarningAt = at
	s.snap.WarningGen = s.warningGen.Inc()
	metrics.Generation.WithLabelValues("warning").Set(float64(s.snap.WarningGen))
}

// SaveAlmanac replaces the almanac and its scroll set.
func (s *MemoryStore) SaveAlmanac(day weather.AlmanacDay, scroll []weather.ScrollEntry, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap.Almanac = day
	s.snap.AlmanacScroll = append([]weather.ScrollEntry(nil), scroll...)
	s.snap.AlmanacAt = at
	s.snap.AlmanacGen = s.almanacGen.Inc()
	metrics.Generation.WithLabelValues("almanac").Set(float64(s.snap.AlmanacGen))
}

// Snapshot returns a deep copy of the stored records.
func (s *MemoryStore) Snapshot() weather.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Generations returns the current generation counters without locking.
func (s *MemoryStore) Generations() (weatherGen, warningGen, almanacGen uint64) {
	return s.weatherGen.Load(), s.warningGen.Load(), s.almanacGen.Load()
}

// appendHistory must be called with s.mu held.
func (s *MemoryStore) appendHistory(cur weather.CurrentWeather) {
	h, ok := s.data[cur.CityCode]
	if !ok {
		h = &history{}
		s.data[cur.CityCode] = h
	}

	// A record carried over from an earlier fetch is already recorded.
	if n := len(h.entries); n > 0 && !cur.FetchedAt.After(h.entries[n-1].FetchedAt) {
		return
	}
	h.entries = append(h.entries, cur)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(h.entries) > s.maxHistory {
		over := len(h.entries) - s.maxHistory
		h.entries = h.entries[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(h.entries); i++ {
			if !h.entries[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		h.entries = h.entries[i:]
	}
}

// GetLatest returns the most recent observation for a city.
func (s *MemoryStore) GetLatest(cityCode string) (weather.CurrentWeather, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[cityCode]
	if !ok || len(h.entries) == 0 {
		return weather.CurrentWeather{}, ErrNotFound
	}
	return h.entries[len(h.entries)-1], nil
}

// GetRange returns all observations for a city between from and to (inclusive).
func (s *MemoryStore) GetRange(cityCode string, from, to time.Time) ([]weather.CurrentWeather, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.data[cityCode]
	if !ok || len(h.entries) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.CurrentWeather
	for _, e := range h.entries {
		if !e.FetchedAt.Before(from) && !e.FetchedAt.After(to) {
			result = append(result, e)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
