package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/desk-weather/internal/weather"
)

var base = time.Date(2024, 10, 19, 12, 0, 0, 0, time.UTC)

func obs(code string, temp int, at time.Time) weather.CurrentWeather {
	return weather.CurrentWeather{CityCode: code, City: "湛江", TempC: temp, FetchedAt: at}
}

func newTestStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	s := NewMemoryStore("boot", maxHistory, maxAge)
	s.now = func() time.Time { return base.Add(time.Hour) }
	return s
}

func TestNewMemoryStore_StartsAtSentinels(t *testing.T) {
	s := newTestStore(0, 0)
	snap := s.Snapshot()
	assert.Equal(t, "boot", snap.BootID)
	assert.False(t, snap.Current.Loaded())
	assert.False(t, snap.Almanac.Loaded())
	assert.Equal(t, weather.NotLoadedInt, snap.Current.TempC)

	_, err := s.GetLatest("101281001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveWeather_ReplacesAndBumpsGeneration(t *testing.T) {
	s := newTestStore(0, 0)
	ticker := []weather.ScrollEntry{{Text: "实时天气 多云", Color: weather.ColorWhite}}

	s.SaveWeather(obs("101281001", 28, base), weather.Forecast{HighC: 31}, ticker, base)
	s.SaveWeather(obs("101281001", 29, base.Add(10*time.Minute)), weather.Forecast{HighC: 32}, ticker, base.Add(10*time.Minute))

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.WeatherGen)
	assert.Equal(t, 29, snap.Current.TempC)
	assert.Equal(t, 32, snap.Forecast.HighC)

	w, warn, al := s.Generations()
	assert.Equal(t, []uint64{2, 0, 0}, []uint64{w, warn, al})

	latest, err := s.GetLatest("101281001")
	require.NoError(t, err)
	assert.Equal(t, 29, latest.TempC)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newTestStore(0, 0)
	ticker := []weather.ScrollEntry{{Text: "a"}}
	s.SaveWeather(obs("101281001", 28, base), weather.Forecast{}, ticker, base)
	ticker[0].Text = "mutated by caller"

	snap := s.Snapshot()
	assert.Equal(t, "a", snap.Ticker[0].Text)
	snap.Ticker[0].Text = "mutated by reader"
	assert.Equal(t, "a", s.Snapshot().Ticker[0].Text)
}

func TestSaveWarningAndAlmanac(t *testing.T) {
	s := newTestStore(0, 0)
	s.SaveWarning(weather.WarningReport{Present: true, Warning: weather.Warning{Status: weather.StatusUpdate}}, base)
	s.SaveAlmanac(weather.AlmanacDay{LunarCalendar: "九月十七"}, []weather.ScrollEntry{{Text: "x"}}, base)

	snap := s.Snapshot()
	assert.True(t, snap.WarningActive)
	assert.Equal(t, uint64(1), snap.WarningGen)
	assert.Equal(t, uint64(1), snap.AlmanacGen)
	assert.Len(t, snap.AlmanacScroll, 1)

	s.SaveWarning(weather.WarningReport{Code: "200"}, base)
	assert.False(t, s.Snapshot().WarningActive)
}

func TestPlaceholderObservationsSkipHistory(t *testing.T) {
	s := newTestStore(0, 0)
	s.SaveWeather(weather.CurrentWeather{CityCode: "101281001", City: "--"}, weather.Forecast{}, nil, base)
	_, err := s.GetLatest("101281001")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "--", s.Snapshot().Current.City)
}

func TestCarriedOverObservationIsNotReappended(t *testing.T) {
	s := newTestStore(0, 0)
	cur := obs("101281001", 28, base)
	s.SaveWeather(cur, weather.Forecast{HighC: 31}, nil, base)
	// The observation failed to parse; the previous one is saved again with
	// a fresh forecast.
	s.SaveWeather(cur, weather.Forecast{HighC: 33}, nil, base.Add(10*time.Minute))
	s.SaveWeather(cur, weather.Forecast{HighC: 34}, nil, base.Add(20*time.Minute))

	got, err := s.GetRange("101281001", base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 34, s.Snapshot().Forecast.HighC)
	assert.Equal(t, uint64(3), s.Snapshot().WeatherGen)

	s.SaveWeather(obs("101281001", 29, base.Add(30*time.Minute)), weather.Forecast{}, nil, base.Add(30*time.Minute))
	got, err = s.GetRange("101281001", base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetentionByCount(t *testing.T) {
	s := newTestStore(3, 0)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.SaveWeather(obs("101281001", i, at), weather.Forecast{}, nil, at)
	}
	got, err := s.GetRange("101281001", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0].TempC)
	assert.Equal(t, 4, got[2].TempC)
}

func TestRetentionByAge(t *testing.T) {
	s := newTestStore(0, 30*time.Minute)
	// now is base+1h, so the cutoff is base+30m.
	s.SaveWeather(obs("101281001", 1, base), weather.Forecast{}, nil, base)
	s.SaveWeather(obs("101281001", 2, base.Add(20*time.Minute)), weather.Forecast{}, nil, base)
	s.SaveWeather(obs("101281001", 3, base.Add(40*time.Minute)), weather.Forecast{}, nil, base)

	got, err := s.GetRange("101281001", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].TempC)
}

func TestGetRange(t *testing.T) {
	s := newTestStore(0, 0)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Minute)
		s.SaveWeather(obs("101281001", i, at), weather.Forecast{}, nil, at)
	}

	got, err := s.GetRange("101281001", base.Add(10*time.Minute), base.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 2, "bounds are inclusive")

	_, err = s.GetRange("101281001", base.Add(time.Hour), base.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRange("101010100", base, base.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := newTestStore(10, 0)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			at := base.Add(time.Duration(i) * time.Second)
			s.SaveWeather(obs("101281001", i, at), weather.Forecast{HighC: i}, nil, at)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := s.Snapshot()
			if snap.Current.Loaded() {
				assert.Equal(t, snap.Current.TempC, snap.Forecast.HighC)
			}
		}
	}()
	wg.Wait()
}
