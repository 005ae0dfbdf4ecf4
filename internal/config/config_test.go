package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"CITY_CODE", "UPDATE_INTERVAL_MIN", "QWEATHER_KEY", "QWEATHER_HOST", "WARNING_LOCATION",
	"WARNING_ADDRESS", "GEOCODER_API_KEY", "WARNINGS_ENABLED", "ALMANAC_APP_ID",
	"ALMANAC_APP_SECRET", "ALMANAC_CRON", "RETRY_SPACING", "HTTP_TIMEOUT", "FETCH_ATTEMPTS",
	"FETCH_RETRY_DELAY", "MAX_BODY_BYTES", "TAKEOVER_MIN_DWELL", "TAKEOVER_READ_RATE",
	"TICK_INTERVAL", "TIMEZONE", "STORE_MAX_HISTORY", "STORE_MAX_AGE", "SENSOR_IIO_DIR",
	"SENSOR_INTERVAL", "BACKLIGHT_DIR", "BACKLIGHT_MAX", "BACKLIGHT_MIN", "SLEEP_START",
	"SLEEP_END", "PORT", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "101281001", cfg.CityCode)
	assert.Equal(t, 10, cfg.IntervalMinutes)
	assert.False(t, cfg.WarningsEnabled)
	assert.Equal(t, "8 0 * * *", cfg.AlmanacCron)
	assert.Equal(t, time.Minute, cfg.RetrySpacing)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.FetchAttempts)
	assert.Equal(t, 2*time.Second, cfg.FetchRetryDelay)
	assert.Equal(t, int64(256<<10), cfg.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, cfg.TakeoverMinDwell)
	assert.Equal(t, 8, cfg.TakeoverReadRate)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, "Asia/Shanghai", cfg.Location.String())
	assert.Equal(t, 150, cfg.BacklightMax)
	assert.Equal(t, 120, cfg.BacklightMin)
	assert.Equal(t, "21:00", cfg.SleepStart)
	assert.Equal(t, "08:30", cfg.SleepEnd)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CITY_CODE", "0")
	t.Setenv("UPDATE_INTERVAL_MIN", "30")
	t.Setenv("QWEATHER_KEY", "k")
	t.Setenv("RETRY_SPACING", "90s")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0", cfg.CityCode)
	assert.Equal(t, 30, cfg.IntervalMinutes)
	assert.True(t, cfg.WarningsEnabled, "a key turns warnings on by default")
	assert.Equal(t, 90*time.Second, cfg.RetrySpacing)
	assert.Equal(t, time.UTC.String(), cfg.Location.String())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"city code out of range": {"CITY_CODE": "201281001"},
		"city code short":        {"CITY_CODE": "10128"},
		"interval too long":      {"UPDATE_INTERVAL_MIN": "61"},
		"interval zero":          {"UPDATE_INTERVAL_MIN": "0"},
		"warnings without key":   {"WARNINGS_ENABLED": "true"},
		"bad bool":               {"WARNINGS_ENABLED": "maybe"},
		"bad duration":           {"HTTP_TIMEOUT": "soon"},
		"zero timeout":           {"HTTP_TIMEOUT": "0s"},
		"bad timezone":           {"TIMEZONE": "Mars/Olympus"},
		"bad sleep clock":        {"SLEEP_START": "25:00"},
		"backlight too bright":   {"BACKLIGHT_MAX": "300"},
		"bad log level":          {"LOG_LEVEL": "loud"},
		"bad port":               {"PORT": "http"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
