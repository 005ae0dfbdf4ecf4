package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // the device image ships without zoneinfo

	"github.com/joho/godotenv"

	"github.com/i474232898/desk-weather/internal/weather"
)

type AppConfig struct {
	// CityCode is a 9-digit weather.com.cn code, or "0" to look it up.
	CityCode        string `validate:"required,citycode"`
	IntervalMinutes int    `validate:"min=1,max=60"`

	QWeatherKey     string `validate:"required_if=WarningsEnabled true"`
	QWeatherHost    string `validate:"omitempty,url"`
	WarningLocation string
	// WarningAddress is geocoded to "lon,lat" at startup when set together
	// with GeocoderAPIKey. WarningLocation wins over it.
	WarningAddress  string
	GeocoderAPIKey  string
	WarningsEnabled bool

	AlmanacAppID     string
	AlmanacAppSecret string
	AlmanacCron      string

	RetrySpacing    time.Duration `validate:"gt=0s"`
	HTTPTimeout     time.Duration `validate:"gt=0s"`
	FetchAttempts   int           `validate:"min=1,max=10"`
	FetchRetryDelay time.Duration `validate:"gte=0s"`
	MaxBodyBytes    int64         `validate:"gt=0"`

	TakeoverMinDwell time.Duration `validate:"gt=0s"`
	TakeoverReadRate int           `validate:"min=1"`
	TickInterval     time.Duration `validate:"gt=0s"`

	Timezone string         `validate:"required"`
	Location *time.Location `validate:"required"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // observations kept per city (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0s"`

	SensorDir    string
	SensorEvery  time.Duration `validate:"gt=0s"`
	BacklightDir string
	BacklightMax int    `validate:"min=0,max=255"`
	BacklightMin int    `validate:"min=0,max=255"`
	SleepStart   string `validate:"omitempty,datetime=15:04"`
	SleepEnd     string `validate:"omitempty,datetime=15:04"`

	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn error"`
}

var validate = weather.NewValidator()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.CityCode = getenvDefault("CITY_CODE", "101281001")
	cfg.IntervalMinutes = getenvInt("UPDATE_INTERVAL_MIN", 10)

	cfg.QWeatherKey = os.Getenv("QWEATHER_KEY")
	cfg.QWeatherHost = os.Getenv("QWEATHER_HOST")
	cfg.WarningLocation = os.Getenv("WARNING_LOCATION")
	cfg.WarningAddress = os.Getenv("WARNING_ADDRESS")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")
	if cfg.WarningsEnabled, err = getenvBool("WARNINGS_ENABLED", cfg.QWeatherKey != ""); err != nil {
		return nil, err
	}

	cfg.AlmanacAppID = os.Getenv("ALMANAC_APP_ID")
	cfg.AlmanacAppSecret = os.Getenv("ALMANAC_APP_SECRET")
	cfg.AlmanacCron = getenvDefault("ALMANAC_CRON", "8 0 * * *")

	if cfg.RetrySpacing, err = getenvDuration("RETRY_SPACING", "1m"); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.FetchAttempts = getenvInt("FETCH_ATTEMPTS", 3)
	if cfg.FetchRetryDelay, err = getenvDuration("FETCH_RETRY_DELAY", "2s"); err != nil {
		return nil, err
	}
	cfg.MaxBodyBytes = int64(getenvInt("MAX_BODY_BYTES", 256<<10))

	if cfg.TakeoverMinDwell, err = getenvDuration("TAKEOVER_MIN_DWELL", "10s"); err != nil {
		return nil, err
	}
	cfg.TakeoverReadRate = getenvInt("TAKEOVER_READ_RATE", 8)
	if cfg.TickInterval, err = getenvDuration("TICK_INTERVAL", "1s"); err != nil {
		return nil, err
	}

	cfg.Timezone = getenvDefault("TIMEZONE", "Asia/Shanghai")
	if cfg.Location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 144) // a day at 10-minute intervals
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "24h"); err != nil {
		return nil, err
	}

	cfg.SensorDir = os.Getenv("SENSOR_IIO_DIR")
	if cfg.SensorEvery, err = getenvDuration("SENSOR_INTERVAL", "60s"); err != nil {
		return nil, err
	}
	cfg.BacklightDir = os.Getenv("BACKLIGHT_DIR")
	cfg.BacklightMax = getenvInt("BACKLIGHT_MAX", 150)
	cfg.BacklightMin = getenvInt("BACKLIGHT_MIN", 120)
	cfg.SleepStart = getenvDefault("SLEEP_START", "21:00")
	cfg.SleepEnd = getenvDefault("SLEEP_END", "08:30")

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
