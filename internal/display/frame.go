// Package display composes what the panel shows from the stored snapshot.
// Drawing itself is behind the Compositor interface.
package display

import (
	"time"

	"github.com/i474232898/desk-weather/internal/warning"
	"github.com/i474232898/desk-weather/internal/weather"
)

// Indoor is the latest local sensor reading.
type Indoor struct {
	TempC    float64   `json:"tempC"`
	Humidity float64   `json:"humidityPercent"`
	At       time.Time `json:"at"`
	Valid    bool      `json:"valid"`
}

// Frame is one composed screen.
type Frame struct {
	At    time.Time `json:"at"`
	Clock string    `json:"clock"`
	Date  string    `json:"date"`

	Current  weather.CurrentWeather `json:"current"`
	AQI      weather.AQILevel       `json:"aqi"`
	Forecast weather.Forecast       `json:"forecast"`
	Indoor   Indoor                 `json:"indoor"`

	Ticker      weather.ScrollEntry `json:"ticker"`
	TickerIndex int                 `json:"tickerIndex"`
	Almanac     weather.ScrollEntry `json:"almanac"`
	AlmanacIdx  int                 `json:"almanacIndex"`

	Takeover bool           `json:"takeover"`
	Banner   warning.Banner `json:"banner"`
	// Repaint asks the compositor to redraw the whole screen.
	Repaint bool `json:"repaint"`
}

// Compositor draws frames.
type Compositor interface {
	Draw(f Frame) error
}
