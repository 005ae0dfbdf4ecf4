package providers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/i474232898/desk-weather/internal/metrics"
	"github.com/i474232898/desk-weather/internal/payload"
	"github.com/i474232898/desk-weather/internal/transport"
	"github.com/i474232898/desk-weather/internal/weather"
)

// User agents expected by the upstreams.
const (
	mobileSafariUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 11_0 like Mac OS X) AppleWebKit/604.1.38 (KHTML, like Gecko) Version/11.0 Mobile/15A372 Safari/604.1"
	firefoxUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0"
)

// Endpoint names key breakers, in-flight guards and metrics.
const (
	WeatherIndexEndpoint = "weather_index"
	WarningEndpoint      = "warning"
	AlmanacEndpoint      = "almanac"
	CityLookupEndpoint   = "city_lookup"
)

// Fetcher is the part of transport.Fetcher the providers use.
type Fetcher interface {
	Fetch(ctx context.Context, ep transport.Endpoint) (*transport.Result, error)
}

var errMissingKey = errors.New("api key is not configured")

func browserHeader(ua, referer string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", ua)
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

// errClass extends transport.Class with the extraction and parse stages.
func errClass(err error) string {
	switch {
	case errors.Is(err, payload.ErrExtract):
		return "extract"
	case errors.Is(err, weather.ErrParse):
		return "parse"
	default:
		return transport.Class(err)
	}
}

// countFailure records failures that happen after a successful fetch.
// Transport level failures are counted by the fetcher itself.
func countFailure(logger *slog.Logger, endpoint string, err error) {
	class := errClass(err)
	metrics.FetchFailures.WithLabelValues(endpoint, class).Inc()
	logger.Warn("upstream payload rejected", "endpoint", endpoint, "class", class, "error", err)
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
