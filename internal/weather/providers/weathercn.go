package providers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/i474232898/desk-weather/internal/payload"
	"github.com/i474232898/desk-weather/internal/transport"
	"github.com/i474232898/desk-weather/internal/weather"
)

// DefaultWeatherIndexBase is the host serving the weather index pages.
const DefaultWeatherIndexBase = "http://d1.weather.com.cn"

// WeatherIndexProvider implements weather.WeatherSource for the city weather
// index page.
type WeatherIndexProvider struct {
	fetcher Fetcher
	base    string
	logger  *slog.Logger

	mu   sync.Mutex
	code string
	ep   transport.Endpoint
}

// NewWeatherIndexProvider creates the provider. An empty base uses
// DefaultWeatherIndexBase.
func NewWeatherIndexProvider(f Fetcher, base string, logger *slog.Logger) *WeatherIndexProvider {
	if base == "" {
		base = DefaultWeatherIndexBase
	}
	return &WeatherIndexProvider{fetcher: f, base: base, logger: orDefault(logger)}
}

// endpoint returns the descriptor for code, rebuilding it when the code
// changed since the last call.
func (p *WeatherIndexProvider) endpoint(code string) transport.Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.code != code || p.ep.Name == "" {
		p.code = code
		p.ep = transport.Endpoint{
			Name:      WeatherIndexEndpoint,
			Base:      p.base,
			Path:      "/weather_index/" + code + ".html",
			Header:    browserHeader(mobileSafariUA, "http://www.weather.com.cn/"),
			CacheBust: true,
		}
	}
	return p.ep
}

// FetchIndex fetches and parses the weather index page of cityCode. When the
// page layout is not recognised the reading is built from placeholder
// documents and returned together with the extraction error.
func (p *WeatherIndexProvider) FetchIndex(ctx context.Context, cityCode string) (weather.IndexReading, error) {
	ep := p.endpoint(cityCode)
	res, err := p.fetcher.Fetch(ctx, ep)
	if err != nil {
		return weather.IndexReading{}, err
	}

	docs, err := payload.WeatherIndex(res.Body)
	if err != nil {
		countFailure(p.logger, ep.Name, err)
		r := parseIndex(payload.FallbackWeatherIndex)
		r.Placeholder = true
		return r, err
	}

	r := parseIndex(docs)
	if r.CurrentErr != nil {
		countFailure(p.logger, ep.Name, r.CurrentErr)
	}
	if r.ForecastErr != nil {
		countFailure(p.logger, ep.Name, r.ForecastErr)
	}
	return r, nil
}

func parseIndex(docs payload.WeatherIndexDocs) weather.IndexReading {
	var r weather.IndexReading
	r.Current, r.CurrentErr = weather.ParseCurrentWeather(docs.Observation)
	r.Forecast, r.ForecastErr = weather.ParseForecast(docs.City, docs.Forecast)
	return r
}
