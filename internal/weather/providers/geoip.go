package providers

import (
	"context"
	"log/slog"

	"github.com/i474232898/desk-weather/internal/payload"
	"github.com/i474232898/desk-weather/internal/transport"
)

// DefaultCityLookupBase is the host of the IP based city lookup.
const DefaultCityLookupBase = "http://wgeo.weather.com.cn"

// CityLookupProvider implements weather.CityLocator.
type CityLookupProvider struct {
	fetcher Fetcher
	ep      transport.Endpoint
	logger  *slog.Logger
}

// NewCityLookupProvider creates the provider. An empty base uses
// DefaultCityLookupBase.
func NewCityLookupProvider(f Fetcher, base string, logger *slog.Logger) *CityLookupProvider {
	if base == "" {
		base = DefaultCityLookupBase
	}
	return &CityLookupProvider{
		fetcher: f,
		ep: transport.Endpoint{
			Name:      CityLookupEndpoint,
			Base:      base,
			Path:      "/ip/",
			Header:    browserHeader(mobileSafariUA, "http://www.weather.com.cn/"),
			CacheBust: true,
			MaxBytes:  16 << 10,
		},
		logger: orDefault(logger),
	}
}

// LookupCityCode returns the city code of the device's public address.
func (p *CityLookupProvider) LookupCityCode(ctx context.Context) (string, error) {
	res, err := p.fetcher.Fetch(ctx, p.ep)
	if err != nil {
		return "", err
	}
	code, err := payload.CityCode(res.Body)
	if err != nil {
		countFailure(p.logger, p.ep.Name, err)
		return "", err
	}
	return code, nil
}
