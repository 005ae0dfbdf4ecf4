package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/i474232898/desk-weather/internal/payload"
	"github.com/i474232898/desk-weather/internal/transport"
	"github.com/i474232898/desk-weather/internal/weather"
)

// DefaultWarningBase is the warning API host.
const DefaultWarningBase = "https://devapi.qweather.com"

// WarningProvider implements weather.WarningSource for the severe weather
// warning API.
type WarningProvider struct {
	fetcher Fetcher
	base    string
	key     string
	logger  *slog.Logger
}

// NewWarningProvider creates the provider. An empty base uses
// DefaultWarningBase.
func NewWarningProvider(f Fetcher, base, key string, logger *slog.Logger) *WarningProvider {
	if base == "" {
		base = DefaultWarningBase
	}
	return &WarningProvider{fetcher: f, base: base, key: key, logger: orDefault(logger)}
}

func (p *WarningProvider) endpoint(location string) transport.Endpoint {
	h := browserHeader(firefoxUA, "")
	h.Set("Accept-Encoding", "gzip")
	return transport.Endpoint{
		Name: WarningEndpoint,
		Base: p.base,
		Path: "/v7/warning/now",
		Query: url.Values{
			"location": {location},
			"key":      {p.key},
			"lang":     {"zh"},
		},
		Header:      h,
		InsecureTLS: true,
		SniffGzip:   true,
		MaxBytes:    64 << 10,
	}
}

// FetchWarnings returns the first warning in force at location.
func (p *WarningProvider) FetchWarnings(ctx context.Context, location string) (weather.WarningReport, error) {
	if p.key == "" {
		return weather.NewWarningReport(), fmt.Errorf("warning: %w", errMissingKey)
	}
	ep := p.endpoint(location)
	res, err := p.fetcher.Fetch(ctx, ep)
	if err != nil {
		return weather.NewWarningReport(), err
	}

	doc, err := payload.Warnings(res.Body)
	if err != nil {
		countFailure(p.logger, ep.Name, err)
		return weather.NewWarningReport(), err
	}
	r, err := weather.ParseWarning(doc)
	if err != nil {
		countFailure(p.logger, ep.Name, err)
		return weather.NewWarningReport(), err
	}
	p.logger.Debug("warning polled", "location", location, "present", r.Present, "status", r.Warning.Status)
	return r, nil
}
