package providers

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/i474232898/desk-weather/internal/payload"
	"github.com/i474232898/desk-weather/internal/transport"
	"github.com/i474232898/desk-weather/internal/weather"
)

// DefaultAlmanacBase is the almanac API host.
const DefaultAlmanacBase = "https://www.mxnzp.com"

// AlmanacProvider implements weather.AlmanacSource.
type AlmanacProvider struct {
	fetcher   Fetcher
	base      string
	appID     string
	appSecret string
	logger    *slog.Logger
}

// NewAlmanacProvider creates the provider. An empty base uses
// DefaultAlmanacBase.
func NewAlmanacProvider(f Fetcher, base, appID, appSecret string, logger *slog.Logger) *AlmanacProvider {
	if base == "" {
		base = DefaultAlmanacBase
	}
	return &AlmanacProvider{fetcher: f, base: base, appID: appID, appSecret: appSecret, logger: orDefault(logger)}
}

func (p *AlmanacProvider) endpoint(day time.Time) transport.Endpoint {
	return transport.Endpoint{
		Name: AlmanacEndpoint,
		Base: p.base,
		Path: "/api/holiday/single/" + day.Format("20060102"),
		Query: url.Values{
			"ignoreHoliday": {"false"},
			"app_id":        {p.appID},
			"app_secret":    {p.appSecret},
		},
		Header:   browserHeader(mobileSafariUA, "https://www.mxnzp.com/"),
		MaxBytes: 64 << 10,
	}
}

// FetchAlmanac fetches the almanac of day.
func (p *AlmanacProvider) FetchAlmanac(ctx context.Context, day time.Time) (weather.AlmanacDay, error) {
	ep := p.endpoint(day)
	res, err := p.fetcher.Fetch(ctx, ep)
	if err != nil {
		return weather.NewAlmanacDay(), err
	}
	data, err := payload.Almanac(res.Body)
	if err != nil {
		countFailure(p.logger, ep.Name, err)
		return weather.NewAlmanacDay(), err
	}
	a, err := weather.ParseAlmanac(data, day)
	if err != nil {
		countFailure(p.logger, ep.Name, err)
		return weather.NewAlmanacDay(), err
	}
	return a, nil
}
