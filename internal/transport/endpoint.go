package transport

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Endpoint describes one upstream resource. Providers build a fresh Endpoint
// whenever the location it depends on changes and never mutate it afterwards.
type Endpoint struct {
	// Name keys the circuit breaker, the in-flight guard and metrics.
	Name string
	// Base is scheme and host, e.g. "http://d1.weather.com.cn".
	Base  string
	Path  string
	Query url.Values

	Header http.Header

	// InsecureTLS selects the client with server certificate checks disabled.
	InsecureTLS bool
	// SniffGzip decodes bodies that start with the gzip magic even when the
	// server sends no Content-Encoding header.
	SniffGzip bool
	// CacheBust appends "_=<unix seconds>" to every request.
	CacheBust bool
	// MaxBytes bounds the (decoded) body. Zero uses the fetcher default.
	MaxBytes int64
}

// URL renders the request URL at the given instant.
func (e Endpoint) URL(now time.Time) string {
	q := url.Values{}
	for k, vs := range e.Query {
		q[k] = append([]string(nil), vs...)
	}
	if e.CacheBust {
		q.Set("_", strconv.FormatInt(now.Unix(), 10))
	}
	u := e.Base + e.Path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (e Endpoint) newRequest(ctx context.Context, now time.Time) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL(now), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range e.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
