package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/desk-weather/internal/common"
	"github.com/i474232898/desk-weather/internal/metrics"
)

// Doer is the part of *http.Client the fetcher needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryConfig bounds the retry loop for transient transport failures.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Config bundles clients and resilience settings for a Fetcher.
type Config struct {
	Client   Doer
	Insecure Doer // used for endpoints with InsecureTLS; falls back to Client
	Retry    RetryConfig

	// MaxBytes is the default body bound for endpoints that set none.
	MaxBytes int64
	// BreakerTrip is the number of consecutive failures that opens the
	// circuit for an endpoint.
	BreakerTrip uint32

	Logger *slog.Logger
	Now    func() time.Time
}

// Result is a successful fetch. Body belongs to the caller.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	// Encoding is the content encoding that was decoded ("" for plain).
	Encoding string
	Attempts int
}

// Decoded reports whether the body went through a decompressor.
func (r *Result) Decoded() bool { return r.Encoding != "" }

// Fetcher performs bounded-retry GETs with decompression. At most one fetch
// per endpoint name is in flight; concurrent callers share its result.
type Fetcher struct {
	client   Doer
	insecure Doer
	retry    RetryConfig
	maxBytes int64
	trip     uint32
	logger   *slog.Logger
	now      func() time.Time

	inflight singleflight.Group

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

const (
	defaultMaxBytes = 256 << 10
	defaultTrip     = 10
	drainLimit      = 64 << 10
)

// NewFetcher creates a Fetcher, filling unset config fields with defaults.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Insecure == nil {
		cfg.Insecure = cfg.Client
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry.Attempts = 1
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if cfg.BreakerTrip == 0 {
		cfg.BreakerTrip = defaultTrip
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Fetcher{
		client:   cfg.Client,
		insecure: cfg.Insecure,
		retry:    cfg.Retry,
		maxBytes: cfg.MaxBytes,
		trip:     cfg.BreakerTrip,
		logger:   cfg.Logger,
		now:      cfg.Now,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// NewClients returns a verifying client and one with certificate checks
// disabled, both with the given per-request timeout.
func NewClients(timeout time.Duration) (plain, insecure *http.Client) {
	plain = &http.Client{Timeout: timeout}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // upstream certificates are not verifiable on device
	insecure = &http.Client{Timeout: timeout, Transport: tr}
	return plain, insecure
}

// Fetch GETs ep and returns its decoded body.
func (f *Fetcher) Fetch(ctx context.Context, ep Endpoint) (*Result, error) {
	v, err, shared := f.inflight.Do(ep.Name, func() (interface{}, error) {
		return f.fetch(ctx, ep)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	if shared {
		cp := *res
		cp.Body = append([]byte(nil), res.Body...)
		return &cp, nil
	}
	return res, nil
}

func (f *Fetcher) fetch(ctx context.Context, ep Endpoint) (*Result, error) {
	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(ep.Name).Observe(time.Since(start).Seconds())
	}()

	res, err := f.fetchWithRetry(ctx, ep)
	if err != nil {
		metrics.FetchFailures.WithLabelValues(ep.Name, Class(err)).Inc()
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, ep Endpoint) (*Result, error) {
	client := f.client
	if ep.InsecureTLS {
		client = f.insecure
	}
	if client == nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, errNoHTTPClient)
	}
	cb := f.breaker(ep.Name)

	var lastErr error
	for attempt := 1; attempt <= f.retry.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTransport, ep.Name, err)
		}

		req, err := ep.newRequest(ctx, f.now())
		if err != nil {
			return nil, fmt.Errorf("%w: building request for %s: %v", ErrTransport, ep.Name, err)
		}

		metrics.FetchAttempts.WithLabelValues(ep.Name).Inc()
		out, err := cb.Execute(func() (interface{}, error) {
			resp, doErr := client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			// Server errors count against the breaker; the response is
			// released here because Execute drops it.
			if resp.StatusCode >= http.StatusInternalServerError {
				release(resp)
				return nil, &HTTPError{Endpoint: ep.Name, Code: resp.StatusCode}
			}
			return resp, nil
		})
		if err == nil {
			return f.read(ep, req, out.(*http.Response), attempt)
		}

		var httpErr *HTTPError
		switch {
		case errors.As(err, &httpErr):
			return nil, httpErr
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: %s: %v", ErrTransport, ep.Name, errCircuitOpen)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %s: %v", ErrTransport, ep.Name, ctx.Err())
		case !isTransient(err):
			return nil, fmt.Errorf("%w: %s: %v", ErrTransport, ep.Name, err)
		}

		lastErr = err
		f.logger.Warn("transient transport error",
			"endpoint", ep.Name, "attempt", attempt, "max_attempts", f.retry.Attempts, "error", err)

		if attempt < f.retry.Attempts {
			if err := sleepCtx(ctx, f.retry.Delay); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrTransport, ep.Name, err)
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: giving up after %d attempts: %v", ErrTransport, ep.Name, f.retry.Attempts, lastErr)
}

// read consumes a response and always closes its body.
func (f *Fetcher) read(ep Endpoint, req *http.Request, resp *http.Response, attempts int) (*Result, error) {
	defer release(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Endpoint: ep.Name, Code: resp.StatusCode}
	}

	limit := ep.MaxBytes
	if limit <= 0 {
		limit = f.maxBytes
	}
	body, enc, err := decodeBody(resp.Header, resp.Body, limit, ep.SniffGzip)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ep.Name, err)
	}

	f.logger.Debug("fetched", "endpoint", ep.Name, "bytes", len(body), "encoding", enc, "attempts", attempts)
	return &Result{
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
		Encoding:   enc,
		Attempts:   attempts,
	}, nil
}

func (f *Fetcher) breaker(name string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	cb, ok := f.breakers[name]
	if !ok {
		trip := f.trip
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    10 * time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= trip
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				f.logger.Warn("circuit breaker state change", "endpoint", name, "from", from.String(), "to", to.String())
			},
		})
		f.breakers[name] = cb
	}
	return cb
}

// release drains a bounded amount of the body so the connection can be
// reused, then closes it.
func release(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
	_ = resp.Body.Close()
}

func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Resolver and dial failures clear up once the link is back.
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	return common.HasAnyFold(err.Error(),
		"connection reset", "connection refused", "broken pipe", "timeout", "eof", "no route to host", "no such host")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
