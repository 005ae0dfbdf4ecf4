package transport

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

// scriptedDoer replays one step per call; the last step repeats.
type scriptedDoer struct {
	mu     sync.Mutex
	steps  []func(*http.Request) (*http.Response, error)
	calls  int
	bodies []*trackingBody
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	if i >= len(d.steps) {
		i = len(d.steps) - 1
	}
	d.calls++
	resp, err := d.steps[i](req)
	if resp != nil {
		if tb, ok := resp.Body.(*trackingBody); ok {
			d.bodies = append(d.bodies, tb)
		}
	}
	return resp, err
}

func failWith(msg string) func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) { return nil, errors.New(msg) }
}

func respond(code int, body string, header http.Header) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		if header == nil {
			header = http.Header{}
		}
		return &http.Response{
			StatusCode: code,
			Header:     header,
			Body:       &trackingBody{Reader: strings.NewReader(body)},
			Request:    req,
		}, nil
	}
}

func testEndpoint(base string) Endpoint {
	return Endpoint{
		Name: "test",
		Base: base,
		Path: "/data",
		Header: http.Header{
			"User-Agent":      {"desk-weather-test"},
			"Accept-Encoding": {"gzip"},
		},
	}
}

func newTestFetcher(d Doer, attempts int) *Fetcher {
	return NewFetcher(Config{
		Client: d,
		Retry:  RetryConfig{Attempts: attempts, Delay: time.Millisecond},
	})
}

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetch_PlainBodyAndHeaders(t *testing.T) {
	var gotUA, gotBust string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotBust = r.URL.Query().Get("_")
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	ep := testEndpoint(srv.URL)
	ep.CacheBust = true
	f := NewFetcher(Config{
		Client: srv.Client(),
		Retry:  RetryConfig{Attempts: 2},
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	})

	res, err := f.Fetch(context.Background(), ep)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res.Body))
	assert.False(t, res.Decoded())
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "desk-weather-test", gotUA)
	assert.Equal(t, "1700000000", gotBust)
}

func TestFetch_GzipContentEncoding(t *testing.T) {
	payload := []byte(`{"code":"200","warning":[]}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(gzipBytes(t, payload))
	}))
	defer srv.Close()

	res, err := newTestFetcher(srv.Client(), 1).Fetch(context.Background(), testEndpoint(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, payload, res.Body)
	assert.Equal(t, "gzip", res.Encoding)
}

func TestFetch_GzipHeaderWithEmptyBody(t *testing.T) {
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, "", http.Header{"Content-Encoding": {"gzip"}}),
	}}

	_, err := newTestFetcher(d, 3).Fetch(context.Background(), testEndpoint("http://example.invalid"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Equal(t, 1, d.calls)
	require.Len(t, d.bodies, 1)
	assert.True(t, d.bodies[0].closed)
}

func TestFetch_SniffedGzip(t *testing.T) {
	payload := []byte(`{"warning":[]}`)
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, string(gzipBytes(t, payload)), nil),
	}}
	ep := testEndpoint("http://example.invalid")
	ep.SniffGzip = true

	res, err := newTestFetcher(d, 1).Fetch(context.Background(), ep)
	require.NoError(t, err)
	assert.Equal(t, payload, res.Body)
}

func TestFetch_TarGzReturnsFirstFile(t *testing.T) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755}))
	content := []byte(`{"data":{"suit":"a.b"}}`)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "dir/day.json", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}))
	_, err := tw.Write(content)
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, string(gzipBytes(t, tarBuf.Bytes())), http.Header{"Content-Encoding": {"gzip"}}),
	}}

	res, err := newTestFetcher(d, 1).Fetch(context.Background(), testEndpoint("http://example.invalid"))
	require.NoError(t, err)
	assert.Equal(t, content, res.Body)
}

func TestFetch_Brotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, err := bw.Write([]byte("brotli body"))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, buf.String(), http.Header{"Content-Encoding": {"br"}}),
	}}

	res, err := newTestFetcher(d, 1).Fetch(context.Background(), testEndpoint("http://example.invalid"))
	require.NoError(t, err)
	assert.Equal(t, "brotli body", string(res.Body))
}

func TestFetch_DecompressedOverflowIsDecodeError(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 4096)
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, string(gzipBytes(t, big)), http.Header{"Content-Encoding": {"gzip"}}),
	}}
	ep := testEndpoint("http://example.invalid")
	ep.MaxBytes = 1024

	_, err := newTestFetcher(d, 1).Fetch(context.Background(), ep)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFetch_GBKTranscoded(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("湛江")
	require.NoError(t, err)
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		respond(http.StatusOK, gbk, http.Header{"Content-Type": {"text/html; charset=gb2312"}}),
	}}

	res, err := newTestFetcher(d, 1).Fetch(context.Background(), testEndpoint("http://example.invalid"))
	require.NoError(t, err)
	assert.Equal(t, "湛江", string(res.Body))
}

func TestFetch_TransportFailuresExhaustRetryBudget(t *testing.T) {
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		failWith("read tcp 10.0.0.2:51000: connection reset by peer"),
	}}

	_, err := newTestFetcher(d, 3).Fetch(context.Background(), testEndpoint("http://example.invalid"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 3, d.calls)
}

func TestFetch_RecoversWithinRetryBudget(t *testing.T) {
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		failWith("i/o timeout"),
		failWith("unexpected EOF"),
		respond(http.StatusOK, "ok", nil),
	}}

	res, err := newTestFetcher(d, 3).Fetch(context.Background(), testEndpoint("http://example.invalid"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "ok", string(res.Body))
}

func TestFetch_NonTransientErrorIsNotRetried(t *testing.T) {
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		failWith(`unsupported protocol scheme "gopher"`),
	}}

	_, err := newTestFetcher(d, 3).Fetch(context.Background(), testEndpoint("http://example.invalid"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, d.calls)
}

func TestFetch_ResolverAndDialErrorsAreRetried(t *testing.T) {
	cases := map[string]error{
		"no such host": &url.Error{Op: "Get", URL: "http://d1.weather.com.cn/x", Err: &net.DNSError{
			Err: "no such host", Name: "d1.weather.com.cn", IsNotFound: true,
		}},
		"network unreachable": &url.Error{Op: "Get", URL: "http://d1.weather.com.cn/x", Err: &net.OpError{
			Op: "dial", Net: "tcp", Err: errors.New("connect: network is unreachable"),
		}},
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
				func(*http.Request) (*http.Response, error) { return nil, cause },
				respond(http.StatusOK, "ok", nil),
			}}

			res, err := newTestFetcher(d, 3).Fetch(context.Background(), testEndpoint("http://example.invalid"))
			require.NoError(t, err)
			assert.Equal(t, 2, d.calls)
			assert.Equal(t, 2, res.Attempts)
		})
	}
}

func TestFetch_HTTPErrorsReleaseBody(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusServiceUnavailable} {
		d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
			respond(code, "nope", nil),
		}}

		_, err := newTestFetcher(d, 3).Fetch(context.Background(), testEndpoint("http://example.invalid"))
		var httpErr *HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, code, httpErr.Code)
		assert.Equal(t, "http", Class(err))
		assert.Equal(t, 1, d.calls)
		require.Len(t, d.bodies, 1)
		assert.True(t, d.bodies[0].closed, "body must be closed for status %d", code)
	}
}

func TestFetch_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	d := &scriptedDoer{steps: []func(*http.Request) (*http.Response, error){
		failWith("connection refused"),
	}}
	f := NewFetcher(Config{Client: d, Retry: RetryConfig{Attempts: 2}, BreakerTrip: 2})
	ep := testEndpoint("http://example.invalid")

	_, err := f.Fetch(context.Background(), ep)
	require.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 2, d.calls)

	_, err = f.Fetch(context.Background(), ep)
	require.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, 2, d.calls, "open circuit must not reach the network")
}

func TestFetch_IdenticalResponsesAreIdentical(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`same body`))
	}))
	defer srv.Close()
	f := newTestFetcher(srv.Client(), 1)

	a, err := f.Fetch(context.Background(), testEndpoint(srv.URL))
	require.NoError(t, err)
	b, err := f.Fetch(context.Background(), testEndpoint(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, a.Body, b.Body)
}
