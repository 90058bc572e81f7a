package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"news_search/internal/logger"
)

const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 10 * time.Second
)

// ErrInvalidURL is returned before any network attempt.
var ErrInvalidURL = errors.New("invalid url")

// ErrReadTimeout is the cause of a NetworkError when the body stalls for
// longer than the read timeout.
var ErrReadTimeout = errors.New("read timeout")

// NetworkError wraps transport-level failures: DNS, dial, TLS, timeouts,
// resets and cancellation.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string { return "network error: " + e.Cause.Error() }

func (e *NetworkError) Unwrap() error { return e.Cause }

// BadStatusError is any response other than 200 OK.
type BadStatusError struct {
	Code int
}

func (e *BadStatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// Options sets the transport timeouts. Zero values fall back to the defaults.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Fetcher performs single GET requests and returns the body as text. It
// holds no per-request state and is safe for concurrent use.
type Fetcher struct {
	client      *http.Client
	readTimeout time.Duration
}

// New builds a Fetcher whose transport enforces the connect timeout on dial
// and TLS handshake. The read timeout bounds the wait for headers and every
// single read of the body.
func New(opts Options) *Fetcher {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ResponseHeaderTimeout: opts.ReadTimeout,
	}
	return &Fetcher{
		client:      &http.Client{Transport: transport},
		readTimeout: opts.ReadTimeout,
	}
}

// NewWithClient wraps an existing client; readTimeout bounds the body read.
func NewWithClient(client *http.Client, readTimeout time.Duration) *Fetcher {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &Fetcher{client: client, readTimeout: readTimeout}
}

// Fetch GETs rawURL and returns the body of a 200 response.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")

	log := logger.For("fetcher").WithField("host", u.Host)
	log.Debug("Fetching search results")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("Error response code")
		return "", &BadStatusError{Code: resp.StatusCode}
	}

	body := newIdleReader(resp.Body, f.readTimeout, func() { cancel(ErrReadTimeout) })
	defer body.stop()

	data, err := io.ReadAll(body)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrReadTimeout) {
			log.WithField("timeout", f.readTimeout.String()).Warn("Body read timed out")
			return "", &NetworkError{Cause: ErrReadTimeout}
		}
		return "", &NetworkError{Cause: err}
	}

	log.WithField("bytes", len(data)).Debug("Fetched search results")
	return string(data), nil
}

// idleReader fires onIdle when a single Read blocks longer than timeout.
// The timer restarts on every Read, so a slow but steady body is not cut off.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *idleReader {
	return &idleReader{r: r, timeout: timeout, timer: time.AfterFunc(timeout, onIdle)}
}

func (ir *idleReader) Read(p []byte) (int, error) {
	ir.timer.Reset(ir.timeout)
	return ir.r.Read(p)
}

func (ir *idleReader) stop() {
	ir.timer.Stop()
}
