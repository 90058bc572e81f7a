// Package connectivity answers "is the network there?" before a load starts.
package connectivity

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Checker reports whether a load can reach the network.
type Checker interface {
	Online(ctx context.Context) bool
}

// DialChecker opens and immediately closes a TCP connection to Addr.
type DialChecker struct {
	Addr    string
	Timeout time.Duration
}

// ProxyFunc picks the proxy for a request, as http.Transport.Proxy does.
type ProxyFunc func(*http.Request) (*url.URL, error)

// ForEndpoint derives host:port from an http(s) endpoint URL. When the
// environment routes the endpoint through a proxy, the proxy is dialed
// instead, matching what the fetcher's transport does.
func ForEndpoint(endpoint string, timeout time.Duration) (*DialChecker, error) {
	return ForEndpointVia(endpoint, timeout, http.ProxyFromEnvironment)
}

// ForEndpointVia is ForEndpoint with an explicit proxy selector; nil means
// a direct connection.
func ForEndpointVia(endpoint string, timeout time.Duration, proxy ProxyFunc) (*DialChecker, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	target := u
	if proxy != nil {
		p, err := proxy(&http.Request{Method: http.MethodGet, URL: u, Header: http.Header{}})
		if err != nil {
			return nil, fmt.Errorf("resolve proxy: %w", err)
		}
		if p != nil {
			target = p
		}
	}
	return &DialChecker{Addr: hostPort(target), Timeout: timeout}, nil
}

func hostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Online is false when the dial fails or ctx is done first.
func (c *DialChecker) Online(ctx context.Context) bool {
	d := net.Dialer{Timeout: c.Timeout}
	conn, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Static always reports the same answer.
type Static bool

func (s Static) Online(context.Context) bool { return bool(s) }
