// Package proxy performs the outbound half of the forwarding pipe: it
// replays an inbound client request against the real origin, optionally
// tunneling HTTPS through a SOCKS5 proxy.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// ErrUnsupportedScheme is returned for targets that are neither http nor https
var ErrUnsupportedScheme = errors.New("unsupported target scheme")

// FetchTimeout bounds every outbound request; origin servers are untrusted
// and may hang indefinitely.
const FetchTimeout = 30 * time.Second

// Gateway issues outbound fetches for the capture pipe
type Gateway struct {
	direct *http.Client
	socks  *http.Client
}

// NewGateway creates a gateway. A non-empty proxyAddr routes HTTPS egress
// through a SOCKS5 proxy at that address, with TLS negotiated over the
// tunnel; plain HTTP always goes direct.
func NewGateway(proxyAddr string) (*Gateway, error) {
	g := &Gateway{
		direct: &http.Client{Timeout: FetchTimeout},
	}

	if proxyAddr != "" {
		dialer, err := xproxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: FetchTimeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS dialer: %w", err)
		}
		contextDialer, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS dialer does not support context dialing")
		}
		g.socks = &http.Client{
			Timeout: FetchTimeout,
			Transport: &http.Transport{
				DialContext: contextDialer.DialContext,
			},
		}
	}

	return g, nil
}

// Forward replays the original client request against targetURL and returns
// the origin response unread. The original query string is carried over, the
// Host header is rewritten to the target authority, and Accept-Encoding is
// forced to identity (response decompression is not implemented).
func (g *Gateway) Forward(targetURL string, original *http.Request) (*http.Response, error) {
	if original.URL.RawQuery != "" {
		targetURL = targetURL + "?" + original.URL.RawQuery
	}

	target, client, err := g.resolve(targetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(original.Context(), original.Method, target.String(), original.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to build forwarded request: %w", err)
	}

	req.Header = original.Header.Clone()
	// todo: support gzip decompression later
	req.Header.Set("Accept-Encoding", "identity")
	req.Host = target.Host

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target.String(), err)
	}
	return resp, nil
}

// Get fetches targetURL without any forwarded client request. Used by the
// stale-cache recovery path, where no conditional headers must be sent.
func (g *Gateway) Get(ctx context.Context, targetURL string) (*http.Response, error) {
	target, client, err := g.resolve(targetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target.String(), err)
	}
	return resp, nil
}

// resolve parses the target and picks the client matching its scheme
func (g *Gateway) resolve(targetURL string) (*url.URL, *http.Client, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse target URL: %w", err)
	}

	switch strings.ToLower(target.Scheme) {
	case "http":
		return target, g.direct, nil
	case "https":
		if g.socks != nil {
			return target, g.socks, nil
		}
		return target, g.direct, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, target.Scheme)
	}
}
