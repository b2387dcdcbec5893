// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// DefaultUserAgent is sent when the configuration leaves UserAgent empty.
const DefaultUserAgent = "paper-fetch/0.1 (+https://github.com/pdiddy/paper-fetch)"

const maxRedirects = 10

// NewClient builds an HTTP client from cfg. When proxy is true and
// cfg.Proxy is set, requests go through that proxy; otherwise the client
// connects directly and ignores proxy environment variables. Redirects are
// followed up to a fixed limit and cookies are kept per client, which some
// landing pages require before serving the PDF.
func NewClient(cfg types.HTTPConfig, proxy bool) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if proxy && cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy URL %q: %w", cfg.Proxy, err)
		}
		switch u.Scheme {
		case "http", "https", "socks5", "socks5h":
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}

// NewLimiter returns a token-bucket limiter allowing rps requests per
// second with a burst of one, or nil when rps is zero.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Wait blocks until l permits a request. A nil limiter never blocks.
func Wait(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return ctx.Err()
	}
	return l.Wait(ctx)
}

// Elapsed reports the time since start rounded to milliseconds, for logs
// and ledger rows.
func Elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
