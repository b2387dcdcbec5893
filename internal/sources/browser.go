// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// browserSettle is how long a rendered page is given to run its scripts
// before the DOM is captured.
var browserSettle = 3 * time.Second

// renderOptions configures one browser session.
type renderOptions struct {
	UserAgent string

	// Proxy, when set, is passed to Chrome as its proxy server.
	Proxy string
}

// renderFunc loads url in a browser and returns the rendered HTML and the
// final location.
type renderFunc func(ctx context.Context, url string, opts renderOptions) (html, location string, err error)

// browser renders the DOI landing page in headless Chrome, for publishers
// that build their download links in JavaScript, then downloads the
// document link found in the rendered page.
type browser struct {
	f      *fetcher
	render renderFunc
}

func newBrowser(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &browser{f: f, render: renderChrome}, nil
}

func (b *browser) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	opts := renderOptions{UserAgent: b.f.userAgent, Proxy: b.f.proxy}
	html, location, err := b.render(ctx, doiResolverBase+doiPath(doi), opts)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return acquire.Transient("browser rendering: %v", err)
		case errors.Is(err, exec.ErrNotFound):
			return acquire.Permanent("no Chrome or Chromium installation found")
		}
		return acquire.Permanent("browser rendering: %v", err)
	}

	links := landingLinks(location, nil, []byte(html))
	if len(links) == 0 {
		if hasChallenge([]byte(html)) {
			return withURL(acquire.Blocked("challenge page at %s", location), location)
		}
		return withURL(acquire.NotFound("no PDF link on rendered page"), location)
	}
	return b.f.firstDocument(ctx, links)
}

// renderChrome drives a headless Chrome through chromedp. Requires Chrome
// or Chromium to be installed.
func renderChrome(ctx context.Context, url string, opts renderOptions) (string, string, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	var html, location string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(browserSettle),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", "", fmt.Errorf("rendering %s: %w", url, err)
	}
	return html, location, nil
}

func allocatorOptions(opts renderOptions) []chromedp.ExecAllocatorOption {
	out := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.Proxy != "" {
		out = append(out, chromedp.ProxyServer(opts.Proxy))
	}
	return out
}
