// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// CORE endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	coreAPIBase      = "https://api.core.ac.uk/v3/search/works"
	coreSearchBase   = "https://core.ac.uk/search"
	coreDownloadHost = "core.ac.uk"
)

type coreSearchResponse struct {
	Results []struct {
		DownloadURL string `json:"downloadUrl"`
	} `json:"results"`
}

// core queries the CORE v3 API when an API key is configured, and scans
// the public search page otherwise.
type core struct {
	f      *fetcher
	apiKey string
}

func newCore(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error) {
	return &core{f: f, apiKey: cfg.APIKey}, nil
}

func (c *core) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	var (
		pdfURL string
		out    acquire.Outcome
		ok     bool
	)
	if c.apiKey != "" {
		pdfURL, out, ok = c.viaAPI(ctx, doi)
	} else {
		pdfURL, out, ok = c.viaSearchPage(ctx, doi)
	}
	if !ok {
		return out
	}
	return c.f.download(ctx, pdfURL)
}

func (c *core) viaAPI(ctx context.Context, doi string) (string, acquire.Outcome, bool) {
	params := url.Values{"q": {`doi:"` + doi + `"`}, "limit": {"5"}}
	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}

	var resp coreSearchResponse
	if out, ok := c.f.getJSON(ctx, coreAPIBase+"?"+params.Encode(), header, &resp); !ok {
		return "", out, false
	}
	for _, r := range resp.Results {
		if r.DownloadURL != "" {
			return r.DownloadURL, acquire.Outcome{}, true
		}
	}
	return "", acquire.NotFound("no CORE download"), false
}

func (c *core) viaSearchPage(ctx context.Context, doi string) (string, acquire.Outcome, bool) {
	resp, err := c.f.get(ctx, coreSearchBase+"?"+url.Values{"q": {doi}}.Encode(), nil)
	if err != nil {
		return "", classifyError(err), false
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyResponse(resp), false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", acquire.Permanent("parsing CORE search page: %v", err), false
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		abs, ok := resolveRef(resp.URL, href)
		if !ok {
			return true
		}
		u, err := url.Parse(abs)
		if err != nil || u.Host != coreDownloadHost || !strings.HasPrefix(u.Path, "/download/") {
			return true
		}
		found = abs
		return false
	})
	if found == "" {
		if resp.challenged() {
			return "", acquire.Blocked("challenge page on CORE search"), false
		}
		return "", acquire.NotFound("no CORE download link"), false
	}
	return found, acquire.Outcome{}, true
}
