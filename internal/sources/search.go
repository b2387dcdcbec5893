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

// Search page endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	pubmedSearchBase       = "https://pubmed.ncbi.nlm.nih.gov/"
	paperitySearchBase     = "https://paperity.org/search/"
	scholarSearchBase      = "https://scholar.google.com/scholar"
	researchGateSearchBase = "https://www.researchgate.net/search"
)

// searchPage searches a site for the DOI and downloads the document links
// its results page carries.
type searchPage struct {
	f     *fetcher
	site  string
	base  *string
	param string

	// limit bounds how many matching links are tried.
	limit int

	// match selects document links. href is the raw attribute and abs
	// the resolved URL.
	match func(href string, abs *url.URL) bool
}

func newPubMed(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &searchPage{f: f, site: "PubMed", base: &pubmedSearchBase, param: "term", limit: 2,
		match: func(_ string, abs *url.URL) bool {
			return strings.Contains(strings.ToLower(abs.Path), "/pdf/")
		},
	}, nil
}

func newPaperity(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &searchPage{f: f, site: "Paperity", base: &paperitySearchBase, param: "q", limit: 3,
		match: func(href string, _ *url.URL) bool {
			lower := strings.ToLower(href)
			return strings.Contains(lower, ".pdf") && strings.Contains(lower, "download")
		},
	}, nil
}

func newScholar(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &searchPage{f: f, site: "Google Scholar", base: &scholarSearchBase, param: "q", limit: 2,
		match: func(href string, _ *url.URL) bool {
			lower := strings.ToLower(href)
			return strings.HasPrefix(lower, "http") && strings.Contains(lower, ".pdf")
		},
	}, nil
}

func newResearchGate(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &searchPage{f: f, site: "ResearchGate", base: &researchGateSearchBase, param: "q", limit: 2,
		match: func(_ string, abs *url.URL) bool {
			return strings.Contains(strings.ToLower(abs.Path), "/fulltext/pdf/")
		},
	}, nil
}

func (s *searchPage) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	resp, err := s.f.get(ctx, *s.base+"?"+url.Values{s.param: {doi}}.Encode(), http.Header{"Accept": {landingAccept}})
	if err != nil {
		return classifyError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyResponse(resp)
	}

	links, err := s.links(resp)
	if err != nil {
		return acquire.Permanent("parsing %s search page: %v", s.site, err)
	}
	if len(links) == 0 {
		if resp.challenged() {
			return withURL(acquire.Blocked("challenge page on %s search", s.site), resp.URL)
		}
		return withURL(acquire.NotFound("no PDF link on %s search page", s.site), resp.URL)
	}
	return s.f.firstDocument(ctx, links)
}

func (s *searchPage) links(resp *response) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}

	c := newCandidates(resp.URL)
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		abs, ok := resolveRef(resp.URL, href)
		if !ok {
			return true
		}
		u, err := url.Parse(abs)
		if err != nil || !s.match(href, u) {
			return true
		}
		c.add(abs)
		return len(c.urls) < s.limit
	})
	return c.urls, nil
}
