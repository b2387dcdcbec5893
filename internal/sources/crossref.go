// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// crossrefAPIBase is the CrossRef works endpoint. Declared as a var so
// tests can substitute an httptest server.
var crossrefAPIBase = "https://api.crossref.org/works/"

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Link []crossrefLink `json:"link"`
}

type crossrefLink struct {
	URL                 string `json:"URL"`
	ContentType         string `json:"content-type"`
	IntendedApplication string `json:"intended-application"`
}

type crossref struct {
	f     *fetcher
	email string
}

func newCrossref(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error) {
	return &crossref{f: f, email: cfg.Email}, nil
}

// Attempt downloads the full-text PDF link a publisher registered with
// CrossRef.
func (c *crossref) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	apiURL := crossrefAPIBase + doiPath(doi)
	if c.email != "" {
		apiURL += "?" + url.Values{"mailto": {c.email}}.Encode()
	}

	var cr crossrefResponse
	if out, ok := c.f.getJSON(ctx, apiURL, nil, &cr); !ok {
		return out
	}

	pdfURL := cr.Message.pdfURL()
	if pdfURL == "" {
		return acquire.NotFound("no PDF link in metadata")
	}
	return c.f.download(ctx, pdfURL)
}

// pdfURL picks a link declared as PDF, then an unspecified link that
// looks like one.
func (w crossrefWork) pdfURL() string {
	for _, l := range w.Link {
		if mediaType(l.ContentType) == "application/pdf" {
			return l.URL
		}
	}
	for _, l := range w.Link {
		if l.ContentType == "unspecified" && strings.HasSuffix(strings.ToLower(l.URL), ".pdf") {
			return l.URL
		}
	}
	return ""
}
