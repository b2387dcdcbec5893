// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// openAlexAPIBase is the OpenAlex works endpoint. Declared as a var so tests
// can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works/"

// openAlexWork captures the fields we need from an OpenAlex work record.
type openAlexWork struct {
	BestOALocation *openAlexLocation  `json:"best_oa_location"`
	Locations      []openAlexLocation `json:"locations"`
}

type openAlexLocation struct {
	PDFURL     string `json:"pdf_url"`
	LandingURL string `json:"landing_page_url"`
	IsOA       bool   `json:"is_oa"`
}

type openAlex struct {
	f     *fetcher
	email string
}

func newOpenAlex(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error) {
	return &openAlex{f: f, email: cfg.Email}, nil
}

// Attempt resolves the DOI to an OpenAlex work and downloads its
// open-access PDF. Supplying an email joins the polite pool.
func (o *openAlex) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	apiURL := openAlexAPIBase + "https://doi.org/" + doiPath(doi)
	if o.email != "" {
		apiURL += "?" + url.Values{"mailto": {o.email}}.Encode()
	}

	var work openAlexWork
	if out, ok := o.f.getJSON(ctx, apiURL, nil, &work); !ok {
		return out
	}

	pdfURL := work.pdfURL()
	if pdfURL == "" {
		return acquire.NotFound("no open-access PDF")
	}
	return o.f.download(ctx, pdfURL)
}

func (w openAlexWork) pdfURL() string {
	if w.BestOALocation != nil && w.BestOALocation.PDFURL != "" {
		return w.BestOALocation.PDFURL
	}
	for _, loc := range w.Locations {
		if loc.IsOA && loc.PDFURL != "" {
			return loc.PDFURL
		}
	}
	return ""
}
