// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"net/url"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// unpaywallAPIBase is the Unpaywall v2 endpoint. Declared as a var so tests
// can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2/"

type unpaywallResponse struct {
	IsOA           bool                `json:"is_oa"`
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
}

// unpaywall looks the DOI up in Unpaywall and downloads the best
// open-access PDF.
type unpaywall struct {
	f     *fetcher
	email string
}

func newUnpaywall(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error) {
	if cfg.Email == "" {
		return nil, errors.New("unpaywall requires a contact email")
	}
	return &unpaywall{f: f, email: cfg.Email}, nil
}

func (u *unpaywall) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	apiURL := unpaywallAPIBase + doiPath(doi) + "?" + url.Values{"email": {u.email}}.Encode()
	var resp unpaywallResponse
	if out, ok := u.f.getJSON(ctx, apiURL, nil, &resp); !ok {
		return out
	}
	if !resp.IsOA {
		return acquire.NotFound("not open access")
	}

	pdfURL := resp.pdfURL()
	if pdfURL == "" {
		return acquire.NotFound("no open-access location")
	}
	return u.f.download(ctx, pdfURL)
}

// pdfURL prefers a direct PDF link from any location over the best
// location's landing page.
func (r unpaywallResponse) pdfURL() string {
	if r.BestOALocation != nil && r.BestOALocation.URLForPDF != "" {
		return r.BestOALocation.URLForPDF
	}
	for _, loc := range r.OALocations {
		if loc.URLForPDF != "" {
			return loc.URLForPDF
		}
	}
	if r.BestOALocation != nil {
		return r.BestOALocation.URL
	}
	return ""
}
