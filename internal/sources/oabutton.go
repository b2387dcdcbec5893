// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// oaButtonAPIBase is the Open Access Button v2 endpoint. Declared as a var
// so tests can substitute an httptest server.
var oaButtonAPIBase = "https://api.openaccessbutton.org/v2/"

type oaButtonResponse struct {
	Status   string `json:"status"`
	FileType string `json:"file_type"`
	FileURL  string `json:"file_url"`

	// URL is set by the newer "find" style responses.
	URL string `json:"url"`
}

type oaButton struct {
	f     *fetcher
	email string
}

func newOAButton(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error) {
	return &oaButton{f: f, email: cfg.Email}, nil
}

// Attempt asks Open Access Button for a legal copy of the DOI.
func (o *oaButton) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	apiURL := oaButtonAPIBase + doiPath(doi)
	if o.email != "" {
		apiURL += "?" + url.Values{"email": {o.email}}.Encode()
	}

	var resp oaButtonResponse
	if out, ok := o.f.getJSON(ctx, apiURL, nil, &resp); !ok {
		return out
	}

	switch {
	case resp.Status == "success" && resp.FileType == "pdf" && resp.FileURL != "":
		return o.f.download(ctx, resp.FileURL)
	case resp.URL != "":
		return o.f.download(ctx, resp.URL)
	}
	return acquire.NotFound("no open copy")
}
