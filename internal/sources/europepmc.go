// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Europe PMC endpoints. Declared as vars so tests can substitute an
// httptest server.
var (
	europePMCAPIBase    = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"
	europePMCRenderBase = "https://europepmc.org/articles/"
)

type europePMCResponse struct {
	ResultList struct {
		Result []europePMCResult `json:"result"`
	} `json:"resultList"`
}

type europePMCResult struct {
	PMCID           string `json:"pmcid"`
	IsOpenAccess    string `json:"isOpenAccess"`
	FullTextURLList struct {
		FullTextURL []struct {
			DocumentStyle    string `json:"documentStyle"`
			AvailabilityCode string `json:"availabilityCode"`
			URL              string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

type europePMC struct {
	f *fetcher
}

func newEuropePMC(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &europePMC{f: f}, nil
}

// Attempt searches Europe PMC by DOI and downloads a free full-text PDF.
func (e *europePMC) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	params := url.Values{
		"query":      {`DOI:"` + doi + `"`},
		"resultType": {"core"},
		"format":     {"json"},
		"pageSize":   {"5"},
	}
	var resp europePMCResponse
	if out, ok := e.f.getJSON(ctx, europePMCAPIBase+"?"+params.Encode(), nil, &resp); !ok {
		return out
	}
	if len(resp.ResultList.Result) == 0 {
		return acquire.NotFound("no Europe PMC record")
	}

	pdfURL := resp.pdfURL()
	if pdfURL == "" {
		return acquire.NotFound("no free full-text PDF")
	}
	return e.f.download(ctx, pdfURL)
}

// pdfURL prefers a listed PDF full text, then the rendered PMC article.
func (r europePMCResponse) pdfURL() string {
	for _, res := range r.ResultList.Result {
		for _, ft := range res.FullTextURLList.FullTextURL {
			if strings.EqualFold(ft.DocumentStyle, "pdf") && ft.URL != "" {
				return ft.URL
			}
		}
	}
	for _, res := range r.ResultList.Result {
		if res.PMCID != "" && res.IsOpenAccess == "Y" {
			return europePMCRenderBase + res.PMCID + "?pdf=render"
		}
	}
	return ""
}
