// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/ident"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper lookup endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/"

const semanticFields = "openAccessPdf,externalIds"

type semanticPaper struct {
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
	ExternalIDs map[string]any `json:"externalIds"`
}

type semanticScholar struct {
	f      *fetcher
	apiKey string
}

func newSemanticScholar(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error) {
	return &semanticScholar{f: f, apiKey: cfg.APIKey}, nil
}

// Attempt looks the paper up by DOI or arXiv ID and downloads the
// open-access PDF, falling back to arXiv when the paper has an arXiv ID.
func (s *semanticScholar) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	var paperID string
	switch typ, norm := ident.Classify(rec.ID); typ {
	case ident.TypeDOI:
		paperID = "DOI:" + norm
	case ident.TypeArxiv:
		paperID = "arXiv:" + norm
	default:
		return acquire.NotFound("identifier %q is not a DOI or arXiv ID", rec.ID)
	}

	apiURL := semanticAPIBase + doiPath(paperID) + "?" + url.Values{"fields": {semanticFields}}.Encode()
	header := http.Header{}
	if s.apiKey != "" {
		header.Set("x-api-key", s.apiKey)
	}

	var paper semanticPaper
	if out, ok := s.f.getJSON(ctx, apiURL, header, &paper); !ok {
		return out
	}

	if paper.OpenAccessPDF != nil && paper.OpenAccessPDF.URL != "" {
		return s.f.download(ctx, paper.OpenAccessPDF.URL)
	}
	if id, ok := paper.ExternalIDs["ArXiv"].(string); ok && id != "" {
		return s.f.download(ctx, arxivPDFBase+id)
	}
	return acquire.NotFound("no open-access PDF")
}
