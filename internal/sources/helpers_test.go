// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

var fakePDFContent = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n" + strings.Repeat("% padding\n", 12) + "trailer\n%%EOF\n"

const challengeHTML = `<!DOCTYPE html><html><head><title>Just a moment...</title></head>
<body><div id="cf-browser-verification">Checking your browser before accessing.</div></body></html>`

func servePDF(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/pdf")
	fmt.Fprint(w, fakePDFContent)
}

func serveJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, body)
}

func serveHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, body)
}

func testEnv() Env {
	return Env{Validator: acquire.NewValidator(0)}
}

func testFetcher(t *testing.T, name string) *fetcher {
	t.Helper()
	f, err := newFetcher(testEnv(), types.SourceConfig{Name: name})
	require.NoError(t, err)
	return f
}

// newAdapter builds a named adapter through the registry, as the CLI does.
func newAdapter(t *testing.T, cfg types.SourceConfig) acquire.Adapter {
	t.Helper()
	cfg.Enabled = true
	descs, err := Registry(testEnv()).Build([]types.SourceConfig{cfg})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	return descs[0].Adapter
}

// overrideBaseURLs points every endpoint at the test server under a
// per-service path prefix and restores them when the test ends.
func overrideBaseURLs(t *testing.T, tsURL string) {
	t.Helper()
	vars := map[*string]string{
		&unpaywallAPIBase:    tsURL + "/unpaywall/",
		&openAlexAPIBase:     tsURL + "/openalex/",
		&semanticAPIBase:     tsURL + "/s2/",
		&arxivPDFBase:        tsURL + "/arxiv-pdf/",
		&arxivAPIBase:        tsURL + "/arxiv-api/query",
		&crossrefAPIBase:     tsURL + "/works/",
		&europePMCAPIBase:    tsURL + "/epmc/search",
		&europePMCRenderBase: tsURL + "/epmc-render/",
		&coreAPIBase:         tsURL + "/core-api/search/works",
		&coreSearchBase:      tsURL + "/core-search",
		&oaButtonAPIBase:     tsURL + "/oab/",
		&doiResolverBase:     tsURL + "/doi/",

		&pubmedSearchBase:       tsURL + "/pubmed/",
		&paperitySearchBase:     tsURL + "/paperity/search/",
		&scholarSearchBase:      tsURL + "/scholar",
		&researchGateSearchBase: tsURL + "/rg/search",
	}
	for p, v := range vars {
		orig := *p
		*p = v
		t.Cleanup(func() { *p = orig })
	}
}

func attempt(t *testing.T, a acquire.Adapter, id string) acquire.Outcome {
	t.Helper()
	return a.Attempt(context.Background(), types.Record{ID: id})
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}
