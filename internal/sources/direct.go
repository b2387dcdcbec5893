// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/ident"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// direct fetches records identified by a URL. A document response wins
// outright; a landing page is scanned for document links the way the
// doi source scans publisher pages.
type direct struct {
	f *fetcher
}

func newDirect(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &direct{f: f}, nil
}

func (d *direct) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	typ, link := ident.Classify(rec.ID)
	if typ != ident.TypeURL {
		return acquire.NotFound("identifier %q is not a URL", rec.ID)
	}

	resp, err := d.f.get(ctx, link, http.Header{"Accept": {landingAccept}})
	if err != nil {
		return classifyError(err)
	}
	if resp.StatusCode != http.StatusOK || resp.isDocument() {
		return documentOutcome(resp)
	}
	if resp.challenged() {
		return withURL(acquire.Blocked("challenge page at %s", resp.URL), resp.URL)
	}
	if !resp.isHTML() {
		return documentOutcome(resp)
	}

	links := landingLinks(resp.URL, resp.Header, resp.Body)
	if len(links) == 0 {
		return withURL(acquire.NotFound("no PDF link at %s", resp.URL), resp.URL)
	}
	return d.f.firstDocument(ctx, links)
}
