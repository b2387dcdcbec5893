// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// doiResolverBase is the DOI resolver. Declared as a var so tests can
// substitute an httptest server.
var doiResolverBase = "https://doi.org/"

// maxCandidates bounds how many extracted links are downloaded per page.
const maxCandidates = 3

const landingAccept = "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8"

// doiLanding follows the DOI to the publisher landing page and looks for a
// document there.
type doiLanding struct {
	f *fetcher
}

func newDOILanding(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &doiLanding{f: f}, nil
}

func (d *doiLanding) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	resp, err := d.f.get(ctx, doiResolverBase+doiPath(doi), http.Header{"Accept": {landingAccept}})
	if err != nil {
		return classifyError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyResponse(resp)
	}
	if resp.isDocument() {
		return documentOutcome(resp)
	}
	if resp.challenged() {
		return withURL(acquire.Blocked("challenge page at %s", resp.URL), resp.URL)
	}

	links := landingLinks(resp.URL, resp.Header, resp.Body)
	if len(links) == 0 {
		return withURL(acquire.NotFound("no PDF link on landing page"), resp.URL)
	}
	return d.f.firstDocument(ctx, links)
}

// firstDocument downloads up to maxCandidates links and returns the first
// that passes validation. When none does, the result is blocked if any
// candidate was, transient if any was, and otherwise the last failure.
func (f *fetcher) firstDocument(ctx context.Context, links []string) acquire.Outcome {
	if len(links) > maxCandidates {
		links = links[:maxCandidates]
	}

	var last acquire.Outcome
	blocked, transient := false, false
	for _, link := range links {
		if ctx.Err() != nil {
			return acquire.Transient("%v", ctx.Err())
		}
		out := f.download(ctx, link)
		if out.OK() {
			if err := f.validator.Check(out.Content, out.ContentType); err != nil {
				f.logger.Debug("candidate rejected", "url", link, "err", err)
				out = withURL(acquire.Permanent("invalid document at %s: %v", link, err), link)
			} else {
				return out
			}
		}
		blocked = blocked || out.Blocked
		transient = transient || out.Retryable()
		last = out
	}

	switch {
	case blocked:
		return acquire.Blocked("%d candidate links, challenge served (last: %s)", len(links), last.Reason)
	case transient:
		return acquire.Transient("%d candidate links, transient failure (last: %s)", len(links), last.Reason)
	}
	return last
}
