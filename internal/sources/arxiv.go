// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/ident"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Base URLs for arXiv. Declared as vars so tests can substitute an
// httptest server.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	arxivAPIBase = "https://export.arxiv.org/api/query"
)

const arxivTitleCandidates = 5

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID    string      `xml:"id"`
	Title string      `xml:"title"`
	Links []arxivLink `xml:"link"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type arxiv struct {
	f *fetcher
}

func newArxiv(f *fetcher, _ types.SourceConfig) (acquire.Adapter, error) {
	return &arxiv{f: f}, nil
}

// Attempt downloads the arXiv PDF when the identifier carries an arXiv ID,
// otherwise searches arXiv for an exact title match.
func (a *arxiv) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	if id, ok := ident.ArxivID(rec.ID); ok {
		return a.f.download(ctx, arxivPDFBase+id)
	}
	if strings.TrimSpace(rec.Title) == "" {
		return acquire.NotFound("no arXiv ID and no title to search")
	}

	pdfURL, out, ok := a.searchTitle(ctx, rec.Title)
	if !ok {
		return out
	}
	return a.f.download(ctx, pdfURL)
}

func (a *arxiv) searchTitle(ctx context.Context, title string) (string, acquire.Outcome, bool) {
	params := url.Values{
		"search_query": {`ti:"` + strings.Join(strings.Fields(title), " ") + `"`},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(arxivTitleCandidates)},
	}
	resp, err := a.f.get(ctx, arxivAPIBase+"?"+params.Encode(), http.Header{"Accept": {"application/atom+xml"}})
	if err != nil {
		return "", classifyError(err), false
	}
	if resp.StatusCode != http.StatusOK {
		return "", classifyResponse(resp), false
	}

	var feed arxivFeed
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return "", acquire.Permanent("parsing arXiv response: %v", err), false
	}

	want := titleKey(title)
	for _, e := range feed.Entries {
		if titleKey(e.Title) != want {
			continue
		}
		if u := e.pdfURL(); u != "" {
			return u, acquire.Outcome{}, true
		}
	}
	return "", acquire.NotFound("no arXiv entry titled %q", title), false
}

// pdfURL returns the entry's PDF link, or one derived from its abs URL.
func (e arxivEntry) pdfURL() string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	const prefix = "/abs/"
	if i := strings.Index(e.ID, prefix); i >= 0 {
		return arxivPDFBase + e.ID[i+len(prefix):]
	}
	return ""
}

// titleKey folds a title to lower-case alphanumerics separated by single
// spaces, so punctuation and line wrapping do not affect matching.
func titleKey(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
