// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-fetch/internal/ident"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

const (
	maxJournalLen  = 60
	maxFilenameLen = 180
)

var (
	unsafeChars = regexp.MustCompile(`[/\\:*?"<>|\x00-\x1f]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// sanitize makes s safe as a filename component.
func sanitize(s string) string {
	s = whitespace.ReplaceAllString(s, " ")
	s = unsafeChars.ReplaceAllString(s, "")
	return strings.Trim(s, " .-")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

// Stem returns the filename stem for a record acquired from source:
// "<year>-<journal>-<first author>-<source>". Missing metadata parts are
// left out; a record with no metadata at all is named after its
// identifier.
func Stem(rec types.Record, source string) string {
	var parts []string
	for _, p := range []string{
		rec.Year,
		truncate(sanitize(rec.Journal), maxJournalLen),
		sanitize(rec.FirstAuthor()),
	} {
		if p = sanitize(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, ident.Slug(rec.ID))
	}
	if s := sanitize(source); s != "" {
		parts = append(parts, s)
	}
	return truncate(strings.Join(parts, "-"), maxFilenameLen)
}

// Hints returns manual-retrieval links for a record that could not be
// acquired.
func Hints(rec types.Record) []string {
	typ, norm := ident.Classify(rec.ID)
	var hints []string
	query := rec.ID
	switch typ {
	case ident.TypeDOI:
		hints = append(hints, "https://doi.org/"+norm)
		query = norm
	case ident.TypeArxiv:
		hints = append(hints, "https://arxiv.org/abs/"+norm)
		query = norm
	case ident.TypeURL:
		hints = append(hints, norm)
	}
	if rec.Title != "" && typ != ident.TypeDOI {
		query = rec.Title
	}
	hints = append(hints, "https://scholar.google.com/scholar?"+url.Values{"q": {query}}.Encode())
	return hints
}
