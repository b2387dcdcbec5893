// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// Record is one bibliographic entry to acquire a PDF for. The ID is the
// lookup key (normally a DOI); the remaining fields are fallback metadata
// used for title searches and output file naming. Records are read-only
// once loaded.
type Record struct {
	// ID is the DOI or equivalent identifier (e.g. "10.1038/nature12373").
	ID string `json:"id" yaml:"id"`

	// Title is the work title, if known.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Authors lists the authors in source order ("Family, Given" or free form).
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year as written in the source export.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// Journal is the container title (journal or proceedings).
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// FirstAuthor returns the family name of the first author, or "" when the
// record has no authors.
func (r Record) FirstAuthor() string {
	if len(r.Authors) == 0 {
		return ""
	}
	name := strings.TrimSpace(r.Authors[0])
	if family, _, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(family)
	}
	return name
}
