// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Paper holds metadata and file paths for an acquired paper. The reporter
// writes one Paper per successful record as YAML next to the PDF.
type Paper struct {
	// ID is the record identifier (normally a DOI).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Year is the publication year.
	Year string `json:"year,omitempty" yaml:"year,omitempty"`

	// Journal is the container title.
	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`

	// Source names the source adapter that supplied the PDF (e.g. "unpaywall").
	Source string `json:"source" yaml:"source"`

	// SourceURL is the URL from which the PDF was downloaded.
	SourceURL string `json:"source_url,omitempty" yaml:"source_url,omitempty"`

	// PDFPath is the local filesystem path to the saved PDF.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Size is the PDF size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// SHA256 is the hex digest of the PDF contents.
	SHA256 string `json:"sha256" yaml:"sha256"`

	// AcquiredAt is when the PDF was written.
	AcquiredAt time.Time `json:"acquired_at" yaml:"acquired_at"`
}
