// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// DefaultMinSize is the smallest payload accepted as a PDF.
const DefaultMinSize = 100

// trailerWindow is how far from the end the %%EOF marker is searched for.
const trailerWindow = 1024

var (
	pdfSignature = []byte("%PDF-")
	pdfTrailer   = []byte("%%EOF")
)

// Validation failures returned by Check.
var (
	ErrEmpty        = errors.New("empty payload")
	ErrTooSmall     = errors.New("payload below minimum size")
	ErrMarkup       = errors.New("content type is markup, not a document")
	ErrNoSignature  = errors.New("missing PDF signature")
	ErrNoEOFTrailer = errors.New("missing EOF trailer (truncated download)")
)

// Validator decides whether fetched bytes are a genuine PDF and not an error
// or challenge page. The zero value applies DefaultMinSize and does not
// require the trailer; use NewValidator for the stricter default.
type Validator struct {
	// MinSize is the minimum payload length in bytes.
	MinSize int

	// RequireTrailer rejects payloads without %%EOF near the end.
	RequireTrailer bool
}

// NewValidator returns a Validator with the given minimum size (0 selects
// DefaultMinSize) that also requires the PDF trailer.
func NewValidator(minSize int) Validator {
	return Validator{MinSize: minSize, RequireTrailer: true}
}

// Check returns nil when data is an acceptable PDF, or one of the Err*
// values wrapped with detail.
func (v Validator) Check(data []byte, contentType string) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	minSize := v.MinSize
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	if len(data) < minSize {
		return fmt.Errorf("%w: %d < %d bytes", ErrTooSmall, len(data), minSize)
	}
	if isMarkup(contentType) {
		return fmt.Errorf("%w: %s", ErrMarkup, contentType)
	}
	if !bytes.HasPrefix(data, pdfSignature) {
		return fmt.Errorf("%w: starts with %q", ErrNoSignature, leading(data))
	}
	if v.RequireTrailer {
		tail := data
		if len(tail) > trailerWindow {
			tail = tail[len(tail)-trailerWindow:]
		}
		if !bytes.Contains(tail, pdfTrailer) {
			return ErrNoEOFTrailer
		}
	}
	return nil
}

// Validate reports whether data is an acceptable PDF.
func (v Validator) Validate(data []byte, contentType string) bool {
	return v.Check(data, contentType) == nil
}

// Validate checks data with the default validator settings.
func Validate(data []byte, contentType string) bool {
	return NewValidator(0).Validate(data, contentType)
}

// isMarkup reports whether a Content-Type header declares HTML.
func isMarkup(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}

func leading(data []byte) string {
	const n = 8
	if len(data) > n {
		data = data[:n]
	}
	return string(data)
}
