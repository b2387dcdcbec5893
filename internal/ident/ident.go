// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident classifies and normalizes paper identifiers: DOIs, arXiv
// IDs and direct URLs.
package ident

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Type classifies an input identifier.
type Type int

const (
	TypeUnknown Type = iota
	TypeDOI
	TypeArxiv
	TypeURL
)

func (t Type) String() string {
	switch t {
	case TypeDOI:
		return "doi"
	case TypeArxiv:
		return "arxiv"
	case TypeURL:
		return "url"
	default:
		return "unknown"
	}
}

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041", "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?i:arXiv:)?(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// doiPattern matches DOIs: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)

// arxivDOIPattern matches DataCite arXiv DOIs: "10.48550/arXiv.2301.07041".
var arxivDOIPattern = regexp.MustCompile(`(?i)^10\.48550/arxiv\.(\d{4}\.\d{4,5}(?:v\d+)?)$`)

// doiPrefixes are stripped by NormalizeDOI, longest first.
var doiPrefixes = []string{
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"https://doi.org/",
	"http://doi.org/",
	"doi.org/",
	"doi:",
}

// NormalizeDOI trims whitespace and strips resolver URL and "doi:" prefixes.
// It does not change case: DOIs are case-insensitive but providers echo
// them back as registered.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	return s
}

// Classify determines the identifier type and returns the normalized form.
// For arXiv, it strips the optional "arXiv:" prefix; for DOIs, the resolver
// prefix.
func Classify(identifier string) (Type, string) {
	identifier = strings.TrimSpace(identifier)

	if m := arxivPattern.FindStringSubmatch(identifier); m != nil {
		return TypeArxiv, m[1]
	}

	if doi := NormalizeDOI(identifier); doiPattern.MatchString(doi) {
		return TypeDOI, doi
	}

	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return TypeURL, identifier
	}

	return TypeUnknown, identifier
}

// ArxivID returns the arXiv ID carried by identifier, either directly or
// through an arXiv DataCite DOI.
func ArxivID(identifier string) (string, bool) {
	typ, norm := Classify(identifier)
	switch typ {
	case TypeArxiv:
		return norm, true
	case TypeDOI:
		if m := arxivDOIPattern.FindStringSubmatch(norm); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Slug returns a filesystem-safe filename stem for the identifier.
func Slug(identifier string) string {
	typ, norm := Classify(identifier)
	switch typ {
	case TypeArxiv:
		return norm
	case TypeDOI:
		return strings.NewReplacer("/", "-", ":", "-", "\\", "-", "?", "-", "*", "-",
			"\"", "-", "<", "-", ">", "-", "|", "-").Replace(norm)
	default:
		return hashSlug(identifier)
	}
}

func hashSlug(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("id-%x", h[:8])
}
