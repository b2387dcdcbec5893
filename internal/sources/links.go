// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// onclickLocation matches `location.href='...'` style navigation in
// onclick handlers.
var onclickLocation = regexp.MustCompile(`location(?:\.href)?\s*=\s*["']([^"']+)["']`)

// candidates collects absolute URLs in insertion order without duplicates.
type candidates struct {
	base string
	seen map[string]bool
	urls []string
}

func newCandidates(base string) *candidates {
	return &candidates{base: base, seen: make(map[string]bool)}
}

func (c *candidates) add(ref string) {
	abs, ok := resolveRef(c.base, ref)
	if !ok || c.seen[abs] {
		return
	}
	c.seen[abs] = true
	c.urls = append(c.urls, abs)
}

func looksLikePDF(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.Contains(lower, ".pdf") || strings.Contains(lower, "/pdf/") ||
		strings.HasSuffix(lower, "/pdf") || strings.Contains(lower, "pdf=render")
}

// landingLinks extracts document candidates from a publisher landing page,
// best first: citation_pdf_url meta tags, Link headers that announce a
// PDF, then anchors that point at one.
func landingLinks(base string, header http.Header, body []byte) []string {
	c := newCandidates(base)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		doc.Find(`meta[name="citation_pdf_url"]`).Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr("content"); ok {
				c.add(v)
			}
		})
	}

	for _, link := range header.Values("Link") {
		for _, ref := range pdfLinkHeader(link) {
			c.add(ref)
		}
	}

	if err == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			typ, _ := s.Attr("type")
			if looksLikePDF(href) || mediaType(typ) == "application/pdf" {
				c.add(href)
			}
		})
	}
	return c.urls
}

// pdfLinkHeader returns the targets of an RFC 8288 Link header whose
// parameters declare type application/pdf.
func pdfLinkHeader(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "<") {
			continue
		}
		end := strings.Index(part, ">")
		if end < 0 {
			continue
		}
		target := part[1:end]
		for _, param := range strings.Split(part[end+1:], ";") {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if ok && strings.EqualFold(k, "type") && strings.EqualFold(strings.Trim(v, `"`), "application/pdf") {
				out = append(out, target)
				break
			}
		}
	}
	return out
}

// mirrorLinks extracts candidates from a mirror page. Direct links are
// anchors and button handlers pointing at a PDF; embedded targets come
// from embed, iframe and object elements.
func mirrorLinks(base string, body []byte) (direct, embedded []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}

	d := newCandidates(base)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, _ := s.Attr("href"); looksLikePDF(href) {
			d.add(href)
		}
	})
	doc.Find("[onclick]").Each(func(_ int, s *goquery.Selection) {
		onclick, _ := s.Attr("onclick")
		for _, m := range onclickLocation.FindAllStringSubmatch(onclick, -1) {
			if looksLikePDF(m[1]) || strings.HasPrefix(m[1], "http") || strings.HasPrefix(m[1], "//") {
				d.add(m[1])
			}
		}
	})

	e := newCandidates(base)
	doc.Find("embed[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		e.add(src)
	})
	doc.Find("object[data]").Each(func(_ int, s *goquery.Selection) {
		data, _ := s.Attr("data")
		e.add(data)
	})
	return d.urls, e.urls
}
