// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package biblio

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-fetch/internal/ident"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// risLine matches "TG  - value". Some exporters emit a single space before
// the dash or drop the trailing space on empty values.
var risLine = regexp.MustCompile(`^([A-Z][A-Z0-9])\s{1,2}-(?:\s(.*))?$`)

var yearPattern = regexp.MustCompile(`\d{4}`)

// journalTags lists container-title tags, preferred first.
var journalTags = []string{"T2", "JF", "JO", "J9", "JI"}

type risEntry struct {
	doi     string
	url     string
	title   string
	authors []string
	year    string
	journal map[string]string
}

func (e *risEntry) record() types.Record {
	rec := types.Record{
		Title:   e.title,
		Authors: e.authors,
		Year:    e.year,
	}
	if e.doi != "" {
		rec.ID = ident.NormalizeDOI(e.doi)
	} else if typ, norm := ident.Classify(e.url); typ == ident.TypeDOI {
		rec.ID = norm
	}
	for _, tag := range journalTags {
		if v := e.journal[tag]; v != "" {
			rec.Journal = v
			break
		}
	}
	return rec
}

func (e *risEntry) empty() bool {
	return e.doi == "" && e.url == "" && e.title == "" && len(e.authors) == 0
}

// ParseRIS reads a RIS export. Each entry becomes a record keyed by its DO
// tag, or by a doi.org UR link when DO is absent. Entries without a DOI are
// counted in Missing; repeated DOIs keep the first entry.
func ParseRIS(r io.Reader) (Result, error) {
	d := newDedup()
	cur := &risEntry{journal: make(map[string]string)}

	flush := func() {
		if !cur.empty() {
			d.add(cur.record())
		}
		cur = &risEntry{journal: make(map[string]string)}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		m := risLine.FindStringSubmatch(strings.TrimRight(line, " \t\r"))
		if m == nil {
			continue
		}
		tag, value := m[1], strings.TrimSpace(m[2])

		switch tag {
		case "TY", "ER":
			flush()
		case "DO":
			if cur.doi == "" {
				cur.doi = value
			}
		case "UR", "L2":
			if cur.url == "" && strings.Contains(strings.ToLower(value), "doi.org/") {
				cur.url = value
			}
		case "TI", "T1":
			if cur.title == "" {
				cur.title = value
			}
		case "AU", "A1":
			if value != "" {
				cur.authors = append(cur.authors, value)
			}
		case "PY", "Y1":
			if cur.year == "" {
				cur.year = yearPattern.FindString(value)
			}
		case "T2", "JF", "JO", "J9", "JI":
			if cur.journal[tag] == "" {
				cur.journal[tag] = value
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	flush()
	return d.res, nil
}
