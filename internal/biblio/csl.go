// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package biblio

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// CSLItem is the subset of a CSL (Citation Style Language) entry used for
// acquisition. Field names follow the CSL-JSON/CSL-YAML schema, so Zotero
// and Pandoc libraries load directly.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]any `yaml:"date-parts"`
	Literal   string  `yaml:"literal,omitempty"`
}

// ParseCSL reads a CSL-JSON or CSL-YAML list. JSON is valid YAML, so one
// decoder serves both. Items without a DOI are counted in Missing.
func ParseCSL(r io.Reader) (Result, error) {
	var items []CSLItem
	if err := yaml.NewDecoder(r).Decode(&items); err != nil {
		if err == io.EOF {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("decoding CSL: %w", err)
	}

	d := newDedup()
	for _, it := range items {
		d.add(it.record())
	}
	return d.res, nil
}

func (it CSLItem) record() types.Record {
	rec := types.Record{
		ID:      normalizeID(it.DOI),
		Title:   strings.TrimSpace(it.Title),
		Journal: strings.TrimSpace(it.ContainerTitle),
	}
	for _, a := range it.Author {
		rec.Authors = append(rec.Authors, a.String())
	}
	if it.Issued != nil {
		rec.Year = it.Issued.year()
	}
	return rec
}

// String formats the name as "Family, Given" so the family name leads.
func (n CSLName) String() string {
	switch {
	case n.Literal != "":
		return n.Literal
	case n.Given == "":
		return n.Family
	case n.Family == "":
		return n.Given
	}
	return n.Family + ", " + n.Given
}

func (d CSLDate) year() string {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		switch v := d.DateParts[0][0].(type) {
		case int:
			return strconv.Itoa(v)
		case string:
			return yearPattern.FindString(v)
		}
	}
	return yearPattern.FindString(d.Literal)
}
