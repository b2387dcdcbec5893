// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package biblio turns bibliography exports into acquisition records. It
// reads RIS exports, CSL-JSON/CSL-YAML libraries and plain identifier
// lists.
package biblio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Result holds the records parsed from one input and what was dropped.
type Result struct {
	Records []types.Record

	// Missing counts entries without a usable identifier.
	Missing int

	// Duplicates counts entries dropped because an earlier entry had the
	// same identifier.
	Duplicates int
}

// dedup appends rec unless an earlier record has the same identifier,
// compared case-insensitively.
type dedup struct {
	res  Result
	seen map[string]bool
}

func newDedup() *dedup { return &dedup{seen: make(map[string]bool)} }

func (d *dedup) add(rec types.Record) {
	if rec.ID == "" {
		d.res.Missing++
		return
	}
	key := strings.ToLower(rec.ID)
	if d.seen[key] {
		d.res.Duplicates++
		return
	}
	d.seen[key] = true
	d.res.Records = append(d.res.Records, rec)
}

// LoadFile parses the file at path, choosing the format by extension:
// .ris as RIS, .json/.yaml/.yml as CSL, anything else as an identifier
// list.
func LoadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening bibliography: %w", err)
	}
	defer f.Close()

	var res Result
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ris":
		res, err = ParseRIS(f)
	case ".json", ".yaml", ".yml":
		res, err = ParseCSL(f)
	default:
		res, err = ParseList(f)
	}
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return res, nil
}

// Merge concatenates results, dropping records already present in an
// earlier one.
func Merge(results ...Result) Result {
	d := newDedup()
	for _, r := range results {
		d.res.Missing += r.Missing
		d.res.Duplicates += r.Duplicates
		for _, rec := range r.Records {
			d.add(rec)
		}
	}
	return d.res
}
