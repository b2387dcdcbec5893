// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package biblio

import (
	"bufio"
	"io"
	"strings"

	"github.com/pdiddy/paper-fetch/internal/ident"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// ParseList reads one identifier per line. Blank lines and lines starting
// with # are skipped, as is anything after whitespace on a line. DOI
// resolver prefixes are stripped.
func ParseList(r io.Reader) (Result, error) {
	d := newDedup()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.add(types.Record{ID: normalizeID(strings.Fields(line)[0])})
	}
	if err := sc.Err(); err != nil {
		return Result{}, err
	}
	return d.res, nil
}

// FromArgs builds records from command-line identifiers.
func FromArgs(args []string) Result {
	d := newDedup()
	for _, a := range args {
		if a = strings.TrimSpace(a); a != "" {
			d.add(types.Record{ID: normalizeID(a)})
		}
	}
	return d.res
}

// normalizeID strips DOI prefixes and leaves other identifiers as given.
func normalizeID(s string) string {
	if typ, norm := ident.Classify(s); typ == ident.TypeDOI || typ == ident.TypeArxiv {
		return norm
	}
	return strings.TrimSpace(s)
}
