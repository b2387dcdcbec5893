// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package biblio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

const sampleRIS = "\ufeffTY  - JOUR\r\n" + `AU  - Smith, John
AU  - Doe, Jane
TI  - Deep Learning for Cats
PY  - 2021/03/15/
J9  - J CAT SCI
T2  - Journal of Cat Science
DO  - 10.1000/Cats.2021
ER  - 

TY  - JOUR
TI  - No Identifier Here
AU  - Nobody, A.
ER  - 

TY  - CONF
A1  - Lee, K.
T1  - Linked by URL
Y1  - 2019
JO  - Proc. Things
UR  - https://doi.org/10.2000/url-only
ER  - 

TY  - JOUR
TI  - Duplicate with different case
DO  - https://doi.org/10.1000/cats.2021
ER  - 
TY  - JOUR
TI  - Unterminated last entry
DO  - doi:10.3000/last
`

func TestParseRIS(t *testing.T) {
	res, err := ParseRIS(strings.NewReader(sampleRIS))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Records, 3)

	assert.Equal(t, types.Record{
		ID:      "10.1000/Cats.2021",
		Title:   "Deep Learning for Cats",
		Authors: []string{"Smith, John", "Doe, Jane"},
		Year:    "2021",
		Journal: "Journal of Cat Science",
	}, res.Records[0])
	assert.Equal(t, "Smith", res.Records[0].FirstAuthor())

	assert.Equal(t, "10.2000/url-only", res.Records[1].ID)
	assert.Equal(t, "Proc. Things", res.Records[1].Journal)
	assert.Equal(t, "2019", res.Records[1].Year)
	assert.Equal(t, []string{"Lee, K."}, res.Records[1].Authors)

	assert.Equal(t, "10.3000/last", res.Records[2].ID)
}

func TestParseRISEmpty(t *testing.T) {
	res, err := ParseRIS(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Zero(t, res.Missing)
}

func TestParseList(t *testing.T) {
	input := `# reading list
10.1000/a
https://doi.org/10.1000/B   trailing note

doi:10.1000/c
10.1000/b
arXiv:2301.07041
`
	res, err := ParseList(strings.NewReader(input))
	require.NoError(t, err)

	var ids []string
	for _, r := range res.Records {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"10.1000/a", "10.1000/B", "10.1000/c", "2301.07041"}, ids)
	assert.Equal(t, 1, res.Duplicates)
}

const sampleCSL = `[
  {"id": "smith2021", "type": "article-journal", "title": "Deep Learning for Cats",
   "author": [{"family": "Smith", "given": "John"}, {"literal": "Cat Consortium"}],
   "issued": {"date-parts": [[2021, 3, 15]]},
   "container-title": "Journal of Cat Science",
   "DOI": "10.1000/cats.2021"},
  {"id": "nodoi", "title": "Preprint Without DOI"},
  {"id": "str-year", "title": "String Year", "issued": {"date-parts": [["2018"]]}, "DOI": "https://doi.org/10.1000/str"}
]`

func TestParseCSL(t *testing.T) {
	res, err := ParseCSL(strings.NewReader(sampleCSL))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Missing)
	require.Len(t, res.Records, 2)
	assert.Equal(t, types.Record{
		ID:      "10.1000/cats.2021",
		Title:   "Deep Learning for Cats",
		Authors: []string{"Smith, John", "Cat Consortium"},
		Year:    "2021",
		Journal: "Journal of Cat Science",
	}, res.Records[0])
	assert.Equal(t, "10.1000/str", res.Records[1].ID)
	assert.Equal(t, "2018", res.Records[1].Year)
}

func TestParseCSLYAML(t *testing.T) {
	input := `- id: a
  title: From Pandoc
  author:
    - family: Doe
      given: Jane
  DOI: 10.1000/yaml
`
	res, err := ParseCSL(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Doe", res.Records[0].FirstAuthor())
}

func TestParseCSLInvalid(t *testing.T) {
	_, err := ParseCSL(strings.NewReader(`{"not": "a list"}`))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	res, err := LoadFile(write("lib.ris", sampleRIS))
	require.NoError(t, err)
	assert.Len(t, res.Records, 3)

	res, err = LoadFile(write("lib.json", sampleCSL))
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)

	res, err = LoadFile(write("dois.txt", "10.1000/x\n10.1000/y\n"))
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)

	_, err = LoadFile(filepath.Join(dir, "missing.ris"))
	assert.Error(t, err)
}

func TestMergeAndArgs(t *testing.T) {
	a := FromArgs([]string{"10.1000/x", " ", "https://doi.org/10.1000/Y"})
	require.Len(t, a.Records, 2)

	b := Result{Records: []types.Record{{ID: "10.1000/y", Title: "dup"}, {ID: "10.1000/z"}}, Missing: 2}
	m := Merge(a, b)
	assert.Len(t, m.Records, 3)
	assert.Equal(t, 1, m.Duplicates)
	assert.Equal(t, 2, m.Missing)
	assert.Equal(t, "10.1000/Y", m.Records[1].ID, "first occurrence wins")
}
