// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the acquisition source adapters: open-access
// APIs, search pages, the DOI landing page, mirror endpoints and a
// headless browser.
// Each adapter classifies its own failures into acquire Outcomes.
package sources

import (
	"time"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/ident"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Registry tags.
const (
	Direct           = "direct"
	Unpaywall        = "unpaywall"
	OpenAlex         = "openalex"
	SemanticScholar  = "semantic_scholar"
	Arxiv            = "arxiv"
	Crossref         = "crossref"
	EuropePMC        = "europepmc"
	Core             = "core"
	OpenAccessButton = "openaccess_button"
	PubMed           = "pubmed"
	Paperity         = "paperity"
	GoogleScholar    = "google_scholar"
	ResearchGate     = "researchgate"
	DOI              = "doi"
	Mirror           = "mirror"
	Browser          = "browser"
)

type constructor func(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error)

var constructors = map[string]constructor{
	Direct:           newDirect,
	Unpaywall:        newUnpaywall,
	OpenAlex:         newOpenAlex,
	SemanticScholar:  newSemanticScholar,
	Arxiv:            newArxiv,
	Crossref:         newCrossref,
	EuropePMC:        newEuropePMC,
	Core:             newCore,
	OpenAccessButton: newOAButton,
	PubMed:           newPubMed,
	Paperity:         newPaperity,
	GoogleScholar:    newScholar,
	ResearchGate:     newResearchGate,
	DOI:              newDOILanding,
	Mirror:           newMirror,
	Browser:          newBrowser,
}

// Registry returns a registry of every adapter, each built with its own
// HTTP client and rate limiter derived from env.
func Registry(env Env) acquire.Registry {
	reg := make(acquire.Registry, len(constructors))
	for name, c := range constructors {
		reg[name] = factory(env, c)
	}
	return reg
}

func factory(env Env, c constructor) acquire.Factory {
	return func(cfg types.SourceConfig) (acquire.Adapter, error) {
		f, err := newFetcher(env, cfg)
		if err != nil {
			return nil, err
		}
		return c(f, cfg)
	}
}

// DefaultSources returns the default source configuration in priority
// order. The mirror and browser sources are disabled: mirrors carry legal
// caveats and need explicit URLs, and the browser needs a local Chrome.
// Google Scholar and ResearchGate are disabled too since both challenge
// scripted clients; when enabled they bypass the proxy.
func DefaultSources() []types.SourceConfig {
	return []types.SourceConfig{
		{Name: Direct, Enabled: true, Priority: 1},
		{Name: Unpaywall, Enabled: true, Priority: 10},
		{Name: OpenAlex, Enabled: true, Priority: 20},
		{Name: SemanticScholar, Enabled: true, Priority: 30, RateLimit: 1},
		{Name: Arxiv, Enabled: true, Priority: 40, RateLimit: 0.33},
		{Name: Crossref, Enabled: true, Priority: 50},
		{Name: EuropePMC, Enabled: true, Priority: 60},
		{Name: Core, Enabled: true, Priority: 70},
		{Name: OpenAccessButton, Enabled: true, Priority: 80},
		{Name: DOI, Enabled: true, Priority: 90},
		{Name: PubMed, Enabled: true, Priority: 92},
		{Name: Paperity, Enabled: true, Priority: 94},
		{Name: GoogleScholar, Enabled: false, Priority: 96, NoProxy: true, Timeout: 20 * time.Second},
		{Name: ResearchGate, Enabled: false, Priority: 98, NoProxy: true, Timeout: 20 * time.Second},
		{Name: Mirror, Enabled: false, Priority: 100, Risky: true},
		{Name: Browser, Enabled: false, Priority: 1000, Timeout: 90 * time.Second},
	}
}

// recordDOI returns the record's normalized DOI, or "" when its ID is
// not a DOI.
func recordDOI(rec types.Record) string {
	typ, norm := ident.Classify(rec.ID)
	if typ != ident.TypeDOI {
		return ""
	}
	return norm
}
