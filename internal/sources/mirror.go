// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

const mirrorAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// mirror tries an ordered list of mirror endpoints. Each mirror page is
// searched for a direct document link, is itself checked for being a
// document, and is searched for an embedded document.
type mirror struct {
	f       *fetcher
	mirrors []string
}

func newMirror(f *fetcher, cfg types.SourceConfig) (acquire.Adapter, error) {
	if len(cfg.Mirrors) == 0 {
		return nil, errors.New("mirror source needs at least one mirror URL")
	}
	mirrors := make([]string, len(cfg.Mirrors))
	for i, m := range cfg.Mirrors {
		mirrors[i] = strings.TrimRight(m, "/")
	}
	return &mirror{f: f, mirrors: mirrors}, nil
}

func (m *mirror) Attempt(ctx context.Context, rec types.Record) acquire.Outcome {
	doi := recordDOI(rec)
	if doi == "" {
		return acquire.NotFound("identifier %q is not a DOI", rec.ID)
	}

	signals := make([]acquire.Outcome, 0, len(m.mirrors))
	for _, base := range m.mirrors {
		if ctx.Err() != nil {
			break
		}
		out := m.tryMirror(ctx, base, doi)
		if out.OK() {
			return out
		}
		out.Source = mirrorHost(base)
		m.f.logger.Debug("mirror failed", "mirror", out.Source, "status", out.Status, "reason", out.Reason)
		signals = append(signals, out)
	}
	if len(signals) == 0 {
		return acquire.Transient("no mirror tried: %v", ctx.Err())
	}
	return exhausted(signals)
}

func (m *mirror) tryMirror(ctx context.Context, base, doi string) acquire.Outcome {
	resp, err := m.f.get(ctx, base+"/"+doiPath(doi), http.Header{"Accept": {mirrorAccept}})
	if err != nil {
		return classifyError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return classifyResponse(resp)
	}

	if resp.isDocument() {
		out := documentOutcome(resp)
		if !out.OK() {
			return out
		}
		if err := m.f.validator.Check(out.Content, out.ContentType); err != nil {
			return withURL(acquire.Permanent("invalid document: %v", err), resp.URL)
		}
		return out
	}

	direct, embedded := mirrorLinks(resp.URL, resp.Body)
	links := append(direct, embedded...)
	if len(links) == 0 {
		if resp.challenged() {
			return withURL(acquire.Blocked("challenge page"), resp.URL)
		}
		return withURL(acquire.NotFound("article not on mirror"), resp.URL)
	}

	out := m.f.firstDocument(ctx, links)
	if !out.OK() && resp.challenged() {
		out.Blocked = true
		out.Status = acquire.StatusPermanent
	}
	return out
}

// exhausted folds per-mirror failures into one outcome. Every mirror
// reporting the article absent is not found; failures that are all
// transient (ignoring absences) are transient; anything else is
// permanent, and blocked if any mirror served a challenge.
func exhausted(signals []acquire.Outcome) acquire.Outcome {
	allAbsent, allTransient, blocked := true, true, false
	parts := make([]string, len(signals))
	for i, s := range signals {
		parts[i] = fmt.Sprintf("%s: %s", s.Source, s.Status)
		if s.Reason != "" {
			parts[i] += " (" + s.Reason + ")"
		}
		if s.Status == acquire.StatusNotFound {
			continue
		}
		allAbsent = false
		if s.Status != acquire.StatusTransient {
			allTransient = false
		}
		blocked = blocked || s.Blocked
	}

	reason := strings.Join(parts, "; ")
	switch {
	case allAbsent:
		return acquire.NotFound("%s", reason)
	case allTransient && !blocked:
		return acquire.Transient("%s", reason)
	case blocked:
		return acquire.Blocked("%s", reason)
	}
	return acquire.Permanent("%s", reason)
}

func mirrorHost(base string) string {
	if u, err := url.Parse(base); err == nil && u.Host != "" {
		return u.Host
	}
	return base
}
