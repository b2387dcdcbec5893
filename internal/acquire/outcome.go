// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Status classifies the result of one source attempt.
type Status string

const (
	// StatusSuccess means the source returned a candidate document.
	StatusSuccess Status = "success"
	// StatusNotFound means the source authoritatively does not have the work.
	StatusNotFound Status = "not_found"
	// StatusTransient covers network errors, timeouts and rate limits; retried.
	StatusTransient Status = "transient"
	// StatusPermanent covers blocks, malformed endpoints and rejected content.
	StatusPermanent Status = "permanent"
)

// Outcome is the classified result of attempting one source for one record.
// Adapters return Outcomes as plain values; they never signal failure
// through Go errors or panics.
type Outcome struct {
	Source string `json:"source" yaml:"source"`
	Status Status `json:"status" yaml:"status"`

	// Reason explains a failure in a form suitable for the report.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Blocked is set when the source served an anti-automation challenge.
	Blocked bool `json:"blocked,omitempty" yaml:"blocked,omitempty"`

	// Content, ContentType and URL describe the document on success.
	Content     []byte `json:"-" yaml:"-"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`

	// Attempts is the number of times the source was tried (1 + retries).
	Attempts int           `json:"attempts" yaml:"attempts"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Success returns a successful Outcome carrying a candidate document.
func Success(content []byte, contentType, url string) Outcome {
	return Outcome{Status: StatusSuccess, Content: content, ContentType: contentType, URL: url}
}

// NotFound returns an Outcome reporting the work is absent from the source.
func NotFound(format string, args ...any) Outcome {
	return Outcome{Status: StatusNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Transient returns a retry-eligible failure Outcome.
func Transient(format string, args ...any) Outcome {
	return Outcome{Status: StatusTransient, Reason: fmt.Sprintf(format, args...)}
}

// Permanent returns a failure Outcome that must not be retried.
func Permanent(format string, args ...any) Outcome {
	return Outcome{Status: StatusPermanent, Reason: fmt.Sprintf(format, args...)}
}

// Blocked returns a permanent failure caused by a protection challenge.
func Blocked(format string, args ...any) Outcome {
	o := Permanent(format, args...)
	o.Blocked = true
	return o
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// Retryable reports whether the orchestrator may retry the source.
func (o Outcome) Retryable() bool { return o.Status == StatusTransient }

// String formats the outcome as "source: status (reason)".
func (o Outcome) String() string {
	var b strings.Builder
	if o.Source != "" {
		b.WriteString(o.Source)
		b.WriteString(": ")
	}
	b.WriteString(string(o.Status))
	if o.Reason != "" {
		fmt.Fprintf(&b, " (%s)", o.Reason)
	}
	if o.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", o.Attempts)
	}
	return b.String()
}

// FinalResult is the record-level verdict after trying the ordered sources.
// Outcomes always holds one entry per source tried, in the order tried,
// ending with the successful source when there is one.
type FinalResult struct {
	Record types.Record `json:"record" yaml:"record"`

	// Source, Content, ContentType and URL are set on success.
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
	Content     []byte `json:"-" yaml:"-"`
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`

	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`

	// Cancelled is set when external cancellation stopped the record
	// before every source was tried.
	Cancelled bool `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`

	// Skipped is set when the record was not attempted because it had
	// already been acquired by an earlier run.
	Skipped bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// OK reports whether a source delivered a validated document.
func (r FinalResult) OK() bool { return r.Source != "" && !r.Skipped }

// Reasons returns the ordered per-source failure descriptions, for display
// when the record failed.
func (r FinalResult) Reasons() []string {
	reasons := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.OK() {
			continue
		}
		reasons = append(reasons, o.String())
	}
	if r.Cancelled {
		reasons = append(reasons, "cancelled before all sources were tried")
	}
	return reasons
}
