// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire is the multi-source acquisition engine: it tries the
// configured sources for each record in priority order, retries transient
// failures, validates what comes back, and runs batches of records on a
// bounded number of workers.
package acquire

import (
	"context"
	"log/slog"
	"time"

	"github.com/pdiddy/paper-fetch/internal/httputil"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// DefaultAttemptTimeout applies when a Budget leaves AttemptTimeout unset.
const DefaultAttemptTimeout = 60 * time.Second

// Budget bounds the work spent on one source for one record.
type Budget struct {
	// AttemptTimeout is the wall-clock limit for a single attempt.
	AttemptTimeout time.Duration

	// MaxRetries is the number of retries after a transient failure.
	// Not-found and permanent outcomes are never retried.
	MaxRetries int

	// Backoff spaces the retries.
	Backoff httputil.Backoff
}

// NewBudget builds a Budget from acquisition configuration.
func NewBudget(cfg types.AcquisitionConfig) Budget {
	return Budget{
		AttemptTimeout: cfg.AttemptTimeout,
		MaxRetries:     cfg.Retry.MaxRetries,
		Backoff:        httputil.NewBackoff(cfg.Retry),
	}
}

// Acquirer runs the per-record fallback loop. It holds no per-record state
// and may be shared by concurrent workers.
type Acquirer struct {
	validator Validator
	logger    *slog.Logger
}

// NewAcquirer returns an Acquirer validating content with v. A nil logger
// discards log output.
func NewAcquirer(v Validator, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Acquirer{validator: v, logger: logger}
}

// Acquire tries the enabled descriptors for rec in priority order and
// stops at the first source whose document passes validation. Sources are
// never tried in parallel and no source is contacted after a success. If
// ctx is cancelled the loop stops and the result is marked Cancelled.
func (a *Acquirer) Acquire(ctx context.Context, rec types.Record, descs []Descriptor, budget Budget) FinalResult {
	start := time.Now()
	res := FinalResult{Record: rec}

	for _, d := range Order(descs) {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		out := a.trySource(ctx, rec, d, budget)
		if out.OK() {
			res.Source = d.Name
			res.Content = out.Content
			res.ContentType = out.ContentType
			res.URL = out.URL
			out.Content = nil
			res.Outcomes = append(res.Outcomes, out)
			a.logger.Info("acquired", "record", rec.ID, "source", d.Name, "bytes", len(res.Content))
			break
		}
		res.Outcomes = append(res.Outcomes, out)
	}

	if !res.OK() && ctx.Err() != nil {
		res.Cancelled = true
	}
	if !res.OK() && !res.Cancelled {
		a.logger.Warn("all sources failed", "record", rec.ID, "tried", len(res.Outcomes))
	}
	res.Elapsed = httputil.Elapsed(start)
	return res
}

// trySource runs one source with retries and validates a successful
// payload. A payload that fails validation becomes a permanent failure so
// the loop moves on to the next source.
func (a *Acquirer) trySource(ctx context.Context, rec types.Record, d Descriptor, budget Budget) Outcome {
	start := time.Now()
	timeout := budget.AttemptTimeout
	if d.Timeout > 0 {
		timeout = d.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}

	var out Outcome
	attempts := 0
	for {
		attempts++
		out = a.attempt(ctx, rec, d, timeout)
		a.logger.Debug("source attempt",
			"record", rec.ID,
			"source", d.Name,
			"attempt", attempts,
			"status", out.Status,
			"reason", out.Reason,
		)
		if !out.Retryable() || attempts > budget.MaxRetries {
			break
		}

		delay := budget.Backoff.Delay(attempts)
		a.logger.Info("retrying source",
			"record", rec.ID,
			"source", d.Name,
			"retry", attempts,
			"max_retries", budget.MaxRetries,
			"delay", delay,
		)
		if err := httputil.Sleep(ctx, delay); err != nil {
			out.Reason += "; retry abandoned: " + err.Error()
			break
		}
	}

	if out.OK() {
		if err := a.validator.Check(out.Content, out.ContentType); err != nil {
			url := out.URL
			out = Permanent("invalid document: %v", err)
			out.URL = url
		}
	}

	out.Source = d.Name
	out.Attempts = attempts
	out.Elapsed = httputil.Elapsed(start)
	return out
}

// attempt invokes the adapter once under its own deadline. Panics and
// unclassified results are downgraded to permanent failures so a faulty
// adapter cannot take down the batch.
func (a *Acquirer) attempt(ctx context.Context, rec types.Record, d Descriptor, timeout time.Duration) (out Outcome) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			a.logger.Error("adapter panic", "record", rec.ID, "source", d.Name, "panic", p)
			out = Permanent("adapter fault: %v", p)
		}
	}()

	out = d.Adapter.Attempt(actx, rec)

	switch out.Status {
	case StatusSuccess, StatusNotFound, StatusTransient, StatusPermanent:
	default:
		return Permanent("adapter returned unclassified outcome %q", out.Status)
	}

	// A failure that coincides with the attempt deadline is a timeout,
	// whatever the adapter made of the resulting error.
	if !out.OK() && out.Status != StatusNotFound && actx.Err() == context.DeadlineExceeded && ctx.Err() == nil && !out.Blocked {
		out.Status = StatusTransient
		if out.Reason == "" {
			out.Reason = "attempt timed out"
		}
	}
	return out
}
