// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the source adapters and
// the acquisition engine: client construction, rate limiting, and the
// backoff policy applied between transient retries.
package httputil

import (
	"context"
	"math"
	"time"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// DefaultBaseDelay is the base retry delay used when a Backoff leaves
// Base unset. Tests override it to avoid real sleeps.
var DefaultBaseDelay = 2 * time.Second

// Backoff computes the delay before a retry. The exponential curve doubles
// each retry: Base, 2*Base, 4*Base, ... capped at Max when Max > 0.
type Backoff struct {
	Strategy types.BackoffStrategy
	Base     time.Duration
	Max      time.Duration
}

// NewBackoff builds a Backoff from retry configuration.
func NewBackoff(cfg types.RetryConfig) Backoff {
	return Backoff{Strategy: cfg.Strategy, Base: cfg.BaseDelay, Max: cfg.MaxDelay}
}

// Delay returns the wait before retry number retry (1-based).
func (b Backoff) Delay(retry int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if retry < 1 {
		retry = 1
	}

	d := base
	if b.Strategy == types.BackoffExponential {
		for i := 1; i < retry; i++ {
			if (b.Max > 0 && d >= b.Max) || d > math.MaxInt64/2 {
				break
			}
			d *= 2
		}
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 || ctx.Err() != nil {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
