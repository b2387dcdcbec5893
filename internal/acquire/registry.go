// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Adapter wraps one external provider. Attempt performs a single lookup
// strategy for rec and classifies the result; the attempt deadline arrives
// through ctx. Implementations must be safe for concurrent use across
// records.
type Adapter interface {
	Attempt(ctx context.Context, rec types.Record) Outcome
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc func(ctx context.Context, rec types.Record) Outcome

// Attempt calls f(ctx, rec).
func (f AdapterFunc) Attempt(ctx context.Context, rec types.Record) Outcome { return f(ctx, rec) }

// Descriptor binds a configured source to its adapter.
type Descriptor struct {
	Name     string
	Priority int
	Risky    bool
	Enabled  bool

	// Timeout overrides the budget's attempt timeout when positive.
	Timeout time.Duration

	Adapter Adapter
}

// Order returns the enabled descriptors sorted by ascending priority.
// Ties keep declaration order.
func Order(descs []Descriptor) []Descriptor {
	out := make([]Descriptor, 0, len(descs))
	for _, d := range descs {
		if d.Enabled && d.Adapter != nil {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// ConfigurationError reports an invalid source configuration. It is fatal
// at startup and never produced per record.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("source configuration: %v", e.Err)
	}
	return fmt.Sprintf("source %q: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ErrUnknownSource is wrapped by ConfigurationError when a configured name
// has no registered adapter.
var ErrUnknownSource = errors.New("no adapter registered for this source name")

// Factory builds an adapter from its source configuration.
type Factory func(cfg types.SourceConfig) (Adapter, error)

// Registry maps source-name tags to adapter factories.
type Registry map[string]Factory

// Names returns the registered tags in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build validates cfgs against the registry and constructs descriptors in
// declaration order. Adapters are only constructed for enabled sources.
// Any problem is returned as a *ConfigurationError.
func (r Registry) Build(cfgs []types.SourceConfig) ([]Descriptor, error) {
	seen := make(map[string]bool, len(cfgs))
	descs := make([]Descriptor, 0, len(cfgs))
	enabled := 0

	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, &ConfigurationError{Source: cfg.Name, Err: err}
		}
		factory, ok := r[cfg.Name]
		if !ok {
			return nil, &ConfigurationError{Source: cfg.Name, Err: ErrUnknownSource}
		}
		if seen[cfg.Name] {
			return nil, &ConfigurationError{Source: cfg.Name, Err: errors.New("configured more than once")}
		}
		seen[cfg.Name] = true

		d := Descriptor{
			Name:     cfg.Name,
			Priority: cfg.Priority,
			Risky:    cfg.Risky,
			Enabled:  cfg.Enabled,
			Timeout:  cfg.Timeout,
		}
		if cfg.Enabled {
			adapter, err := factory(cfg)
			if err != nil {
				return nil, &ConfigurationError{Source: cfg.Name, Err: err}
			}
			d.Adapter = adapter
			enabled++
		}
		descs = append(descs, d)
	}

	if enabled == 0 {
		return nil, &ConfigurationError{Err: errors.New("no sources enabled")}
	}
	return descs, nil
}
