// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by every source adapter.
type HTTPConfig struct {
	// Timeout is the client-level request timeout. Per-attempt deadlines
	// from the acquisition budget apply on top of it.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Proxy is an optional proxy URL (http, https or socks5) for outbound
	// requests. Sources with NoProxy set bypass it.
	Proxy string `json:"proxy,omitempty" yaml:"proxy,omitempty" mapstructure:"proxy" validate:"omitempty,url"`
}

// BackoffStrategy selects the delay curve between transient retries.
type BackoffStrategy string

const (
	BackoffFixed       BackoffStrategy = "fixed"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryConfig controls retries of transient source failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// Strategy is "fixed" or "exponential" (capped by MaxDelay).
	Strategy BackoffStrategy `json:"strategy" yaml:"strategy" mapstructure:"strategy" validate:"omitempty,oneof=fixed exponential"`

	// BaseDelay is the fixed delay, or the first exponential delay.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay" validate:"gte=0"`

	// MaxDelay caps exponential delays. Zero means no cap.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay" validate:"gte=0"`
}

// SourceConfig configures one source adapter. Name must match a tag known
// to the source registry.
type SourceConfig struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Priority int    `json:"priority" yaml:"priority" mapstructure:"priority" validate:"gte=0"`

	// Risky flags sources with legal or ethical caveats. Risky sources are
	// logged with a warning when enabled.
	Risky bool `json:"risky,omitempty" yaml:"risky,omitempty" mapstructure:"risky"`

	// Timeout overrides the budget's per-attempt timeout for this source.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout" validate:"gte=0"`

	// Email is the contact address required by polite APIs (Unpaywall,
	// OpenAlex, Open Access Button).
	Email string `json:"email,omitempty" yaml:"email,omitempty" mapstructure:"email" validate:"omitempty,email"`

	// APIKey authenticates against APIs that accept one (Semantic Scholar, CORE).
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// Mirrors lists base URLs, tried in order, for mirror-style sources.
	Mirrors []string `json:"mirrors,omitempty" yaml:"mirrors,omitempty" mapstructure:"mirrors" validate:"dive,url"`

	// RateLimit is the sustained request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty" mapstructure:"rate_limit" validate:"gte=0"`

	// NoProxy sends this source's requests directly even when a proxy is set.
	NoProxy bool `json:"no_proxy,omitempty" yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// AcquisitionConfig holds settings for a fetch run.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// AttemptTimeout is the wall-clock limit for one source attempt.
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout" mapstructure:"attempt_timeout" validate:"gt=0"`

	// Retry controls transient-failure retries per source.
	Retry RetryConfig `json:"retry" yaml:"retry" mapstructure:"retry"`

	// Concurrency is the number of records acquired at once.
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=64"`

	// OutputDir receives PDFs, metadata YAML and summaries.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir" validate:"required"`

	// LedgerPath is the SQLite run ledger. Empty disables the ledger.
	LedgerPath string `json:"ledger_path,omitempty" yaml:"ledger_path,omitempty" mapstructure:"ledger_path"`

	// Resume skips records the ledger already lists as acquired.
	Resume bool `json:"resume" yaml:"resume" mapstructure:"resume"`

	// MinPDFSize is the smallest payload accepted as a PDF, in bytes.
	MinPDFSize int `json:"min_pdf_size" yaml:"min_pdf_size" mapstructure:"min_pdf_size" validate:"gte=0"`

	// Sources configures the source adapters in declaration order.
	Sources []SourceConfig `json:"sources" yaml:"sources" mapstructure:"sources" validate:"dive"`
}

// Validate checks field constraints and reports the first violations found.
func (c AcquisitionConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid acquisition config: %w", err)
	}
	return nil
}

// Validate checks the field constraints of a single source configuration.
func (c SourceConfig) Validate() error {
	return validator.New().Struct(c)
}
