// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-fetch/internal/acquire"
	"github.com/pdiddy/paper-fetch/internal/httputil"
	"github.com/pdiddy/paper-fetch/internal/secrets"
	"github.com/pdiddy/paper-fetch/internal/sources"
	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Configuration defaults.
const (
	defaultOutputDir      = "papers"
	defaultLedgerPath     = "paper-fetch.db"
	defaultSecretsDir     = ".secrets"
	defaultConcurrency    = 3
	defaultTimeout        = 30 * time.Second
	defaultAttemptTimeout = acquire.DefaultAttemptTimeout
	defaultMaxRetries     = 2
	defaultBaseDelay      = 2 * time.Second
	defaultMaxDelay       = 30 * time.Second
)

// setDefaults registers every configuration key with its default, so each
// key can also be set through a PAPER_FETCH_ environment variable.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("secrets_dir", defaultSecretsDir)
	v.SetDefault("email", "")

	v.SetDefault("output_dir", defaultOutputDir)
	v.SetDefault("ledger_path", defaultLedgerPath)
	v.SetDefault("resume", true)
	v.SetDefault("concurrency", defaultConcurrency)
	v.SetDefault("min_pdf_size", acquire.DefaultMinSize)
	v.SetDefault("require_eof", true)

	v.SetDefault("timeout", defaultTimeout)
	v.SetDefault("user_agent", httputil.DefaultUserAgent)
	v.SetDefault("proxy", "")
	v.SetDefault("attempt_timeout", defaultAttemptTimeout)

	v.SetDefault("retry.max_retries", defaultMaxRetries)
	v.SetDefault("retry.strategy", string(types.BackoffExponential))
	v.SetDefault("retry.base_delay", defaultBaseDelay)
	v.SetDefault("retry.max_delay", defaultMaxDelay)

	for _, s := range sources.DefaultSources() {
		key := "sources." + s.Name + "."
		v.SetDefault(key+"enabled", s.Enabled)
		v.SetDefault(key+"priority", s.Priority)
		v.SetDefault(key+"risky", s.Risky)
		v.SetDefault(key+"timeout", s.Timeout)
		v.SetDefault(key+"rate_limit", s.RateLimit)
		v.SetDefault(key+"no_proxy", s.NoProxy)
		v.SetDefault(key+"email", "")
		v.SetDefault(key+"api_key", "")
		v.SetDefault(key+"mirrors", []string{})
	}
}

// loadConfig reads the acquisition settings from v. Sources are read by
// loadSources.
func loadConfig(v *viper.Viper) types.AcquisitionConfig {
	return types.AcquisitionConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   v.GetDuration("timeout"),
			UserAgent: v.GetString("user_agent"),
			Proxy:     v.GetString("proxy"),
		},
		AttemptTimeout: v.GetDuration("attempt_timeout"),
		Retry: types.RetryConfig{
			MaxRetries: v.GetInt("retry.max_retries"),
			Strategy:   types.BackoffStrategy(v.GetString("retry.strategy")),
			BaseDelay:  v.GetDuration("retry.base_delay"),
			MaxDelay:   v.GetDuration("retry.max_delay"),
		},
		Concurrency: v.GetInt("concurrency"),
		OutputDir:   v.GetString("output_dir"),
		LedgerPath:  v.GetString("ledger_path"),
		Resume:      v.GetBool("resume"),
		MinPDFSize:  v.GetInt("min_pdf_size"),
	}
}

// sourceSelection holds the command-line source overrides.
type sourceSelection struct {
	Only    []string
	Enable  []string
	Disable []string
}

// loadSources builds the source list: defaults, then configuration, then
// secrets for empty credentials, then command-line selection. Names in the
// configuration that match no adapter are kept so that building the
// registry reports them.
func loadSources(v *viper.Viper, sec secrets.Secrets, sel sourceSelection, logger *slog.Logger) ([]types.SourceConfig, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfgs := sources.DefaultSources()
	known := make(map[string]bool, len(cfgs))
	for _, c := range cfgs {
		known[c.Name] = true
	}

	var unknown []string
	for name := range v.GetStringMap("sources") {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		cfgs = append(cfgs, types.SourceConfig{Name: name, Enabled: true})
	}

	globalEmail := v.GetString("email")
	for i := range cfgs {
		c := &cfgs[i]
		if !known[c.Name] {
			continue
		}
		key := "sources." + c.Name + "."
		c.Enabled = v.GetBool(key + "enabled")
		c.Priority = v.GetInt(key + "priority")
		c.Risky = v.GetBool(key + "risky")
		c.Timeout = v.GetDuration(key + "timeout")
		c.RateLimit = v.GetFloat64(key + "rate_limit")
		c.NoProxy = v.GetBool(key + "no_proxy")
		c.Email = v.GetString(key + "email")
		c.APIKey = v.GetString(key + "api_key")
		c.Mirrors = v.GetStringSlice(key + "mirrors")
		if c.Email == "" && globalEmail != "" {
			c.Email = globalEmail
		}
	}

	sec.Apply(cfgs)

	if err := applySelection(cfgs, sel, known); err != nil {
		return nil, err
	}

	for i := range cfgs {
		c := &cfgs[i]
		if c.Name == sources.Unpaywall && c.Enabled && c.Email == "" {
			logger.Warn("unpaywall disabled: no contact email configured (set email or .secrets/" + secrets.ContactEmail + ")")
			c.Enabled = false
		}
	}
	return cfgs, nil
}

func applySelection(cfgs []types.SourceConfig, sel sourceSelection, known map[string]bool) error {
	for _, list := range [][]string{sel.Only, sel.Enable, sel.Disable} {
		for _, name := range list {
			if !known[name] {
				return &acquire.ConfigurationError{Source: name, Err: acquire.ErrUnknownSource}
			}
		}
	}

	if len(sel.Only) > 0 {
		only := make(map[string]bool, len(sel.Only))
		for _, name := range sel.Only {
			only[name] = true
		}
		for i := range cfgs {
			cfgs[i].Enabled = only[cfgs[i].Name]
		}
	}
	set := func(names []string, enabled bool) {
		for _, name := range names {
			for i := range cfgs {
				if cfgs[i].Name == name {
					cfgs[i].Enabled = enabled
				}
			}
		}
	}
	set(sel.Enable, true)
	set(sel.Disable, false)
	return nil
}

// riskyEnabled returns the names of enabled risky sources.
func riskyEnabled(cfgs []types.SourceConfig) []string {
	var names []string
	for _, c := range cfgs {
		if c.Enabled && c.Risky {
			names = append(names, c.Name)
		}
	}
	return names
}

func splitNames(values []string) []string {
	var out []string
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}
