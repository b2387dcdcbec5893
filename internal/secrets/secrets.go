// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and contact details from a directory of
// plain-text files and injects them into source configuration. Each file
// in the directory is one secret: the filename is the key name and the
// trimmed contents are the value.
//
// Recognized key files: contact-email, semantic-scholar-api-key,
// core-api-key, mirror-urls (one URL per line).
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/paper-fetch/pkg/types"
)

// Key file names.
const (
	ContactEmail          = "contact-email"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	CoreAPIKey            = "core-api-key"
	MirrorURLs            = "mirror-urls"
)

// emailSources receive the contact email. These APIs ask callers to
// identify themselves.
var emailSources = map[string]bool{
	"unpaywall":         true,
	"openalex":          true,
	"crossref":          true,
	"openaccess_button": true,
}

// Secrets maps key file names to their trimmed contents.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error; Load
// returns an empty set. Unreadable files are logged and skipped.
func Load(dir string, logger *slog.Logger) (Secrets, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", "name", name, "err", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills empty credential fields of cfgs from the loaded secrets.
// Values already present in the configuration win.
func (s Secrets) Apply(cfgs []types.SourceConfig) {
	for i := range cfgs {
		cfg := &cfgs[i]
		if cfg.Email == "" && emailSources[cfg.Name] {
			cfg.Email = s[ContactEmail]
		}
		if cfg.APIKey == "" {
			switch cfg.Name {
			case "semantic_scholar":
				cfg.APIKey = s[SemanticScholarAPIKey]
			case "core":
				cfg.APIKey = s[CoreAPIKey]
			}
		}
		if len(cfg.Mirrors) == 0 && cfg.Name == "mirror" {
			cfg.Mirrors = s.lines(MirrorURLs)
		}
	}
}

func (s Secrets) lines(key string) []string {
	var out []string
	for _, l := range strings.Split(s[key], "\n") {
		if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "#") {
			out = append(out, l)
		}
	}
	return out
}
