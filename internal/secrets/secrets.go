// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets resolves credentials from a directory of plain-text files,
// one secret per file named after its key, with environment overrides.
//
// Known keys: gcs-credentials-json (service-account JSON for the mirror
// bucket), overridden by PROJDOCS_GCS_CREDENTIALS_JSON.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// GCSCredentials is the key of the service-account JSON used by the GCS mirror.
const GCSCredentials = "gcs-credentials-json"

// EnvPrefix prefixes the environment variable that overrides a key.
const EnvPrefix = "PROJDOCS_"

// EnvName returns the environment variable consulted for key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Lookup returns the value for key. A non-empty environment variable named
// by EnvName wins over the loaded files.
func Lookup(loaded map[string]string, key string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(EnvName(key))); v != "" {
		return v, true
	}
	v, ok := loaded[key]
	return v, ok
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged as warnings and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
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
			logger.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
