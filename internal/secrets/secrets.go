// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads service credentials from a directory of plain-text
// files. Each file holds one secret: the filename is the key and the
// trimmed contents are the value.
//
// Known keys: ncbi-api-key and ncbi-email, both sent to E-utilities.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Known key files.
const (
	NCBIAPIKey = "ncbi-api-key"
	NCBIEmail  = "ncbi-email"
)

// DefaultDir is the secrets directory relative to the working directory.
const DefaultDir = ".secrets"

// Load reads all files in dir and returns a map of filename to trimmed
// contents. A missing directory is not an error. Unreadable files are
// logged at warn level and skipped.
func Load(dir string, log zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	out := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			out[name] = value
		}
	}
	return out, nil
}

// NCBI holds the optional E-utilities credentials.
type NCBI struct {
	APIKey string
	Email  string
}

// LoadNCBI returns the E-utilities credentials from dir. Environment
// variables NCBI_API_KEY and NCBI_EMAIL take precedence over files.
func LoadNCBI(dir string, log zerolog.Logger) (NCBI, error) {
	s, err := Load(dir, log)
	if err != nil {
		return NCBI{}, err
	}
	return NCBI{
		APIKey: firstNonEmpty(os.Getenv("NCBI_API_KEY"), s[NCBIAPIKey]),
		Email:  firstNonEmpty(os.Getenv("NCBI_EMAIL"), s[NCBIEmail]),
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
