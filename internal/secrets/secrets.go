// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads the OAuth client pair from a directory holding one
// file per value, so the client secret can live outside config files and
// shell history. The directory holds client-id and client-secret; other
// files are ignored.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/phuslu/log"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Key file names.
const (
	ClientID     = "client-id"
	ClientSecret = "client-secret"
)

var keys = []string{ClientID, ClientSecret}

// Secrets holds the trimmed contents of the key files that were found.
type Secrets struct {
	Dir    string
	values map[string]string
}

// Get returns the value of key, or "" when its file was absent or empty.
func (s Secrets) Get(key string) string { return s.values[key] }

// Load reads the key files in dir. A missing directory or key file is not
// an error. Unreadable files are logged and skipped; files readable by
// group or others are used with a warning.
func Load(dir string, logger *log.Logger) (Secrets, error) {
	s := Secrets{Dir: dir, values: map[string]string{}}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return s, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	case !info.IsDir():
		return s, fmt.Errorf("secrets path %s is not a directory", dir)
	}

	for _, key := range keys {
		path := filepath.Join(dir, key)
		fi, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && fi.IsDir()) {
			continue
		}
		if err == nil && fi.Mode().Perm()&0o077 != 0 {
			logger.Warn().Str("path", path).Str("mode", fi.Mode().Perm().String()).Msg("secret file is readable by other users")
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Str("secret", key).Err(err).Msg("could not read secret")
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			s.values[key] = v
		}
	}
	return s, nil
}

// Apply fills the client pair when cfg carries neither half. Values set by
// flags, environment or config file take precedence, and a half pair in
// the directory is ignored.
func (s Secrets) Apply(cfg *types.AuthConfig) bool {
	if cfg.ClientID != "" || cfg.ClientSecret != "" {
		return false
	}
	id, secret := s.Get(ClientID), s.Get(ClientSecret)
	if id == "" || secret == "" {
		return false
	}
	cfg.ClientID, cfg.ClientSecret = id, secret
	return true
}
