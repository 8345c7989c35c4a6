// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/oauth2"
)

// TokenPerms restricts the token cache to owner-only read/write.
const TokenPerms = 0o600

// expiryLayout is the naive UTC timestamp google-auth writes to
// token.json, so existing caches stay readable.
const expiryLayout = "2006-01-02T15:04:05.999999"

// storedToken is the on-disk token cache. It carries the OAuth client so a
// cached token can be refreshed even when no credentials file is present.
type storedToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

func (s *storedToken) oauth2Token() (*oauth2.Token, error) {
	tok := &oauth2.Token{
		AccessToken:  s.Token,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
	}
	if s.Expiry == "" {
		return tok, nil
	}
	expiry, err := parseExpiry(s.Expiry)
	if err != nil {
		return nil, err
	}
	tok.Expiry = expiry
	return tok, nil
}

func parseExpiry(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(expiryLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing expiry %q: %w", v, err)
	}
	return t, nil
}

// loadToken reads the token cache at path. It returns (nil, nil) when the
// file does not exist. A cache readable by group or others is tightened to
// 0600 before it is read.
func loadToken(path string, logger *log.Logger) (*storedToken, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // no cache yet
	}
	if err != nil {
		return nil, fmt.Errorf("auth: reading token cache %s: %w", path, err)
	}

	if info.Mode().Perm()&0o077 != 0 {
		logger.Warn().Str("path", path).Str("mode", info.Mode().Perm().String()).Msg("token cache has overly permissive permissions, fixing")
		if err := os.Chmod(path, TokenPerms); err != nil {
			return nil, fmt.Errorf("auth: tightening token cache permissions: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: reading token cache %s: %w", path, err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("auth: decoding token cache %s: %w", path, err)
	}
	if st.Token == "" && st.RefreshToken == "" {
		return nil, fmt.Errorf("auth: token cache %s holds no token", path)
	}
	return &st, nil
}

// saveToken writes tok and the client that issued it to path atomically
// (temp file in the same directory, then rename) with 0600 permissions.
func saveToken(path string, tok *oauth2.Token, cfg *oauth2.Config) error {
	st := storedToken{
		Token:        tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenURI:     cfg.Endpoint.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       cfg.Scopes,
	}
	if !tok.Expiry.IsZero() {
		st.Expiry = tok.Expiry.UTC().Format(expiryLayout)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: encoding token: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("auth: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("auth: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(TokenPerms); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: setting permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: writing token: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("auth: syncing token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("auth: closing token: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("auth: renaming token: %w", err)
	}

	success = true
	return nil
}
