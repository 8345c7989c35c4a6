// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth provides the authenticated HTTP client used for Drive exports.
// Credentials come from inline client id and secret, an OAuth client JSON
// file, or the client recorded in a cached token, in that order. The token
// cache is refreshed silently and re-saved whenever the access token changes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"sync"

	"github.com/phuslu/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Scopes requested for every login.
var Scopes = []string{drive.DriveReadonlyScope}

// ErrNoCredentials means no OAuth client could be found.
var ErrNoCredentials = errors.New("no OAuth client credentials")

// Provider builds authenticated Drive clients.
type Provider struct {
	cfg    types.AuthConfig
	base   http.RoundTripper
	logger *log.Logger

	// OpenURL launches the browser for first-time login.
	OpenURL func(string) error
}

// NewProvider returns a Provider. base carries Drive API requests after the
// bearer token is attached; nil selects http.DefaultTransport.
func NewProvider(cfg types.AuthConfig, base http.RoundTripper, logger *log.Logger) *Provider {
	if cfg.TokenPath == "" {
		cfg.TokenPath = "token.json"
	}
	if cfg.CredentialsPath == "" {
		cfg.CredentialsPath = "credentials.json"
	}
	return &Provider{cfg: cfg, base: base, logger: logger, OpenURL: OpenBrowser}
}

// oauthConfig resolves the OAuth client. cached may be nil. Missing or
// malformed credentials yield a *types.ConfigurationError.
func (p *Provider) oauthConfig(cached *storedToken) (*oauth2.Config, error) {
	id, secret := p.cfg.ClientID, p.cfg.ClientSecret
	switch {
	case id != "" && secret != "":
		return installedApp(id, secret, google.Endpoint.TokenURL), nil
	case id != "" || secret != "":
		return nil, &types.ConfigurationError{
			Setting: "client_id",
			Err:     errors.New("--client-id and --client-secret must be given together"),
		}
	}

	data, err := os.ReadFile(p.cfg.CredentialsPath)
	switch {
	case err == nil:
		cfg, err := google.ConfigFromJSON(data, Scopes...)
		if err != nil {
			return nil, &types.ConfigurationError{Setting: "credentials_path", Err: err}
		}
		return cfg, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, &types.ConfigurationError{Setting: "credentials_path", Err: err}
	}

	if cached != nil && cached.ClientID != "" {
		p.logger.Debug().Str("path", p.cfg.TokenPath).Msg("using OAuth client recorded in token cache")
		tokenURI := cached.TokenURI
		if tokenURI == "" {
			tokenURI = google.Endpoint.TokenURL
		}
		return installedApp(cached.ClientID, cached.ClientSecret, tokenURI), nil
	}

	return nil, &types.ConfigurationError{
		Setting: "credentials_path",
		Err: fmt.Errorf("%w: %s not found; download an OAuth client from the Google Cloud console "+
			"or pass --client-id and --client-secret", ErrNoCredentials, p.cfg.CredentialsPath),
	}
}

func installedApp(id, secret, tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   google.Endpoint.AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: "http://localhost",
		Scopes:      Scopes,
	}
}

// Client returns an HTTP client that authorizes every request. With no
// cached token it runs the browser login and caches the result. ctx must
// outlive the client because silent refreshes use it.
func (p *Provider) Client(ctx context.Context) (*http.Client, error) {
	cached, err := loadToken(p.cfg.TokenPath, p.logger)
	if err != nil {
		p.logger.Warn().Err(err).Msg("ignoring unreadable token cache")
		cached = nil
	}

	cfg, err := p.oauthConfig(cached)
	if err != nil {
		return nil, err
	}

	var tok *oauth2.Token
	if cached != nil {
		tok, err = cached.oauth2Token()
		if err != nil {
			p.logger.Warn().Err(err).Msg("ignoring token cache with bad expiry")
			tok = nil
		}
	}
	if tok != nil && tok.RefreshToken == "" && !tok.Valid() {
		p.logger.Info().Msg("cached token expired and cannot be refreshed")
		tok = nil
	}

	if tok == nil {
		p.logger.Info().Str("path", p.cfg.TokenPath).Msg("no cached token, starting browser login")
		tok, err = browserLogin(ctx, cfg, p.OpenURL, p.logger)
		if err != nil {
			return nil, &types.ConfigurationError{Setting: "oauth login", Err: err}
		}
		if err := saveToken(p.cfg.TokenPath, tok, cfg); err != nil {
			return nil, err
		}
	} else {
		p.logger.Debug().Str("path", p.cfg.TokenPath).Time("expiry", tok.Expiry).
			Bool("valid", tok.Valid()).Msg("loaded cached token")
	}

	src := &persistingSource{
		src:    cfg.TokenSource(ctx, tok),
		cfg:    cfg,
		path:   p.cfg.TokenPath,
		last:   tok.AccessToken,
		logger: p.logger,
	}
	return &http.Client{Transport: &oauth2.Transport{Source: src, Base: p.base}}, nil
}

// persistingSource re-saves the token cache whenever the wrapped source
// hands out a new access token.
type persistingSource struct {
	src    oauth2.TokenSource
	cfg    *oauth2.Config
	path   string
	logger *log.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		s.logger.Warn().Err(err).Msg("token acquisition failed")
		return nil, fmt.Errorf("auth: obtaining token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.last {
		return tok, nil
	}
	s.last = tok.AccessToken

	if err := saveToken(s.path, tok, s.cfg); err != nil {
		s.logger.Warn().Str("path", s.path).Err(err).Msg("failed to persist refreshed token")
		return tok, nil
	}
	s.logger.Info().Str("path", s.path).Time("expiry", tok.Expiry).Msg("persisted refreshed token")
	return tok, nil
}
