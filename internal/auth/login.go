// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/oauth2"
)

const (
	stateTokenBytes = 16
	shutdownTimeout = 5 * time.Second
)

type callbackResult struct {
	code string
	err  error
}

// browserLogin runs the installed-app flow: authorization code with PKCE,
// delivered to a loopback server on a random port. openURL launches the
// browser; when it fails the URL is printed to stderr instead.
func browserLogin(ctx context.Context, cfg *oauth2.Config, openURL func(string) error, logger *log.Logger) (*oauth2.Token, error) {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("auth: binding loopback listener: %w", err)
	}
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, errors.New("auth: listener address is not TCP")
	}

	state, err := generateState()
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("auth: generating state token: %w", err)
	}

	resultCh := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		handleCallback(w, r, state, resultCh)
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout}

	go func() {
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deliver(resultCh, callbackResult{err: fmt.Errorf("auth: callback server: %w", serveErr)})
		}
	}()
	defer shutdown(srv, logger)

	// Google accepts any port on a loopback IP redirect.
	login := *cfg
	login.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", tcpAddr.Port)

	verifier := oauth2.GenerateVerifier()
	authURL := login.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	logger.Info().Int("port", tcpAddr.Port).Msg("opening browser for authorization")
	if openErr := openURL(authURL); openErr != nil {
		logger.Warn().Err(openErr).Msg("could not open browser, printing URL")
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}

	var code string
	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		code = res.code
	case <-ctx.Done():
		return nil, fmt.Errorf("auth: browser login canceled: %w", ctx.Err())
	}

	tok, err := login.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("auth: token exchange failed: %w", err)
	}
	logger.Info().Time("expiry", tok.Expiry).Msg("browser login successful")
	return tok, nil
}

func handleCallback(w http.ResponseWriter, r *http.Request, state string, resultCh chan<- callbackResult) {
	q := r.URL.Query()
	if q.Get("state") != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: errors.New("auth: OAuth2 state mismatch")})
		return
	}
	if errParam := q.Get("error"); errParam != "" {
		http.Error(w, "Authorization failed: "+errParam, http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: fmt.Errorf("auth: authorization failed: %s", errParam)})
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		deliver(resultCh, callbackResult{err: errors.New("auth: callback missing authorization code")})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<html><body><h1>Authentication successful</h1>"+
		"<p>You can close this window and return to the terminal.</p></body></html>")
	deliver(resultCh, callbackResult{code: code})
}

// deliver keeps the first result; stray requests such as favicon fetches
// must not block the handler.
func deliver(ch chan<- callbackResult, res callbackResult) {
	select {
	case ch <- res:
	default:
	}
}

func shutdown(srv *http.Server, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("callback server shutdown error")
	}
}

func generateState() (string, error) {
	b := make([]byte, stateTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// OpenBrowser opens url in the user's default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
