// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP transport shared by Drive calls.
package httputil

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// maxBackoff caps a single wait, including server-provided Retry-After.
const maxBackoff = 2 * time.Minute

// Transport is an http.RoundTripper that paces requests through a token
// bucket and, when MaxRetries > 0, retries HTTP 429 (Too Many Requests)
// with exponential backoff: RetryBaseDelay, 2x, 4x, ... or the server's
// Retry-After when present.
//
// With MaxRetries == 0 a 429 is returned to the caller immediately. After
// exhausting retries the last 429 response is returned so the caller can
// classify it. Requests with a body are retried only when GetBody is set.
type Transport struct {
	// Base is the underlying transport (default http.DefaultTransport).
	Base http.RoundTripper

	// Limiter paces every attempt; nil disables pacing.
	Limiter *rate.Limiter

	MaxRetries int
	UserAgent  string
	Logger     *log.Logger
}

// NewTransport returns a Transport allowing rps requests per second (burst
// of the same size, minimum 1). rps <= 0 disables pacing.
func NewTransport(rps float64, maxRetries int, userAgent string, logger *log.Logger) *Transport {
	t := &Transport{MaxRetries: maxRetries, UserAgent: userAgent, Logger: logger}
	if rps > 0 {
		t.Limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(math.Ceil(rps))))
	}
	return t
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for attempt := 0; ; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		r := req.Clone(ctx)
		if attempt > 0 && req.Body != nil && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			r.Body = body
		}
		if t.UserAgent != "" && r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", t.UserAgent)
		}

		resp, err := t.base().RoundTrip(r)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Exhausted retries, or a body we cannot replay.
		if attempt >= t.MaxRetries || (req.Body != nil && req.GetBody == nil) {
			return resp, nil
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := retryBackoff(resp, attempt)
		if t.Logger != nil {
			t.Logger.Warn().
				Str("url", req.URL.Path).
				Int("attempt", attempt+1).
				Int("max_retries", t.MaxRetries).
				Dur("backoff", backoff).
				Msg("rate limited, retrying")
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryBackoff honours Retry-After (in seconds) and otherwise doubles
// RetryBaseDelay per attempt.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			backoff = time.Duration(seconds) * time.Second
		}
	}
	return min(backoff, maxBackoff)
}
