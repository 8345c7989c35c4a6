// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gdrive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/mudcube/gdoc-to-md/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := New(context.Background(), ts.Client(), time.Second, logging.Discard(), option.WithEndpoint(ts.URL+"/"))
	require.NoError(t, err)
	return c
}

func apiError(w http.ResponseWriter, code int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q,"errors":[{"domain":"global","reason":%q,"message":%q}]}}`,
		code, message, reason, message)
}

func TestExport_Success(t *testing.T) {
	var gotPath, gotMime string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMime = r.URL.Query().Get("mimeType")
		_, _ = w.Write([]byte("a,b\n1,2\n"))
	})

	var buf bytes.Buffer
	n, err := c.Export(context.Background(), "sheet123", MimeCSV, &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(8), n)
	assert.Equal(t, "a,b\n1,2\n", buf.String())
	assert.Equal(t, "/files/sheet123/export", gotPath)
	assert.Equal(t, MimeCSV, gotMime)
}

func TestExport_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		reason string
		want   error
	}{
		{name: "unauthorized", code: http.StatusUnauthorized, reason: "authError", want: ErrUnauthorized},
		{name: "forbidden", code: http.StatusForbidden, reason: "insufficientFilePermissions", want: ErrForbidden},
		{name: "rate limit as 403", code: http.StatusForbidden, reason: "userRateLimitExceeded", want: ErrThrottled},
		{name: "too many requests", code: http.StatusTooManyRequests, reason: "rateLimitExceeded", want: ErrThrottled},
		{name: "not found", code: http.StatusNotFound, reason: "notFound", want: ErrNotFound},
		{name: "server error", code: http.StatusServiceUnavailable, reason: "backendError", want: ErrServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				apiError(w, tt.code, tt.reason, "nope")
			})

			var buf bytes.Buffer
			_, err := c.Export(context.Background(), "doc1", MimeDocx, &buf)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var ee *ExportError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.code, ee.StatusCode)
			assert.Equal(t, "doc1", ee.FileID)
			assert.Contains(t, ee.Error(), "nope")
			assert.Zero(t, buf.Len())
		})
	}
}

func TestExport_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()

	c, err := New(context.Background(), http.DefaultClient, time.Second, logging.Discard(), option.WithEndpoint(url+"/"))
	require.NoError(t, err)

	_, err = c.Export(context.Background(), "doc1", MimeDocx, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestExport_Canceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("late"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Export(ctx, "doc1", MimeDocx, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestClassify_RefreshFailure(t *testing.T) {
	rerr := &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode: "invalid_grant",
	}
	ee := classify("doc1", MimeDocx, fmt.Errorf("auth: obtaining token: %w", rerr))

	assert.ErrorIs(t, ee, ErrUnauthorized)
	assert.Equal(t, http.StatusBadRequest, ee.StatusCode)
}
