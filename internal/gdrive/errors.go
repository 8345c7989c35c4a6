// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package gdrive

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// Sentinel errors for export failure classification.
// Use errors.Is(err, gdrive.ErrNotFound) to check.
var (
	ErrUnauthorized = errors.New("gdrive: unauthorized")
	ErrForbidden    = errors.New("gdrive: permission denied")
	ErrNotFound     = errors.New("gdrive: file not found")
	ErrThrottled    = errors.New("gdrive: rate limited")
	ErrServerError  = errors.New("gdrive: server error")
	ErrNetwork      = errors.New("gdrive: network error")
)

// ExportError wraps a sentinel with the file, format, and the API's message.
type ExportError struct {
	FileID     string
	MimeType   string
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
	Cause      error // the client error, so context errors stay visible
}

func (e *ExportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gdrive: exporting %s as %s: HTTP %d: %s", e.FileID, e.MimeType, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gdrive: exporting %s as %s: %s", e.FileID, e.MimeType, e.Message)
}

func (e *ExportError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}

// rateLimitReasons are the 403 reasons Drive uses for quota exhaustion.
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":        true,
	"userRateLimitExceeded":    true,
	"sharingRateLimitExceeded": true,
}

// classify converts an error from the Drive client into an *ExportError.
func classify(fileID, mimeType string, err error) *ExportError {
	ee := &ExportError{FileID: fileID, MimeType: mimeType, Message: err.Error(), Err: ErrNetwork, Cause: err}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		ee.Err = ErrUnauthorized
		if rerr.Response != nil {
			ee.StatusCode = rerr.Response.StatusCode
		}
		return ee
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return ee
	}

	ee.StatusCode = gerr.Code
	if gerr.Message != "" {
		ee.Message = gerr.Message
	}

	switch {
	case gerr.Code == http.StatusUnauthorized:
		ee.Err = ErrUnauthorized
	case gerr.Code == http.StatusTooManyRequests:
		ee.Err = ErrThrottled
	case gerr.Code == http.StatusForbidden && hasRateLimitReason(gerr):
		ee.Err = ErrThrottled
	case gerr.Code == http.StatusForbidden:
		ee.Err = ErrForbidden
	case gerr.Code == http.StatusNotFound:
		ee.Err = ErrNotFound
	case gerr.Code >= http.StatusInternalServerError:
		ee.Err = ErrServerError
	default:
		ee.Err = fmt.Errorf("gdrive: HTTP %d", gerr.Code)
	}
	return ee
}

func hasRateLimitReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if rateLimitReasons[item.Reason] {
			return true
		}
	}
	return false
}
