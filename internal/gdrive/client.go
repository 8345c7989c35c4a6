// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gdrive is the Drive handle: an authenticated client that exports
// Google Docs and Sheets through the Drive v3 API.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Export formats.
const (
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeHTML = "text/html"
	MimeCSV  = "text/csv"
)

const defaultExportTimeout = 60 * time.Second

// Client exports Drive files. It is safe for concurrent use.
type Client struct {
	svc     *drive.Service
	timeout time.Duration
	logger  *log.Logger
}

// New builds a Client on top of httpClient, which must already attach OAuth
// credentials (see auth.Provider). timeout bounds each export including the
// body transfer; zero selects 60s. Extra options are passed to the Drive
// service; tests use option.WithEndpoint.
func New(ctx context.Context, httpClient *http.Client, timeout time.Duration, logger *log.Logger, opts ...option.ClientOption) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultExportTimeout
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: creating drive service: %w", err)
	}
	return &Client{svc: svc, timeout: timeout, logger: logger}, nil
}

// Export streams fileID converted to mimeType into w and returns the number
// of bytes written. Errors are *ExportError values classified by sentinel.
// Drive exports only the first sheet of a spreadsheet as CSV.
func (c *Client) Export(ctx context.Context, fileID, mimeType string, w io.Writer) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug().Str("file_id", fileID).Str("mime_type", mimeType).Msg("exporting file")

	resp, err := c.svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	if err != nil {
		ee := classify(fileID, mimeType, err)
		c.logger.Warn().Str("file_id", fileID).Int("status", ee.StatusCode).Err(ee).Msg("export failed")
		return 0, ee
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		c.logger.Error().Str("file_id", fileID).Int64("bytes_before_error", n).Err(err).Msg("streaming export failed")
		return n, classify(fileID, mimeType, fmt.Errorf("streaming export: %w", err))
	}

	c.logger.Debug().Str("file_id", fileID).Str("size", humanize.Bytes(uint64(n))).Msg("export complete")
	return n, nil
}
