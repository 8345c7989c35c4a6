// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"

	"github.com/mudcube/gdoc-to-md/internal/gdrive"
	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Sheets converts Google Sheets by exporting them straight to CSV. Drive
// exports only the first tab; later tabs are not represented.
type Sheets struct {
	exporter Exporter
	logger   *log.Logger
}

// NewSheets returns a Sheets converter.
func NewSheets(exporter Exporter, logger *log.Logger) *Sheets {
	return &Sheets{exporter: exporter, logger: logger}
}

// Convert carries out one Sheet decision. On failure nothing is written.
func (c *Sheets) Convert(ctx context.Context, d types.Decision) types.Result {
	start := time.Now()
	src := d.Source
	fail := func(stage types.FailureKind, err error) types.Result {
		r := types.Failed(src, failureKind(err, stage), err, time.Since(start))
		r.OutputPath = d.OutputPath
		c.logger.Warn().Str("file", src.RelPath).Str("kind", string(r.Failure)).Err(err).Msg("sheet export failed")
		return r
	}

	tmp, err := tempSibling(d.OutputPath, ".csv")
	if err != nil {
		return fail(types.FailureWrite, err)
	}

	n, err := c.exporter.Export(ctx, src.DriveID, gdrive.MimeCSV, tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fail(types.FailureExport, err)
	}
	if err := commit(tmp, d.OutputPath); err != nil {
		return fail(types.FailureWrite, err)
	}

	c.logger.Debug().Str("file", src.RelPath).Str("size", humanize.Bytes(uint64(n))).Msg("exported csv")
	return types.Result{
		Source:     src,
		Status:     types.StatusSuccess,
		Reason:     d.Reason,
		OutputPath: d.OutputPath,
		Bytes:      n,
		Duration:   time.Since(start),
	}
}
