// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/phuslu/log"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// IntermediatesDir holds kept DOCX exports, inside each output directory.
const IntermediatesDir = "intermediates"

// DocsOptions configures a Docs converter.
type DocsOptions struct {
	// ConvertedOn is stamped into every document of the run.
	ConvertedOn time.Time

	// KeepIntermediates moves the Drive export to intermediates/ beside
	// the output. A kept DOCX is recorded as docx_path.
	KeepIntermediates bool

	// Unavailable, when set, fails every Doc with this error before any
	// export. The pipeline sets it when the converter probe fails.
	Unavailable error
}

// Docs converts Google Docs: Drive export (DOCX, or whatever the
// MarkdownConverter reads), conversion to Markdown, then frontmatter
// injection and an atomic write.
type Docs struct {
	exporter Exporter
	markdown MarkdownConverter
	opts     DocsOptions
	logger   *log.Logger
}

// NewDocs returns a Docs converter.
func NewDocs(exporter Exporter, markdown MarkdownConverter, opts DocsOptions, logger *log.Logger) *Docs {
	return &Docs{exporter: exporter, markdown: markdown, opts: opts, logger: logger}
}

// Convert carries out one Doc decision.
func (c *Docs) Convert(ctx context.Context, d types.Decision) types.Result {
	start := time.Now()
	src := d.Source
	fail := func(stage types.FailureKind, err error) types.Result {
		r := types.Failed(src, failureKind(err, stage), err, time.Since(start))
		r.OutputPath = d.OutputPath
		// A missing converter fails every Doc; it is warned about once
		// per run by the caller and the reporter.
		ev := c.logger.Warn()
		if r.Failure == types.FailureConverterUnavailable {
			ev = c.logger.Debug()
		}
		ev.Str("file", src.RelPath).Str("kind", string(r.Failure)).Err(err).Msg("doc conversion failed")
		return r
	}

	if c.opts.Unavailable != nil {
		return fail(types.FailureConverterUnavailable, c.opts.Unavailable)
	}

	format := inputFormat(c.markdown)
	export, err := tempSibling(d.OutputPath, format.Extension)
	if err != nil {
		return fail(types.FailureWrite, err)
	}
	exportPath := export.Name()
	kept := false
	defer func() {
		if kept {
			return
		}
		if err := os.Remove(exportPath); err != nil && !os.IsNotExist(err) {
			c.logger.Warn().Str("path", exportPath).Err(err).Msg("could not remove intermediate export")
		}
	}()

	n, err := c.exporter.Export(ctx, src.DriveID, format.MimeType, export)
	if err != nil {
		export.Close()
		return fail(types.FailureExport, err)
	}
	if err := export.Close(); err != nil {
		return fail(types.FailureWrite, &WriteError{Path: exportPath, Op: "closing", Err: err})
	}
	c.logger.Debug().Str("file", src.RelPath).Str("format", format.Extension).
		Str("size", humanize.Bytes(uint64(n))).Msg("exported doc")

	mdPath := strings.TrimSuffix(exportPath, format.Extension) + ".md"
	defer os.Remove(mdPath)
	if err := c.markdown.Convert(ctx, exportPath, mdPath); err != nil {
		return fail(types.FailureConversion, err)
	}
	body, err := os.ReadFile(mdPath)
	if err != nil {
		return fail(types.FailureConversion, &WriteError{Path: mdPath, Op: "reading", Err: err})
	}

	fm := NewFrontmatter(src, c.opts.ConvertedOn)
	if c.opts.KeepIntermediates {
		rel, err := c.keep(exportPath, d.OutputPath, src.Name()+format.Extension)
		if err != nil {
			return fail(types.FailureWrite, err)
		}
		kept = true
		if format == DOCX {
			fm.DocxPath = rel
		}
	}

	content, err := renderDocument(fm, body)
	if err != nil {
		return fail(types.FailureWrite, &WriteError{Path: d.OutputPath, Op: "rendering", Err: err})
	}
	if err := writeAtomic(d.OutputPath, content); err != nil {
		return fail(types.FailureWrite, err)
	}

	return types.Result{
		Source:     src,
		Status:     types.StatusSuccess,
		Reason:     d.Reason,
		OutputPath: d.OutputPath,
		Bytes:      int64(len(content)),
		Duration:   time.Since(start),
	}
}

// keep moves the export at exportPath to intermediates/<filename> beside
// outputPath and returns that path relative to the output.
func (c *Docs) keep(exportPath, outputPath, filename string) (string, error) {
	dir := filepath.Join(filepath.Dir(outputPath), IntermediatesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &WriteError{Path: dir, Op: "creating", Err: err}
	}
	final := filepath.Join(dir, filename)
	if err := os.Chmod(exportPath, 0o644); err != nil {
		return "", &WriteError{Path: exportPath, Op: "setting permissions on", Err: err}
	}
	if err := os.Rename(exportPath, final); err != nil {
		return "", &WriteError{Path: final, Op: "renaming onto", Err: err}
	}
	c.logger.Debug().Str("path", final).Msg("kept intermediate export")
	return IntermediatesDir + "/" + filename, nil
}
