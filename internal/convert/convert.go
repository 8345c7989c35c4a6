// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns planned placeholders into local artifacts: Google
// Docs become Markdown with YAML frontmatter, Google Sheets become CSV.
// Drive export and DOCX conversion are injected so both can be faked.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mudcube/gdoc-to-md/internal/gdrive"
	"github.com/mudcube/gdoc-to-md/internal/pandoc"
	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Exporter downloads a Drive file rendered in mimeType. *gdrive.Client
// implements it.
type Exporter interface {
	Export(ctx context.Context, fileID, mimeType string, w io.Writer) (int64, error)
}

// MarkdownConverter turns the Drive export at srcPath into Markdown at
// mdPath. The export is DOCX unless the converter implements
// InputFormatter. Implemented by *pandoc.Pandoc, *pandoc.Container and
// *htmlmd.Converter.
type MarkdownConverter interface {
	Convert(ctx context.Context, srcPath, mdPath string) error
}

// Format is the Drive export a MarkdownConverter reads.
type Format struct {
	MimeType  string
	Extension string
}

// Export formats for Docs.
var (
	DOCX = Format{MimeType: gdrive.MimeDocx, Extension: ".docx"}
	HTML = Format{MimeType: gdrive.MimeHTML, Extension: ".html"}
)

// InputFormatter is implemented by converters that read something other
// than DOCX.
type InputFormatter interface {
	InputFormat() Format
}

func inputFormat(m MarkdownConverter) Format {
	if f, ok := m.(InputFormatter); ok {
		return f.InputFormat()
	}
	return DOCX
}

// Converter carries out one CONVERT decision. Every outcome, including
// failure, is reported in the returned Result; Convert never panics or
// returns an error for a single bad file.
type Converter interface {
	Convert(ctx context.Context, d types.Decision) types.Result
}

// Set dispatches a decision to the converter for its kind.
type Set struct {
	Docs   Converter
	Sheets Converter
}

// Convert routes d by source kind.
func (s Set) Convert(ctx context.Context, d types.Decision) types.Result {
	if d.Source.Kind == types.KindSheet {
		return s.Sheets.Convert(ctx, d)
	}
	return s.Docs.Convert(ctx, d)
}

// failureKind classifies err raised during stage. Cancellation and a
// missing converter override the stage.
func failureKind(err error, stage types.FailureKind) types.FailureKind {
	switch {
	case errors.Is(err, context.Canceled):
		return types.FailureCanceled
	case errors.Is(err, pandoc.ErrUnavailable):
		return types.FailureConverterUnavailable
	}
	return stage
}

// WriteError is a local filesystem failure while producing an artifact.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// tempSibling creates an empty hidden temp file next to path so the final
// rename stays on one filesystem.
func tempSibling(path, ext string) (*os.File, error) {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	f, err := os.CreateTemp(dir, "."+base+"-*"+ext)
	if err != nil {
		return nil, &WriteError{Path: path, Op: "creating temp file for", Err: err}
	}
	return f, nil
}

// commit closes tmp and renames it over path. On any error tmp is removed
// and path is left untouched.
func commit(tmp *os.File, path string) error {
	tmpPath := tmp.Name()
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &WriteError{Path: path, Op: "syncing", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: path, Op: "closing", Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: path, Op: "setting permissions on", Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &WriteError{Path: path, Op: "renaming onto", Err: err}
	}
	return nil
}

// writeAtomic writes data to path through a temp sibling and rename, so
// readers never see a partial file.
func writeAtomic(path string, data []byte) error {
	tmp, err := tempSibling(path, ".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &WriteError{Path: path, Op: "writing", Err: err}
	}
	return commit(tmp, path)
}
