// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package walk discovers Google Drive placeholder files under a source root.
//
// Traversal is depth-first and deterministic: entries of each directory are
// visited in lexicographic order and subdirectories are descended into where
// they sort. Directories are keyed by their symlink-resolved path so a link
// cycle is entered at most once.
package walk

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/phuslu/log"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Filter restricts which placeholder kinds are emitted.
type Filter struct {
	GdocOnly   bool
	GsheetOnly bool
}

// Allows reports whether files of kind k pass the filter.
func (f Filter) Allows(k types.Kind) bool {
	switch {
	case f.GdocOnly:
		return k == types.KindDoc
	case f.GsheetOnly:
		return k == types.KindSheet
	}
	return true
}

// Error reports a directory that could not be read.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reading directory %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PlaceholderError reports a .gdoc/.gsheet file whose contents could not be
// turned into a Drive id.
type PlaceholderError struct {
	Path string
	Err  error
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("invalid placeholder %s: %v", e.Path, e.Err)
}

func (e *PlaceholderError) Unwrap() error { return e.Err }

// Walker enumerates placeholders below a root directory.
type Walker struct {
	root   string
	filter Filter
	logger *log.Logger
}

// New returns a Walker rooted at root. The root must be an existing
// directory.
func New(root string, filter Filter, logger *log.Logger) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &Walker{root: abs, filter: filter, logger: logger}, nil
}

// Root returns the absolute source root.
func (w *Walker) Root() string { return w.root }

// Walk returns a lazy sequence of placeholders. Each call starts a fresh
// traversal. A non-nil error accompanies a SourceFile that carries at least
// its path (and kind, for placeholder errors); the sequence continues after
// it. Iteration stops early when ctx is done.
func (w *Walker) Walk(ctx context.Context) iter.Seq2[types.SourceFile, error] {
	return func(yield func(types.SourceFile, error) bool) {
		visited := make(map[string]bool)
		w.walkDir(ctx, w.root, visited, yield)
	}
}

// walkDir visits dir and returns false once the consumer stops or ctx ends.
func (w *Walker) walkDir(ctx context.Context, dir string, visited map[string]bool, yield func(types.SourceFile, error) bool) bool {
	real, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return yield(types.SourceFile{AbsPath: dir, RelPath: w.rel(dir)}, &Error{Path: w.rel(dir), Err: err})
	}
	if visited[real] {
		w.logger.Debug().Str("path", w.rel(dir)).Str("target", real).Msg("directory already visited, skipping")
		return true
	}
	visited[real] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		return yield(types.SourceFile{AbsPath: dir, RelPath: w.rel(dir)}, &Error{Path: w.rel(dir), Err: err})
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return false
		}

		path := filepath.Join(dir, entry.Name())
		info, err := statEntry(path, entry)
		if err != nil {
			w.logger.Warn().Str("path", w.rel(path)).Err(err).Msg("cannot stat entry, skipping")
			continue
		}

		if info.IsDir() {
			if !w.walkDir(ctx, path, visited, yield) {
				return false
			}
			continue
		}

		kind, ok := types.KindFromPath(entry.Name())
		if !ok || !w.filter.Allows(kind) {
			continue
		}

		sf := types.SourceFile{AbsPath: path, RelPath: w.rel(path), Kind: kind}
		id, link, err := readPlaceholder(path)
		sf.DriveID, sf.URL = id, link
		if err != nil {
			if !yield(sf, &PlaceholderError{Path: sf.RelPath, Err: err}) {
				return false
			}
			continue
		}
		if !yield(sf, nil) {
			return false
		}
	}
	return true
}

// statEntry follows symlinks so linked directories are descended into and
// linked placeholders are read.
func statEntry(path string, entry os.DirEntry) (os.FileInfo, error) {
	if entry.Type()&os.ModeSymlink != 0 {
		return os.Stat(path)
	}
	return entry.Info()
}

func (w *Walker) rel(path string) string {
	r, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}
