// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"strings"
)

// Kind identifies the Google Drive file type a placeholder stands in for.
type Kind string

const (
	KindDoc   Kind = "gdoc"
	KindSheet Kind = "gsheet"
)

// Extension returns the placeholder file extension for the kind.
func (k Kind) Extension() string {
	return "." + string(k)
}

// OutputExtension returns the extension of the converted artifact.
func (k Kind) OutputExtension() string {
	if k == KindSheet {
		return ".csv"
	}
	return ".md"
}

// Label is the human-readable name used in logs and summaries.
func (k Kind) Label() string {
	if k == KindSheet {
		return "Google Sheet"
	}
	return "Google Doc"
}

// KindFromPath maps a placeholder filename to its Kind. The second return
// value is false for any other extension.
func KindFromPath(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gdoc":
		return KindDoc, true
	case ".gsheet":
		return KindSheet, true
	}
	return "", false
}

// SourceFile is a placeholder discovered under the source root.
type SourceFile struct {
	// AbsPath is the absolute filesystem path of the placeholder.
	AbsPath string `json:"abs_path" yaml:"abs_path"`

	// RelPath is the placeholder path relative to the source root, using
	// forward slashes.
	RelPath string `json:"rel_path" yaml:"rel_path"`

	// Kind is the Drive file type.
	Kind Kind `json:"kind" yaml:"kind"`

	// DriveID is the Drive file id stored in the placeholder.
	DriveID string `json:"drive_id" yaml:"drive_id"`

	// URL is the link stored in the placeholder, if any.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Name is the placeholder filename without its extension. It doubles as the
// document title and the output basename.
func (s SourceFile) Name() string {
	base := filepath.Base(s.AbsPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns the converted artifact path: same directory, extension
// replaced by the kind's output extension.
func (s SourceFile) OutputPath() string {
	return filepath.Join(filepath.Dir(s.AbsPath), s.Name()+s.Kind.OutputExtension())
}

// CanonicalURL returns the Drive web URL for the file.
func (s SourceFile) CanonicalURL() string {
	if s.Kind == KindSheet {
		return "https://docs.google.com/spreadsheets/d/" + s.DriveID + "/edit"
	}
	return "https://docs.google.com/document/d/" + s.DriveID + "/edit"
}
