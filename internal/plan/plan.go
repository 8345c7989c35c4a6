// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package plan decides what the pipeline does with each discovered
// placeholder. Planning has no side effects; the only input from the
// filesystem is an OutputIndex answering "does this output exist?".
package plan

import (
	"os"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

const (
	ReasonConvert      = "output missing"
	ReasonOverwrite    = "overwriting existing output"
	ReasonOutputExists = "output exists"
	ReasonWouldConvert = "would convert"
	ReasonWouldSkip    = "would skip: output exists"
	ReasonWouldReplace = "would convert: overwriting existing output"
)

// Flags are the run switches that influence decisions.
type Flags struct {
	DryRun       bool
	SkipExisting bool
}

// OutputIndex answers whether a converted artifact already exists. Content
// is never inspected: a zero-byte or corrupt file still counts as existing.
type OutputIndex interface {
	Exists(path string) bool
}

// StatIndex is the filesystem-backed OutputIndex.
type StatIndex struct{}

// Exists reports whether anything is present at path.
func (StatIndex) Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Plan returns the decision for sf.
func Plan(sf types.SourceFile, outputs OutputIndex, flags Flags) types.Decision {
	out := sf.OutputPath()
	d := types.Decision{Source: sf, OutputPath: out}
	exists := outputs.Exists(out)

	switch {
	case flags.DryRun:
		d.Action = types.ActionPreview
		switch {
		case exists && flags.SkipExisting:
			d.Reason = ReasonWouldSkip
		case exists:
			d.Reason = ReasonWouldReplace
		default:
			d.Reason = ReasonWouldConvert
		}
	case exists && flags.SkipExisting:
		d.Action = types.ActionSkip
		d.Reason = ReasonOutputExists
	default:
		d.Action = types.ActionConvert
		d.Reason = ReasonConvert
		if exists {
			d.Reason = ReasonOverwrite
		}
	}
	return d
}
