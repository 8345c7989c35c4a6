// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Action is the planner's verdict for a single SourceFile.
type Action string

const (
	ActionConvert Action = "convert"
	ActionSkip    Action = "skip"
	ActionPreview Action = "preview"
)

// Decision pairs a SourceFile with the action the pipeline will take.
type Decision struct {
	Source     SourceFile
	Action     Action
	Reason     string
	OutputPath string
}

// Status is the terminal state of one SourceFile in a run.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailure   Status = "failure"
	StatusSkipped   Status = "skipped"
	StatusPreviewed Status = "previewed"
)

// FailureKind classifies why a conversion failed.
type FailureKind string

const (
	FailureNone                 FailureKind = ""
	FailurePlaceholder          FailureKind = "placeholder"
	FailureExport               FailureKind = "export"
	FailureConverterUnavailable FailureKind = "converter unavailable"
	FailureConversion           FailureKind = "conversion"
	FailureWrite                FailureKind = "write"
	FailureWalk                 FailureKind = "walk"
	FailureCanceled             FailureKind = "canceled"
	FailureCollision            FailureKind = "output collision"
)

// Result is the outcome of processing one SourceFile.
type Result struct {
	Source     SourceFile
	Status     Status
	Reason     string
	OutputPath string
	Failure    FailureKind
	Err        error
	Bytes      int64
	Duration   time.Duration
}

// Failed builds a failure Result for src.
func Failed(src SourceFile, kind FailureKind, err error, d time.Duration) Result {
	return Result{
		Source:   src,
		Status:   StatusFailure,
		Failure:  kind,
		Err:      err,
		Reason:   err.Error(),
		Duration: d,
	}
}

// Frontmatter is the metadata block prepended to converted Markdown.
type Frontmatter struct {
	Title       string
	SourceDocID string
	SourceURL   string
	ConvertedOn time.Time

	// DocxPath is set only when the intermediate DOCX is kept; it is
	// relative to the Markdown file.
	DocxPath string
}
