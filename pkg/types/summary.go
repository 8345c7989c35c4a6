// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Counts tallies results by status.
type Counts struct {
	Found     int `json:"found" yaml:"found"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Previewed int `json:"previewed" yaml:"previewed"`
	Failed    int `json:"failed" yaml:"failed"`
}

// Add counts one result.
func (c *Counts) Add(s Status) {
	c.Found++
	switch s {
	case StatusSuccess:
		c.Succeeded++
	case StatusSkipped:
		c.Skipped++
	case StatusPreviewed:
		c.Previewed++
	case StatusFailure:
		c.Failed++
	}
}

// FailureEntry is one failed file in the summary.
type FailureEntry struct {
	Path   string      `json:"path" yaml:"path"`
	Kind   FailureKind `json:"kind" yaml:"kind"`
	Reason string      `json:"reason" yaml:"reason"`
}

// RunSummary aggregates every Result of a run.
type RunSummary struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	DryRun      bool             `json:"dry_run" yaml:"dry_run"`
	Interrupted bool             `json:"interrupted" yaml:"interrupted"`
	Total       Counts           `json:"total" yaml:"total"`
	ByKind      map[Kind]*Counts `json:"by_kind" yaml:"by_kind"`
	Failures    []FailureEntry   `json:"failures" yaml:"failures"`
	Elapsed     time.Duration    `json:"elapsed_ns" yaml:"elapsed"`
}

// HasFailures reports whether any file failed.
func (s RunSummary) HasFailures() bool {
	return s.Total.Failed > 0
}
