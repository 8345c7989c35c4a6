// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report collects per-file results, prints a status line for each
// as it arrives, and renders the end-of-run summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/phuslu/log"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// Reporter accumulates Results in arrival order. It is safe for concurrent
// use.
type Reporter struct {
	w      io.Writer
	logger *log.Logger
	runID  string
	dryRun bool
	start  time.Time

	mu          sync.Mutex
	results     []types.Result
	warned      map[types.FailureKind]bool
	interrupted bool
}

// New returns a Reporter that prints status lines to w.
func New(w io.Writer, dryRun bool, logger *log.Logger) *Reporter {
	return &Reporter{
		w:      w,
		logger: logger,
		runID:  uuid.NewString(),
		dryRun: dryRun,
		start:  time.Now(),
		warned: make(map[types.FailureKind]bool),
	}
}

// RunID identifies this run in logs and the JSON summary.
func (r *Reporter) RunID() string { return r.runID }

// Add records res and prints its status line.
func (r *Reporter) Add(res types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, res)

	if res.Status == types.StatusFailure && res.Failure == types.FailureConverterUnavailable && !r.warned[res.Failure] {
		r.warned[res.Failure] = true
		fmt.Fprintf(r.w, "warning: docs converter unavailable, Google Docs cannot be converted (%v)\n", res.Err)
	}
	r.printLine(res)

	r.logger.Debug().Str("run_id", r.runID).Str("file", res.Source.RelPath).Str("status", string(res.Status)).
		Str("failure", string(res.Failure)).Dur("duration", res.Duration).Msg("result")
}

func (r *Reporter) printLine(res types.Result) {
	name := res.Source.RelPath
	switch res.Status {
	case types.StatusSuccess:
		fmt.Fprintf(r.w, "converted: %s -> %s (%s)\n", name, outputRel(res), humanize.Bytes(uint64(res.Bytes)))
	case types.StatusSkipped:
		fmt.Fprintf(r.w, "skipped: %s (%s)\n", name, res.Reason)
	case types.StatusPreviewed:
		fmt.Fprintf(r.w, "would convert: %s -> %s (%s)\n", name, outputRel(res), res.Reason)
	case types.StatusFailure:
		fmt.Fprintf(r.w, "failed:  %s (%s)\n", name, failureReason(res))
	}
}

// outputRel names the output relative to the source root.
func outputRel(res types.Result) string {
	if res.OutputPath == "" {
		return ""
	}
	return path.Join(path.Dir(res.Source.RelPath), filepath.Base(res.OutputPath))
}

// failureReason keeps the converter-unavailable reason short; the full
// error is printed once when it first occurs.
func failureReason(res types.Result) string {
	if res.Failure == types.FailureConverterUnavailable {
		return string(res.Failure)
	}
	if res.Failure == types.FailureNone {
		return res.Reason
	}
	return string(res.Failure) + ": " + res.Reason
}

// MarkInterrupted flags the run as cut short by a signal.
func (r *Reporter) MarkInterrupted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupted = true
}

// Results returns a copy of the recorded results in arrival order.
func (r *Reporter) Results() []types.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Result(nil), r.results...)
}

// Summary aggregates everything recorded so far.
func (r *Reporter) Summary() types.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := types.RunSummary{
		RunID:       r.runID,
		DryRun:      r.dryRun,
		Interrupted: r.interrupted,
		ByKind:      map[types.Kind]*types.Counts{},
		Failures:    []types.FailureEntry{},
		Elapsed:     time.Since(r.start),
	}
	for _, res := range r.results {
		s.Total.Add(res.Status)
		if k := res.Source.Kind; k != "" {
			if s.ByKind[k] == nil {
				s.ByKind[k] = &types.Counts{}
			}
			s.ByKind[k].Add(res.Status)
		}
		if res.Status == types.StatusFailure {
			s.Failures = append(s.Failures, types.FailureEntry{
				Path:   res.Source.RelPath,
				Kind:   res.Failure,
				Reason: res.Reason,
			})
		}
	}
	return s
}

// HasFailures reports whether any recorded result is a failure.
func (r *Reporter) HasFailures() bool {
	return r.Summary().HasFailures()
}

// WriteJSON writes the summary as indented JSON.
func (r *Reporter) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Summary()); err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return nil
}
