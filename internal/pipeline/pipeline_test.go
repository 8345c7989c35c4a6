// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/mudcube/gdoc-to-md/internal/convert"
	"github.com/mudcube/gdoc-to-md/internal/gdrive"
	"github.com/mudcube/gdoc-to-md/internal/logging"
	"github.com/mudcube/gdoc-to-md/internal/plan"
	"github.com/mudcube/gdoc-to-md/internal/report"
	"github.com/mudcube/gdoc-to-md/internal/walk"
	"github.com/mudcube/gdoc-to-md/pkg/types"
)

// fakeDrive is a concurrency-safe Exporter. Files listed in fail return an
// export error; everything else exports a body naming the file id.
type fakeDrive struct {
	mu    sync.Mutex
	fail  map[string]bool
	slow  map[string]time.Duration
	calls []string
	block chan struct{}
}

func (f *fakeDrive) Export(ctx context.Context, fileID, mimeType string, w io.Writer) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fileID)
	fail := f.fail[fileID]
	delay := f.slow[fileID]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return 0, &gdrive.ExportError{FileID: fileID, Err: gdrive.ErrNetwork, Cause: ctx.Err()}
		}
	}
	if fail {
		return 0, &gdrive.ExportError{FileID: fileID, MimeType: mimeType, StatusCode: 500, Message: "backend error", Err: gdrive.ErrServerError}
	}
	n, err := fmt.Fprintf(w, "export of %s\n", fileID)
	return int64(n), err
}

func (f *fakeDrive) exported() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// copyMarkdown stands in for pandoc by copying the DOCX bytes.
type copyMarkdown struct{}

func (copyMarkdown) Convert(_ context.Context, docxPath, mdPath string) error {
	data, err := os.ReadFile(docxPath)
	if err != nil {
		return err
	}
	return os.WriteFile(mdPath, data, 0o600)
}

// writeTree creates placeholders; keys are slash paths, values Drive ids.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, id := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(`{"doc_id": "`+id+`", "email": "me@example.com"}`), 0o644))
	}
	return root
}

type fileState struct {
	content string
	mtime   time.Time
}

// snapshot captures every file under root.
func snapshot(t *testing.T, root string) map[string]fileState {
	t.Helper()
	out := map[string]fileState{}
	require.NoError(t, filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out[filepath.ToSlash(rel)] = fileState{content: string(data), mtime: info.ModTime()}
		return nil
	}))
	return out
}

type harness struct {
	root     string
	drive    *fakeDrive
	reporter *report.Reporter
	out      *bytes.Buffer
}

func newHarness(t *testing.T, files map[string]string) *harness {
	t.Helper()
	return &harness{root: writeTree(t, files), drive: &fakeDrive{fail: map[string]bool{}}}
}

func (h *harness) run(t *testing.T, ctx context.Context, filter walk.Filter, opts Options) types.RunSummary {
	t.Helper()
	logger := logging.Discard()
	w, err := walk.New(h.root, filter, logger)
	require.NoError(t, err)

	set := convert.Set{
		Docs:   convert.NewDocs(h.drive, copyMarkdown{}, convert.DocsOptions{ConvertedOn: time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)}, logger),
		Sheets: convert.NewSheets(h.drive, logger),
	}
	h.out = &bytes.Buffer{}
	h.reporter = report.New(h.out, opts.Flags.DryRun, logger)
	return New(w, plan.StatIndex{}, set, h.reporter, opts, logger).Run(ctx)
}

func relPaths(results []types.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Source.RelPath)
	}
	return out
}

func frontmatter(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rest, ok := strings.CutPrefix(string(data), "---\n")
	require.True(t, ok)
	block, _, ok := strings.Cut(rest, "\n---\n")
	require.True(t, ok)
	meta := map[string]string{}
	require.NoError(t, yaml.Unmarshal([]byte(block), &meta))
	return meta
}

var mixedTree = map[string]string{
	"Notes.gdoc":               "doc-notes",
	"Budget.gsheet":            "sheet-budget",
	"projects/Plan.gdoc":       "doc-plan",
	"projects/Roadmap.GSHEET":  "sheet-roadmap",
	"projects/deep/Spec.gdoc":  "doc-spec",
	"projects/readme.txt":      "ignored",
	"archive/Old Minutes.gdoc": "doc-old",
}

func TestRun_OneResultPerFile(t *testing.T) {
	h := newHarness(t, mixedTree)

	s := h.run(t, context.Background(), walk.Filter{}, Options{})

	results := h.reporter.Results()
	assert.Len(t, results, 6)
	assert.Equal(t, 6, s.Total.Succeeded)
	assert.False(t, s.HasFailures())

	for _, r := range results {
		assert.FileExists(t, r.OutputPath)
	}
	assert.FileExists(t, filepath.Join(h.root, "projects", "Roadmap.csv"))
	assert.NoFileExists(t, filepath.Join(h.root, "projects", "readme.md"))
	assert.Equal(t, 4, s.ByKind[types.KindDoc].Succeeded)
	assert.Equal(t, 2, s.ByKind[types.KindSheet].Succeeded)
}

func TestRun_DeterministicOrder(t *testing.T) {
	h := newHarness(t, mixedTree)
	h.run(t, context.Background(), walk.Filter{}, Options{Flags: plan.Flags{DryRun: true}})

	assert.Equal(t, []string{
		"Budget.gsheet",
		"Notes.gdoc",
		"archive/Old Minutes.gdoc",
		"projects/Plan.gdoc",
		"projects/Roadmap.GSHEET",
		"projects/deep/Spec.gdoc",
	}, relPaths(h.reporter.Results()))
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	h := newHarness(t, mixedTree)
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "Notes.md"), []byte("existing"), 0o644))
	before := snapshot(t, h.root)

	s := h.run(t, context.Background(), walk.Filter{}, Options{Flags: plan.Flags{DryRun: true, SkipExisting: true}})

	assert.Equal(t, before, snapshot(t, h.root))
	assert.Empty(t, h.drive.exported())
	assert.Equal(t, 6, s.Total.Previewed)
	assert.True(t, s.DryRun)
	assert.Contains(t, h.out.String(), "would convert: Notes.gdoc -> Notes.md (would skip: output exists)")
}

func TestRun_SkipExistingIsIdempotent(t *testing.T) {
	h := newHarness(t, mixedTree)
	opts := Options{Flags: plan.Flags{SkipExisting: true}}

	first := h.run(t, context.Background(), walk.Filter{}, opts)
	require.Equal(t, 6, first.Total.Succeeded)
	exportsAfterFirst := len(h.drive.exported())
	before := snapshot(t, h.root)

	second := h.run(t, context.Background(), walk.Filter{}, opts)

	assert.Equal(t, 6, second.Total.Skipped)
	assert.Zero(t, second.Total.Succeeded)
	assert.Len(t, h.drive.exported(), exportsAfterFirst, "second run must not export")
	assert.Equal(t, before, snapshot(t, h.root))
}

func TestRun_Limit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "fewer than total", limit: 2, want: []string{"Budget.gsheet", "Notes.gdoc"}},
		{name: "more than total", limit: 50, want: []string{
			"Budget.gsheet", "Notes.gdoc", "archive/Old Minutes.gdoc",
			"projects/Plan.gdoc", "projects/Roadmap.GSHEET", "projects/deep/Spec.gdoc",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, dry := range []bool{false, true} {
				h := newHarness(t, mixedTree)
				s := h.run(t, context.Background(), walk.Filter{}, Options{Limit: tt.limit, Flags: plan.Flags{DryRun: dry}})

				assert.Equal(t, tt.want, relPaths(h.reporter.Results()), "dry run %v", dry)
				assert.Zero(t, s.Total.Failed)
			}
		})
	}
}

func TestRun_LimitDoesNotCountSkips(t *testing.T) {
	h := newHarness(t, mixedTree)
	for _, name := range []string{"Budget.csv", "projects/Plan.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(h.root, filepath.FromSlash(name)), []byte("x"), 0o644))
	}

	s := h.run(t, context.Background(), walk.Filter{}, Options{Limit: 2, Flags: plan.Flags{SkipExisting: true}})

	assert.Equal(t, 2, s.Total.Succeeded)
	assert.Equal(t, 2, s.Total.Skipped)
	assert.Equal(t, []string{
		"Budget.gsheet",            // skip
		"Notes.gdoc",               // convert 1
		"archive/Old Minutes.gdoc", // convert 2
		"projects/Plan.gdoc",       // skip after the limit is spent
	}, relPaths(h.reporter.Results()))
}

func TestRun_FrontmatterMatchesPlaceholder(t *testing.T) {
	h := newHarness(t, mixedTree)
	h.run(t, context.Background(), walk.Filter{GdocOnly: true}, Options{})

	for _, r := range h.reporter.Results() {
		meta := frontmatter(t, r.OutputPath)
		assert.Equal(t, r.Source.DriveID, meta["source_doc_id"])
		assert.Equal(t, "https://docs.google.com/document/d/"+r.Source.DriveID+"/edit", meta["source_url"])
		assert.Equal(t, "2024-05-01 09:30:00", meta["converted_on"])
	}
}

func TestScenarioA_SingleDoc(t *testing.T) {
	h := newHarness(t, map[string]string{"Notes.gdoc": "abc123"})

	s := h.run(t, context.Background(), walk.Filter{}, Options{})

	assert.False(t, s.HasFailures())
	meta := frontmatter(t, filepath.Join(h.root, "Notes.md"))
	assert.Equal(t, "Notes", meta["title"])
	assert.Equal(t, "abc123", meta["source_doc_id"])
	assert.Equal(t, []string{"Notes.gdoc", "Notes.md"}, sortedKeys(snapshot(t, h.root)))
}

func TestScenarioB_SheetExportFails(t *testing.T) {
	h := newHarness(t, map[string]string{"Budget.gsheet": "s-1"})
	h.drive.fail["s-1"] = true

	s := h.run(t, context.Background(), walk.Filter{}, Options{})

	results := h.reporter.Results()
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusFailure, results[0].Status)
	assert.Equal(t, types.FailureExport, results[0].Failure)
	assert.True(t, s.HasFailures())
	assert.Equal(t, []string{"Budget.gsheet"}, sortedKeys(snapshot(t, h.root)), "zero files written")
	assert.Contains(t, h.out.String(), "failed:  Budget.gsheet (export: ")
}

func TestScenarioC_GdocOnly(t *testing.T) {
	h := newHarness(t, mixedTree)

	h.run(t, context.Background(), walk.Filter{GdocOnly: true}, Options{})

	results := h.reporter.Results()
	assert.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, types.KindDoc, r.Source.Kind)
	}
}

func TestScenarioD_SkipExistingLeavesFileUntouched(t *testing.T) {
	h := newHarness(t, map[string]string{"Notes.gdoc": "abc123"})
	existing := filepath.Join(h.root, "Notes.md")
	require.NoError(t, os.WriteFile(existing, []byte("hand edited"), 0o644))
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(existing, old, old))

	h.run(t, context.Background(), walk.Filter{}, Options{Flags: plan.Flags{SkipExisting: true}})

	results := h.reporter.Results()
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusSkipped, results[0].Status)
	assert.Equal(t, "output exists", results[0].Reason)

	info, err := os.Stat(existing)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old))
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "hand edited", string(data))
}

func TestRun_FailuresDoNotStopTheRun(t *testing.T) {
	h := newHarness(t, mixedTree)
	h.drive.fail["doc-notes"] = true
	require.NoError(t, os.WriteFile(filepath.Join(h.root, "Broken.gdoc"), []byte("not json"), 0o644))

	s := h.run(t, context.Background(), walk.Filter{}, Options{})

	assert.Equal(t, 7, s.Total.Found)
	assert.Equal(t, 5, s.Total.Succeeded)
	require.Len(t, s.Failures, 2)
	assert.Equal(t, "Broken.gdoc", s.Failures[0].Path)
	assert.Equal(t, types.FailurePlaceholder, s.Failures[0].Kind)
	assert.Equal(t, "Notes.gdoc", s.Failures[1].Path)
	assert.Equal(t, types.FailureExport, s.Failures[1].Kind)
}

func TestRun_Workers(t *testing.T) {
	h := newHarness(t, mixedTree)
	h.drive.fail["sheet-budget"] = true
	// The first two files finish last.
	h.drive.slow = map[string]time.Duration{"sheet-budget": 150 * time.Millisecond, "doc-notes": 100 * time.Millisecond}

	s := h.run(t, context.Background(), walk.Filter{}, Options{Workers: 4})

	assert.Equal(t, 6, s.Total.Found)
	assert.Equal(t, 5, s.Total.Succeeded)
	assert.Equal(t, 1, s.Total.Failed)
	assert.Equal(t, []string{
		"Budget.gsheet", "Notes.gdoc", "archive/Old Minutes.gdoc",
		"projects/Plan.gdoc", "projects/Roadmap.GSHEET", "projects/deep/Spec.gdoc",
	}, relPaths(h.reporter.Results()), "results are reported in walk order")

	lines := strings.Split(strings.TrimSpace(h.out.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "Budget.gsheet")
}

func TestRun_OutputCollision(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			h := newHarness(t, map[string]string{
				"Notes.GDOC":    "doc-upper",
				"Notes.gdoc":    "doc-lower",
				"Budget.gsheet": "sheet-budget",
			})
			requireCaseSensitive(t, h.root, 3)

			s := h.run(t, context.Background(), walk.Filter{}, Options{Workers: workers})

			assert.Equal(t, 3, s.Total.Found)
			assert.Equal(t, 2, s.Total.Succeeded)
			require.Len(t, s.Failures, 1)
			assert.Equal(t, "Notes.gdoc", s.Failures[0].Path)
			assert.Equal(t, types.FailureCollision, s.Failures[0].Kind)
			assert.Contains(t, s.Failures[0].Reason, "Notes.GDOC")

			assert.ElementsMatch(t, []string{"sheet-budget", "doc-upper"}, h.drive.exported(), "the second placeholder is never exported")
			assert.Equal(t, "doc-upper", frontmatter(t, filepath.Join(h.root, "Notes.md"))["source_doc_id"])
		})
	}
}

func TestRun_OutputCollisionInDryRun(t *testing.T) {
	h := newHarness(t, map[string]string{"Plan.gdoc": "a", "Plan.GDoc": "b"})
	requireCaseSensitive(t, h.root, 2)
	before := snapshot(t, h.root)

	s := h.run(t, context.Background(), walk.Filter{}, Options{Flags: plan.Flags{DryRun: true}})

	assert.Equal(t, 1, s.Total.Previewed)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, types.FailureCollision, s.Failures[0].Kind)
	assert.Equal(t, before, snapshot(t, h.root))
}

func TestRun_Canceled(t *testing.T) {
	h := newHarness(t, mixedTree)
	h.drive.block = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan types.RunSummary)
	go func() { done <- h.run(t, ctx, walk.Filter{}, Options{}) }()

	require.Eventually(t, func() bool { return len(h.drive.exported()) == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	var s types.RunSummary
	select {
	case s = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	assert.True(t, s.Interrupted)
	assert.Equal(t, 1, s.Total.Found, "walk stops after the in-flight file")
	require.Len(t, s.Failures, 1)
	assert.Equal(t, types.FailureCanceled, s.Failures[0].Kind)
	assert.Equal(t, []string{"Budget.gsheet"}, relPaths(h.reporter.Results()))
	_, err := os.Stat(filepath.Join(h.root, "Budget.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_EmptyTree(t *testing.T) {
	h := newHarness(t, map[string]string{})

	s := h.run(t, context.Background(), walk.Filter{}, Options{})

	assert.Zero(t, s.Total.Found)
	assert.False(t, s.HasFailures())
}

// requireCaseSensitive skips when names differing only in case collapsed
// into one file.
func requireCaseSensitive(t *testing.T, root string, want int) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	if len(entries) < want {
		t.Skip("filesystem is case-insensitive")
	}
}

func sortedKeys(m map[string]fileState) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
