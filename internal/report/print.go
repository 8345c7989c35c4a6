// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mudcube/gdoc-to-md/pkg/types"
)

var kinds = []types.Kind{types.KindDoc, types.KindSheet}

// Print renders the summary to w: a count table by kind, then every
// failure with its reason.
func (r *Reporter) Print(w io.Writer) {
	s := r.Summary()
	re := lipgloss.NewRenderer(w)
	title := re.NewStyle().Bold(true)
	muted := re.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle := re.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle := re.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)

	heading := "Conversion summary"
	if s.DryRun {
		heading += " (dry run)"
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, title.Render(heading)+" "+muted.Render("run "+s.RunID))

	done := "Converted"
	if s.DryRun {
		done = "Would convert"
	}
	rows := []struct {
		label string
		count func(types.Counts) int
	}{
		{"Found", func(c types.Counts) int { return c.Found }},
		{done, func(c types.Counts) int { return c.Succeeded + c.Previewed }},
		{"Skipped", func(c types.Counts) int { return c.Skipped }},
		{"Failed", func(c types.Counts) int { return c.Failed }},
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(muted).
		Headers("", types.KindDoc.Label()+"s", types.KindSheet.Label()+"s", "Total").
		StyleFunc(func(row, col int) lipgloss.Style {
			st := re.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return st.Bold(true)
			}
			if col > 0 {
				st = st.Align(lipgloss.Right)
			}
			return st
		})
	for _, row := range rows {
		cells := []string{row.label}
		for _, k := range kinds {
			var c types.Counts
			if bk := s.ByKind[k]; bk != nil {
				c = *bk
			}
			cells = append(cells, strconv.Itoa(row.count(c)))
		}
		cells = append(cells, strconv.Itoa(row.count(s.Total)))
		t.Row(cells...)
	}
	fmt.Fprintln(w, t.Render())

	if len(s.Failures) > 0 {
		fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("%d file(s) failed:", len(s.Failures))))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s: %s\n", f.Path, failureReason(types.Result{Failure: f.Kind, Reason: f.Reason}))
		}
	} else if s.Total.Found > 0 {
		fmt.Fprintln(w, okStyle.Render("No failures."))
	}

	if s.Interrupted {
		fmt.Fprintln(w, errStyle.Render("Interrupted: results above are partial."))
	}
	fmt.Fprintln(w, muted.Render("Elapsed: "+s.Elapsed.Round(time.Millisecond).String()))
}
