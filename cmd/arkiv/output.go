package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
)

var (
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	tableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// newTable returns a rounded table with a bold header row.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
}

// writeRunSummary prints one table row per processed workspace.
func writeRunSummary(w io.Writer, report app.RunReport) {
	t := newTable("Workspace", "Tasks", "Artifacts", "Branch failures")
	for _, ws := range report.Workspaces {
		t.Row(ws.Name, strconv.Itoa(ws.Tasks), strconv.Itoa(len(ws.Artifacts)), strconv.Itoa(len(ws.Failures)))
	}
	_, _ = fmt.Fprintln(w, t.Render())
	_, _ = fmt.Fprintf(w, "run %s: %d artifacts written, %d evicted\n", report.RunID, report.ArtifactCount(), len(report.Evicted))
	if len(report.Skipped) > 0 {
		_, _ = fmt.Fprintf(w, "skipped by filter: %d\n", len(report.Skipped))
	}
	if failures := report.BranchFailureCount(); failures > 0 {
		_, _ = fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d branch fetches failed; affected snapshots are incomplete", failures)))
	}
	if report.EvictionFailures > 0 {
		_, _ = fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%d evictions failed", report.EvictionFailures)))
	}
}

// writePruneSummary prints one row per store plus every evicted artifact.
func writePruneSummary(w io.Writer, sweeps []app.SweepResult, retentionDays int) {
	if retentionDays <= 0 {
		_, _ = fmt.Fprintln(w, "retention disabled (retention.days = 0)")
		return
	}
	t := newTable("Store", "Series", "Deleted", "Failed")
	for _, sweep := range sweeps {
		t.Row(sweep.Store, strconv.Itoa(sweep.Series), strconv.Itoa(len(sweep.Deleted)), strconv.Itoa(len(sweep.Failed)))
	}
	_, _ = fmt.Fprintln(w, t.Render())
	for _, sweep := range sweeps {
		verb := "deleted"
		if sweep.DryRun {
			verb = "would delete"
		}
		for _, ref := range sweep.Deleted {
			_, _ = fmt.Fprintf(w, "%s %s/%s\n", verb, sweep.Store, ref.Name)
		}
	}
}

// writeHistory prints recent runs, newest first.
func writeHistory(w io.Writer, runs []app.RunRecord) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "no runs recorded")
		return
	}
	t := newTable("Run", "Trigger", "Status", "Started", "Duration", "Artifacts", "Evicted", "Failures", "Error")
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		t.Row(
			shortID(run.ID),
			run.Trigger,
			string(run.Status),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			strconv.Itoa(run.Artifacts),
			strconv.Itoa(run.Evicted),
			strconv.Itoa(run.BranchFailures),
			truncate(run.Error, 48),
		)
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

// writeRunDetail prints one ledger run and the artifacts it wrote.
func writeRunDetail(w io.Writer, run app.RunRecord, artifacts []domain.ArtifactRef) {
	_, _ = fmt.Fprintf(w, "run: %s\n", run.ID)
	_, _ = fmt.Fprintf(w, "trigger: %s\n", run.Trigger)
	_, _ = fmt.Fprintf(w, "status: %s\n", run.Status)
	_, _ = fmt.Fprintf(w, "started: %s\n", run.StartedAt.Local().Format(time.RFC3339))
	if run.FinishedAt != nil {
		_, _ = fmt.Fprintf(w, "finished: %s\n", run.FinishedAt.Local().Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "workspaces: %d, evicted: %d, branch failures: %d\n", run.Workspaces, run.Evicted, run.BranchFailures)
	if run.Error != "" {
		_, _ = fmt.Fprintln(w, warnStyle.Render("error: "+run.Error))
	}
	if len(artifacts) == 0 {
		_, _ = fmt.Fprintln(w, "no artifacts recorded")
		return
	}
	t := newTable("Store", "Artifact", "Format", "Size")
	for _, ref := range artifacts {
		t.Row(ref.Store, ref.Name, string(ref.Format), strconv.FormatInt(ref.Size, 10))
	}
	_, _ = fmt.Fprintln(w, t.Render())
}

// shortID trims UUIDs to their first group.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
