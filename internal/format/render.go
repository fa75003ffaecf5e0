package format

import (
	"fmt"
	"strings"

	"provify/internal/bug"
	"provify/internal/display"
	"provify/internal/orchestrate"
	"provify/internal/target"
	"provify/internal/verdict"
)

// Bugs renders a bug list.
func Bugs(m Mode, bugs []*bug.Bug) string {
	tb := NewTable(m)
	tb.Header("ID", "App", "Package", "Status", "Sev", "Last verified", "Bug")
	tb.Columns(ColumnConfig{Number: 5, Align: AlignRight}, ColumnConfig{Number: 7, MaxWidth: 48})
	for _, b := range bugs {
		sev := "-"
		if b.Severity > 0 {
			sev = fmt.Sprint(b.Severity)
		}
		pkg := b.Package
		if pkg == "" {
			pkg = "?"
		}
		tb.Row(b.ID, b.AppName, pkg, string(b.Status), sev, FmtTime(b.LastVerified), Truncate(b.Description, 48))
	}
	return tb.String()
}

// BugDetail renders one bug with its notes and reproduction steps.
func BugDetail(b *bug.Bug) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ID:            %s\n", b.ID)
	fmt.Fprintf(&sb, "App:           %s\n", b.AppName)
	fmt.Fprintf(&sb, "Package:       %s\n", orDash(b.Package))
	fmt.Fprintf(&sb, "Status:        %s\n", display.StatusWithCode(string(b.Status)))
	if b.Severity > 0 {
		fmt.Fprintf(&sb, "Severity:      %d/5\n", b.Severity)
	}
	fmt.Fprintf(&sb, "Created:       %s\n", FmtTime(&b.CreatedAt))
	fmt.Fprintf(&sb, "Last verified: %s\n", FmtTime(b.LastVerified))
	fmt.Fprintf(&sb, "\n%s\n", b.Description)
	if len(b.Steps) > 0 {
		sb.WriteString("\nSteps to reproduce:\n")
		for i, s := range b.Steps {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, s)
		}
	}
	if b.Notes != "" {
		fmt.Fprintf(&sb, "\nNotes:\n%s\n", b.Notes)
	}
	return sb.String()
}

// Verdict renders the per-target results followed by the decision.
func Verdict(m Mode, v verdict.Verdict) string {
	tb := NewTable(m)
	tb.Header("Target", "Outcome", "Time", "Report")
	tb.Columns(ColumnConfig{Number: 3, Align: AlignRight}, ColumnConfig{Number: 4, MaxWidth: 60})
	for _, r := range v.Results {
		name := r.TargetID
		if r.TargetLabel != "" && r.TargetLabel != r.TargetID {
			name += " (" + r.TargetLabel + ")"
		}
		outcome, report := "not reproduced", r.Report
		switch {
		case r.Errored():
			outcome = "error: " + string(r.Failure.Kind)
			report = display.Failure(string(r.Failure.Kind)) + ": " + r.Failure.Reason
		case r.Reproduced:
			outcome = "REPRODUCED"
		}
		tb.Row(name, outcome, FmtDuration(r.Duration), Truncate(report, 60))
	}
	tb.Footer("", fmt.Sprintf("%d/%d", v.ReproducedCount, v.Attempted-v.Errored), "", fmt.Sprintf("confidence %s", v.Confidence))

	decision := "NOT REPRODUCED"
	if v.Reproduced {
		decision = "REPRODUCED"
	}
	return tb.String() + "\n" + decision + " (" + string(v.Confidence) + ")\n"
}

// RunReport renders an orchestrator report: verdict plus the transition.
func RunReport(m Mode, r *orchestrate.Report) string {
	out := Verdict(m, r.Verdict)
	tr := r.Transition
	if tr.Applied {
		out += fmt.Sprintf("%s: %s -> %s (%s)\n", tr.BugID, tr.From, tr.To, display.Transition(string(tr.Kind)))
	} else {
		out += fmt.Sprintf("%s: status %s unchanged (verdict not applicable)\n", tr.BugID, tr.From)
	}
	return out
}

// Batch renders one row per batch item.
func Batch(m Mode, rep orchestrate.BatchReport) string {
	tb := NewTable(m)
	tb.Header("Bug", "Intent", "Result", "Confidence", "Transition")
	for _, it := range rep.Items {
		switch {
		case it.Skipped:
			tb.Row(it.BugID, "-", "skipped (verified)", "", "")
		case it.Report != nil:
			res := "not reproduced"
			if it.Report.Verdict.Reproduced {
				res = "REPRODUCED"
			}
			if it.Err != nil {
				res += " (not saved)"
			}
			tr := it.Report.Transition
			tb.Row(it.BugID, string(it.Intent), res, string(it.Report.Verdict.Confidence), fmt.Sprintf("%s -> %s", tr.From, tr.To))
		default:
			tb.Row(it.BugID, string(it.Intent), "error: "+Truncate(errString(it.Err), 50), "", "")
		}
	}
	tb.Footer("", "", fmt.Sprintf("%d failed", rep.Failed()), "", "")
	return tb.String()
}

// Targets renders the device list with liveness.
func Targets(m Mode, ts []target.Target) string {
	tb := NewTable(m)
	tb.Header("ID", "Label", "Live")
	tb.Columns(ColumnConfig{Number: 3, Align: AlignCenter})
	for _, t := range ts {
		tb.Row(t.ID, t.Label, BoolMark(t.Live))
	}
	return tb.String()
}

// Stats renders per-status counts.
func Stats(m Mode, s bug.Stats) string {
	tb := NewTable(m)
	tb.Header("Status", "Count")
	tb.Columns(ColumnConfig{Number: 2, Align: AlignRight})
	tb.Row(display.StatusWithCode(string(bug.StatusPending)), s.Pending)
	tb.Row(display.StatusWithCode(string(bug.StatusVerified)), s.Verified)
	tb.Row(display.StatusWithCode(string(bug.StatusNotReproducible)), s.NotReproducible)
	tb.Row(display.StatusWithCode(string(bug.StatusFixed)), s.Fixed)
	tb.Footer("Total", s.Total)
	return tb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
