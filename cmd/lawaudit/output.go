package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"lawaudit/decision/audit"
	"lawaudit/decision/policy"
	"lawaudit/decision/rules"
)

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

const maxFindings = 10

type auditOutput struct {
	Source   string                   `json:"source"`
	Report   *audit.Report            `json:"report"`
	Policy   *policy.EvaluationResult `json:"policy,omitempty"`
	RecordID string                   `json:"record_id,omitempty"`
}

func outputJSON(w io.Writer, out *auditOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func outputTable(w io.Writer, out *auditOutput) error {
	r := out.Report
	s := r.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                  ⚖️  LEGAL BILLING AUDIT                      ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Source:                %-38s ║\n", truncate(out.Source, 38))
	fmt.Fprintf(w, "║  Format:                %-38s ║\n", r.Format)
	fmt.Fprintf(w, "║  Entries (flagged):     %-38s ║\n", fmt.Sprintf("%d (%d)", s.TotalEntries, s.FlaggedEntries))
	fmt.Fprintf(w, "║  Total Billed:          $%-37s ║\n", r.TotalBilled.StringFixed(2))
	fmt.Fprintf(w, "║  Identified Leakage:    $%-37s ║\n", r.TotalLeakage.StringFixed(2))
	fmt.Fprintf(w, "║  Leakage Ratio:         %-38s ║\n", fmt.Sprintf("%.1f%%", r.LeakageRatio()))
	fmt.Fprintf(w, "║  Confidence:            %-38s ║\n", fmt.Sprintf("%.0f%%", s.Confidence))
	fmt.Fprintf(w, "║  Findings:              %-38s ║\n",
		fmt.Sprintf("%d critical, %d high, %d medium", s.CriticalFlags, s.HighFlags, s.MediumFlags))
	if out.RecordID != "" {
		fmt.Fprintf(w, "║  Record ID:             %-38s ║\n", out.RecordID)
	}
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")

	// Top findings
	if len(r.Violations) > 0 {
		fmt.Fprintln(w, "║  FINDINGS                                                     ║")
		fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")

		shown := min(len(r.Violations), maxFindings)
		for _, v := range r.Violations[:shown] {
			head := fmt.Sprintf("%s %s [%s]", v.ID, v.Type, v.Severity)
			fmt.Fprintf(w, "║  %-43s  $%-14s ║\n", truncate(head, 43), v.LeakageAmount.StringFixed(2))
			fmt.Fprintf(w, "║    %-57s ║\n", truncate(v.OriginalEntry, 57))
		}
		if rest := len(r.Violations) - shown; rest > 0 {
			fmt.Fprintf(w, "║  %-59s ║\n", fmt.Sprintf("... and %d more", rest))
		}
		fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	}

	// Policy result
	if out.Policy != nil {
		fmt.Fprintf(w, "║  Policy Result:         %-38s ║\n", decisionLabel(out.Policy.Decision))

		for _, v := range out.Policy.Violations {
			fmt.Fprintf(w, "║  ❌ %-57s ║\n", truncate(v.Message, 57))
		}
		for _, warn := range out.Policy.Warnings {
			fmt.Fprintf(w, "║  ⚠️  %-56s ║\n", truncate(warn.Message, 56))
		}
	}

	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func outputMarkdown(w io.Writer, out *auditOutput) error {
	r := out.Report
	s := r.Summary

	fmt.Fprintln(w, "## ⚖️ LawAudit Report")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	fmt.Fprintf(w, "| **Source** | %s |\n", out.Source)
	fmt.Fprintf(w, "| **Entries** | %d (%d flagged) |\n", s.TotalEntries, s.FlaggedEntries)
	fmt.Fprintf(w, "| **Total Billed** | $%s |\n", r.TotalBilled.StringFixed(2))
	fmt.Fprintf(w, "| **Identified Leakage** | $%s |\n", r.TotalLeakage.StringFixed(2))
	fmt.Fprintf(w, "| **Leakage Ratio** | %.1f%% |\n", r.LeakageRatio())
	fmt.Fprintf(w, "| **Confidence** | %.0f%% |\n", s.Confidence)

	if out.Policy != nil {
		fmt.Fprintf(w, "| **Policy Result** | %s |\n", out.Policy.Decision)
	}
	if out.RecordID != "" {
		fmt.Fprintf(w, "| **Record ID** | `%s` |\n", out.RecordID)
	}

	if len(s.LeakageByType) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### 📊 Leakage by Type")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Type | Leakage |")
		fmt.Fprintln(w, "|------|---------|")

		types := make([]rules.ViolationType, 0, len(s.LeakageByType))
		for t := range s.LeakageByType {
			types = append(types, t)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, t := range types {
			fmt.Fprintf(w, "| %s | $%s |\n", t, s.LeakageByType[t].StringFixed(2))
		}
	}

	if len(r.Violations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### 🔍 Findings")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| ID | Type | Severity | Entry | Leakage | Action |")
		fmt.Fprintln(w, "|----|------|----------|-------|---------|--------|")
		for _, v := range r.Violations {
			fmt.Fprintf(w, "| %s | %s | %s | %s | $%s | %s |\n",
				v.ID, v.Type, v.Severity, mdCell(v.OriginalEntry),
				v.LeakageAmount.StringFixed(2), mdCell(v.SuggestedAction))
		}
	}

	if out.Policy != nil && len(out.Policy.Violations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### ❌ Policy Violations")
		fmt.Fprintln(w)
		for _, v := range out.Policy.Violations {
			fmt.Fprintf(w, "- **%s**: %s\n", v.PolicyName, v.Message)
		}
	}

	if out.Policy != nil && len(out.Policy.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### ⚠️ Warnings")
		fmt.Fprintln(w)
		for _, warn := range out.Policy.Warnings {
			fmt.Fprintf(w, "- %s\n", warn.Message)
		}
	}

	return nil
}

func decisionLabel(d policy.Decision) string {
	switch d {
	case policy.DecisionWarn:
		return "⚠️  WARN"
	case policy.DecisionDeny:
		return "❌ DENY"
	default:
		return "✅ PASS"
	}
}

// mdCell keeps a value on one table row
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
