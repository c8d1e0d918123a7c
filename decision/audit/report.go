package audit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lawaudit/decision/ledes"
	"lawaudit/decision/rules"
	"lawaudit/pkg/confidence"
)

// Report is the complete audit output for one document
type Report struct {
	Format       ledes.Format      `json:"format"`
	Entries      []ledes.Entry     `json:"entries"`
	Violations   []rules.Violation `json:"violations"`
	TotalBilled  decimal.Decimal   `json:"total_billed"`
	TotalLeakage decimal.Decimal   `json:"total_leakage"`
	Summary      Summary           `json:"summary_stats"`
}

// Summary holds report statistics
type Summary struct {
	TotalEntries   int `json:"total_entries"`
	FlaggedEntries int `json:"flagged_entries"` // distinct original descriptions flagged
	CriticalFlags  int `json:"critical_flags"`
	HighFlags      int `json:"high_flags"`
	MediumFlags    int `json:"medium_flags"`

	// Leakage-weighted mean confidence of all findings, 0-100
	Confidence    float64                                   `json:"confidence"`
	LeakageByType map[rules.ViolationType]decimal.Decimal `json:"leakage_by_type"`
}

// Aggregate totals entries and violations into a report.
// Violation ids are assigned here, in final order, so they are stable for a given input.
func Aggregate(format ledes.Format, entries []ledes.Entry, violations []rules.Violation) *Report {
	if entries == nil {
		entries = make([]ledes.Entry, 0)
	}

	report := &Report{
		Format:       format,
		Entries:      entries,
		Violations:   make([]rules.Violation, len(violations)),
		TotalBilled:  decimal.Zero,
		TotalLeakage: decimal.Zero,
		Summary: Summary{
			TotalEntries:  len(entries),
			LeakageByType: make(map[rules.ViolationType]decimal.Decimal),
		},
	}

	for _, e := range entries {
		report.TotalBilled = report.TotalBilled.Add(e.LineTotal)
	}

	flagged := make(map[string]struct{})
	scores := make([]float64, 0, len(violations))
	weights := make([]float64, 0, len(violations))

	for i, v := range violations {
		v.ID = fmt.Sprintf("FLAG-%d", i+1)
		report.Violations[i] = v

		report.TotalLeakage = report.TotalLeakage.Add(v.LeakageAmount)
		report.Summary.LeakageByType[v.Type] = report.Summary.LeakageByType[v.Type].Add(v.LeakageAmount)
		flagged[v.OriginalEntry] = struct{}{}

		switch v.Severity {
		case rules.SeverityCritical:
			report.Summary.CriticalFlags++
		case rules.SeverityHigh:
			report.Summary.HighFlags++
		case rules.SeverityMedium:
			report.Summary.MediumFlags++
		}

		scores = append(scores, float64(v.Confidence))
		weights = append(weights, v.LeakageAmount.InexactFloat64())
	}

	report.Summary.FlaggedEntries = len(flagged)
	report.Summary.Confidence = confidence.Blend(scores, weights)

	return report
}

// LeakageRatio returns total leakage as a percentage of total billed, 0 when nothing was billed
func (r *Report) LeakageRatio() float64 {
	if r.TotalBilled.IsZero() {
		return 0
	}
	return r.TotalLeakage.Div(r.TotalBilled).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// EntryByID looks up the entry a violation refers to
func (r *Report) EntryByID(id string) (ledes.Entry, bool) {
	for _, e := range r.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return ledes.Entry{}, false
}
