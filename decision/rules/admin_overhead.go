package rules

import (
	"fmt"
	"regexp"
	"strings"

	"lawaudit/decision/ledes"
)

const (
	adminConfidence = 88
	adminThreshold  = 0.8
)

type weightedPattern struct {
	pattern *regexp.Regexp
	weight  float64
}

// AdministrativeOverheadRule flags clerical work billed at professional rates.
// OCG standard: clerical tasks are non-billable overhead, so the whole line is leakage.
type AdministrativeOverheadRule struct {
	keywords []weightedPattern
}

// NewAdministrativeOverheadRule creates the rule with the standard clerical keywords
func NewAdministrativeOverheadRule() *AdministrativeOverheadRule {
	kw := func(expr string, weight float64) weightedPattern {
		return weightedPattern{pattern: regexp.MustCompile(`(?i)\b(` + expr + `)\b`), weight: weight}
	}
	return &AdministrativeOverheadRule{
		keywords: []weightedPattern{
			kw(`filing|file`, 1.0),
			kw(`copying|photocopying|photocopy`, 1.0),
			kw(`scanning|scan`, 1.0),
			kw(`mailing|mail|postage`, 1.0),
			kw(`scheduling|schedule|calendar`, 0.8),
			kw(`organizing|organized|organization`, 0.9),
			kw(`data entry|input`, 1.0),
			kw(`bates|stamping|stamp`, 0.9),
			kw(`indexing|index`, 0.8),
			kw(`clerical`, 1.0),
		},
	}
}

func (r *AdministrativeOverheadRule) Type() ViolationType { return TypeAdministrativeOverhead }

func (r *AdministrativeOverheadRule) Evaluate(entry ledes.Entry) []Violation {
	score := 0.0
	matched := make([]string, 0, 2)
	for _, kw := range r.keywords {
		if m := kw.pattern.FindString(entry.Description); m != "" {
			score += kw.weight
			matched = append(matched, m)
		}
	}
	if score < adminThreshold {
		return nil
	}

	v := newViolation(entry, TypeAdministrativeOverhead, SeverityHigh, adminConfidence)
	v.Description = fmt.Sprintf("Administrative/clerical task %q billed at professional rate ($%s/hr). "+
		"These tasks should be absorbed as firm overhead, not charged at attorney rates.",
		strings.Join(matched, ", "), entry.Rate.String())
	v.LegalCitation = "ABA Formal Op. 93-379: Clerical and secretarial services should not be billed separately. " +
		"TX Disciplinary Rule 1.04(a): Fees must be reasonable and not include non-legal overhead."
	v.SuggestedAction = "Deduct full amount. Administrative tasks are non-billable overhead per standard OCG provisions."
	v.LeakageAmount = entry.LineTotal
	return []Violation{v}
}
