package rules

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"lawaudit/decision/ledes"
)

const excessiveConfidence = 70

// Benchmark is an industry timing expectation for a routine task
type Benchmark struct {
	Pattern  *regexp.Regexp
	MaxHours float64
	Label    string
}

// ExcessiveTimeRule flags routine tasks billed at more than twice their benchmark.
// Benchmarks are independent: one entry may exceed several.
type ExcessiveTimeRule struct {
	benchmarks []Benchmark
}

// NewExcessiveTimeRule creates the rule with the standard benchmarks
func NewExcessiveTimeRule() *ExcessiveTimeRule {
	return &ExcessiveTimeRule{
		benchmarks: []Benchmark{
			{Pattern: regexp.MustCompile(`(?i)\b(email|e-mail)\b`), MaxHours: 0.5, Label: "0.3 hours per email"},
			{Pattern: regexp.MustCompile(`(?i)\b(voicemail|voice mail)\b`), MaxHours: 0.2, Label: "0.1 hours per voicemail"},
			{Pattern: regexp.MustCompile(`(?i)\b(letter|correspondence)\b`), MaxHours: 1.0, Label: "0.5-1.0 hours per letter"},
		},
	}
}

func (r *ExcessiveTimeRule) Type() ViolationType { return TypeExcessiveTime }

func (r *ExcessiveTimeRule) Evaluate(entry ledes.Entry) []Violation {
	var out []Violation
	for _, b := range r.benchmarks {
		if !b.Pattern.MatchString(entry.Description) || entry.Units <= b.MaxHours*2 {
			continue
		}

		excess := entry.UnitsDecimal().Sub(decimal.NewFromFloat(b.MaxHours))
		// A discounted stated total can sit below units*rate; never claim more than was billed.
		leakage := decimal.Min(excess.Mul(entry.Rate), entry.LineTotal)

		v := newViolation(entry, TypeExcessiveTime, SeverityHigh, excessiveConfidence)
		v.Description = fmt.Sprintf("%s hours billed for task typically requiring %s. Excess time of %s hours flagged.",
			formatHours(entry.Units), b.Label, excess.StringFixed(1))
		v.LegalCitation = "ABA Model Rule 1.5(a)(1): Time and labor required for the matter. " +
			"OCG Benchmark: Industry standard timing expectations."
		v.SuggestedAction = fmt.Sprintf("Reduce to benchmark maximum of %s hours or provide justification for extended time.",
			formatHours(b.MaxHours))
		v.LeakageAmount = leakage
		out = append(out, v)
	}
	return out
}
