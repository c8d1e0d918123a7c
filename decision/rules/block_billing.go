package rules

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/shopspring/decimal"

	"lawaudit/decision/ledes"
)

const (
	blockBillingConfidence = 92
	blockBillingMinHours   = 2.0
	blockBillingMaxTasks   = 4
)

var blockBillingHaircutPerTask = decimal.RequireFromString("0.15")

// BlockBillingRule flags long entries that bundle several tasks together.
// ABA Model Rule 1.5(a): fees must be reasonable and transparent.
type BlockBillingRule struct {
	indicators []*regexp.Regexp
	taskSplit  *regexp.Regexp
}

// NewBlockBillingRule creates the rule with the standard multi-task indicators
func NewBlockBillingRule() *BlockBillingRule {
	return &BlockBillingRule{
		indicators: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\band\b|&`),
			regexp.MustCompile(`;`),
			regexp.MustCompile(`(?i)\b(also|additionally)\b`),
			regexp.MustCompile(`(?i)\b(then|thereafter)\b`),
			regexp.MustCompile(`(?i)\b(including|as well as)\b`),
		},
		taskSplit: regexp.MustCompile(`(?i)\b(and|also|then)\b|[&;]`),
	}
}

func (r *BlockBillingRule) Type() ViolationType { return TypeBlockBilling }

func (r *BlockBillingRule) Evaluate(entry ledes.Entry) []Violation {
	if entry.Units <= blockBillingMinHours || !r.hasMultipleTasks(entry.Description) {
		return nil
	}

	taskCount := len(r.taskSplit.FindAllStringIndex(entry.Description, -1)) + 1
	factor := blockBillingHaircutPerTask.Mul(decimal.NewFromInt(int64(min(taskCount, blockBillingMaxTasks))))

	v := newViolation(entry, TypeBlockBilling, SeverityCritical, blockBillingConfidence)
	v.Description = fmt.Sprintf("Entry of %s hours contains approximately %d distinct tasks bundled together. "+
		"Block billing obscures the reasonableness of individual task durations and prevents meaningful audit.",
		formatHours(entry.Units), taskCount)
	v.LegalCitation = `ABA Model Rule 1.5(a): "A lawyer shall not make an agreement for, charge, or collect an unreasonable fee." ` +
		`Block billing impedes verification of reasonableness. See also CA State Bar Formal Op. 2007-168.`
	v.SuggestedAction = "Request itemized breakdown of each task with individual time allocations. " +
		"Apply 15-25% reduction pending clarification."
	v.LeakageAmount = entry.LineTotal.Mul(factor)
	return []Violation{v}
}

func (r *BlockBillingRule) hasMultipleTasks(description string) bool {
	for _, p := range r.indicators {
		if p.MatchString(description) {
			return true
		}
	}
	return false
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
