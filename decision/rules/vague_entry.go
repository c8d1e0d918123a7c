package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"lawaudit/decision/ledes"
)

const (
	vagueConfidence = 75
	vagueMinWords   = 4
)

var vagueHaircut = decimal.RequireFromString("0.15")

// VagueEntryRule flags descriptions too thin to verify the work performed.
// OCG standard: descriptions must be detailed enough for audit.
type VagueEntryRule struct {
	vagueTerms *regexp.Regexp
}

// NewVagueEntryRule creates the rule with the standard vague vocabulary
func NewVagueEntryRule() *VagueEntryRule {
	return &VagueEntryRule{
		vagueTerms: regexp.MustCompile(`(?i)^(?:` +
			`email|call|conference|meeting|review|research|draft|work|attention|` +
			`misc|miscellaneous|various|general|other|` +
			`continued|cont|cont'd)$`),
	}
}

func (r *VagueEntryRule) Type() ViolationType { return TypeVagueEntry }

func (r *VagueEntryRule) Evaluate(entry ledes.Entry) []Violation {
	words := len(strings.Fields(entry.Description))
	if words >= vagueMinWords && !r.vagueTerms.MatchString(strings.TrimSpace(entry.Description)) {
		return nil
	}

	v := newViolation(entry, TypeVagueEntry, SeverityMedium, vagueConfidence)
	v.Description = fmt.Sprintf("Entry %q contains only %d words and lacks sufficient detail to verify "+
		"that work was performed or assess its necessity.", entry.Description, words)
	v.LegalCitation = "ABA Model Rule 1.5 Comment [1]: Clients must be able to understand the services rendered. " +
		"FL Bar Rule 4-1.5: Billing must enable client to assess reasonableness."
	v.SuggestedAction = "Request detailed description. If not provided, apply 15% administrative haircut pending clarification."
	v.LeakageAmount = entry.LineTotal.Mul(vagueHaircut)
	return []Violation{v}
}
