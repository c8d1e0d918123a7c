// Package rules provides the billing compliance rules
// Each rule inspects a single invoice line and reports leakage findings with citations
package rules

import (
	"github.com/shopspring/decimal"

	"lawaudit/decision/ledes"
)

// ViolationType names the rule that produced a finding
type ViolationType string

const (
	TypeBlockBilling           ViolationType = "Block Billing"
	TypeAdministrativeOverhead ViolationType = "Administrative Overhead"
	TypeVagueEntry             ViolationType = "Vague Entry"
	TypeExcessiveTime          ViolationType = "Excessive Time"
	TypeDuplicateEntry         ViolationType = "Duplicate Entry" // reserved, no rule emits it yet
)

// Severity is fixed per rule
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Violation is one finding against one entry
type Violation struct {
	ID              string          `json:"id"`
	Type            ViolationType   `json:"type"`
	Severity        Severity        `json:"severity"`
	EntryID         string          `json:"entry_id"`
	OriginalEntry   string          `json:"original_entry"`
	Description     string          `json:"description"`
	LegalCitation   string          `json:"legal_citation"`
	SuggestedAction string          `json:"suggested_action"`
	LeakageAmount   decimal.Decimal `json:"leakage_amount"`
	Confidence      int             `json:"confidence"` // 0-100
}

// Rule evaluates one entry and returns zero or more violations.
// Implementations must be pure: no state is shared between calls.
type Rule interface {
	// Type returns the violation type this rule emits
	Type() ViolationType

	// Evaluate inspects a single entry
	Evaluate(entry ledes.Entry) []Violation
}

// Registry is an ordered collection of rules.
// Order determines the rule-major ordering of report violations.
type Registry struct {
	rules []Rule
}

// NewRegistry creates a registry holding rules in the given order
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{}
	r.Register(rules...)
	return r
}

// Register appends rules to the end of the evaluation order
func (r *Registry) Register(rules ...Rule) {
	r.rules = append(r.rules, rules...)
}

// Rules returns the registered rules in evaluation order
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of registered rules
func (r *Registry) Len() int {
	return len(r.rules)
}

// Default returns the standard rule set
func Default() *Registry {
	return NewRegistry(
		NewBlockBillingRule(),
		NewAdministrativeOverheadRule(),
		NewVagueEntryRule(),
		NewExcessiveTimeRule(),
	)
}

// newViolation fills the fields every rule shares
func newViolation(entry ledes.Entry, t ViolationType, sev Severity, confidence int) Violation {
	return Violation{
		Type:          t,
		Severity:      sev,
		EntryID:       entry.ID,
		OriginalEntry: entry.Description,
		Confidence:    confidence,
	}
}

// ConfidenceFor returns the fixed confidence of a violation type
func ConfidenceFor(t ViolationType) int {
	switch t {
	case TypeBlockBilling:
		return blockBillingConfidence
	case TypeAdministrativeOverhead:
		return adminConfidence
	case TypeVagueEntry:
		return vagueConfidence
	case TypeExcessiveTime:
		return excessiveConfidence
	default:
		return 0
	}
}
