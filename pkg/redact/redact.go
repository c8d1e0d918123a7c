// Package redact masks personal data in invoice text and audit reports before they leave the process.
// Analysis always runs on the original text; redaction is an output concern.
package redact

import (
	"regexp"
	"strings"

	"lawaudit/decision/audit"
	"lawaudit/decision/ledes"
	"lawaudit/decision/rules"
)

const (
	MaskSSN    = "[SSN_MASKED]"
	MaskPhone  = "[PHONE_MASKED]"
	MaskDOB    = "[DOB_MASKED]"
	MaskLawyer = "[LAWYER_NAME_MASKED]"
)

var (
	ssnPattern   = regexp.MustCompile(`\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`)
	phonePattern = regexp.MustCompile(`(\+?1[- ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}`)
	dobPattern   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{4}\b`)
)

// DefaultPersonnel is the built-in list of names always masked
var DefaultPersonnel = []string{"John Dillard", "Jane Doe", "Richard Roe", "Steven Smith"}

// Redactor masks SSNs, phone numbers, slash or dash dates and a list of personnel names
type Redactor struct {
	names *regexp.Regexp // nil when no names are configured
}

// New creates a redactor masking the given names case-insensitively
func New(names ...string) *Redactor {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			quoted = append(quoted, regexp.QuoteMeta(n))
		}
	}

	r := &Redactor{}
	if len(quoted) > 0 {
		r.names = regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
	}
	return r
}

var defaultRedactor = New(DefaultPersonnel...)

// Text masks s with the default personnel list
func Text(s string) string { return defaultRedactor.Text(s) }

// Report returns a masked copy of r with the default personnel list
func Report(r *audit.Report) *audit.Report { return defaultRedactor.Report(r) }

// Text masks s. Patterns apply in order: SSN, phone, date, names.
func (r *Redactor) Text(s string) string {
	if s == "" {
		return s
	}
	s = ssnPattern.ReplaceAllLiteralString(s, MaskSSN)
	s = phonePattern.ReplaceAllLiteralString(s, MaskPhone)
	s = dobPattern.ReplaceAllLiteralString(s, MaskDOB)
	if r.names != nil {
		s = r.names.ReplaceAllLiteralString(s, MaskLawyer)
	}
	return s
}

// Report returns a copy of rep with free-text fields masked. Amounts, ids and counts are untouched.
func (r *Redactor) Report(rep *audit.Report) *audit.Report {
	if rep == nil {
		return nil
	}
	out := *rep

	out.Entries = make([]ledes.Entry, len(rep.Entries))
	for i, e := range rep.Entries {
		e.RawLine = r.Text(e.RawLine)
		e.Description = r.Text(e.Description)
		e.TimekeeperName = r.Text(e.TimekeeperName)
		out.Entries[i] = e
	}

	out.Violations = make([]rules.Violation, len(rep.Violations))
	for i, v := range rep.Violations {
		v.OriginalEntry = r.Text(v.OriginalEntry)
		v.Description = r.Text(v.Description)
		out.Violations[i] = v
	}
	return &out
}
