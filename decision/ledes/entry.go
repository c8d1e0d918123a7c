// Package ledes provides invoice text parsing for the audit engine
// All billing inputs flow through here: format detection, LEDES 1998B parsing and the generic fallback
package ledes

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Format identifies the parsing strategy chosen for a document
type Format string

const (
	FormatStructured Format = "ledes_1998b"
	FormatGeneric    Format = "generic"
)

// entryNamespace scopes content-derived entry ids
var entryNamespace = uuid.MustParse("6f1c1e0a-3b7d-4c8e-9a52-1d0b7e4f2a91")

// Entry is one normalized invoice line item
type Entry struct {
	// Identity
	ID         string `json:"id"`
	LineNumber int    `json:"line_number"` // 1-based among non-empty source lines

	// Invoice metadata
	InvoiceDate    string `json:"invoice_date"`
	InvoiceNumber  string `json:"invoice_number"`
	ClientMatterID string `json:"client_matter_id"`

	// Timekeeper
	TimekeeperID             string `json:"timekeeper_id"`
	TimekeeperName           string `json:"timekeeper_name"`
	TimekeeperClassification string `json:"timekeeper_classification"`

	// UTBMS codes
	TaskCode     string `json:"task_code"`
	ActivityCode string `json:"activity_code"`
	ExpenseCode  string `json:"expense_code"`

	Description string `json:"description"`

	// Amounts
	Units     float64         `json:"units"` // hours billed
	Rate      decimal.Decimal `json:"rate"`
	LineTotal decimal.Decimal `json:"line_total"`

	RawLine string `json:"raw_line"` // original text for the audit trail
}

// UnitsDecimal returns the billed hours as a decimal for money math
func (e Entry) UnitsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(e.Units)
}

// entryID derives a stable id from the line position and content.
// Two runs over the same text yield the same ids.
func entryID(format Format, index int, raw string) string {
	return uuid.NewSHA1(entryNamespace, []byte(fmt.Sprintf("%s:%d:%s", format, index, raw))).String()
}

// splitLines returns the non-blank lines of text with trailing carriage returns removed
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
