package ledes

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// Generic parser heuristics
	maxPlausibleHours = 24.0
	minPlausibleRate  = 100.0
	maxPlausibleRate  = 2000.0
	defaultHours      = 1.0
	defaultRate       = 450.0

	headerMarker = "INVOICE"
)

// Detect chooses the parsing strategy for raw invoice text.
// Text is structured when it is pipe-delimited and either opens with an INVOICE header
// or its first pipe-delimited line carries more than 10 fields.
func Detect(text string) Format {
	if !strings.Contains(text, "|") {
		return FormatGeneric
	}
	lines := splitLines(text)
	if len(lines) == 0 {
		return FormatGeneric
	}
	if strings.Contains(strings.ToUpper(lines[0]), headerMarker) {
		return FormatStructured
	}
	for _, l := range lines {
		if strings.Contains(l, "|") {
			if len(strings.Split(l, "|")) > 10 {
				return FormatStructured
			}
			break
		}
	}
	return FormatGeneric
}

// Parse detects the format of text and parses it accordingly
func Parse(text string) (Format, []Entry) {
	format := Detect(text)
	if format == FormatStructured {
		return format, ParseStructured(text, LEDES1998B)
	}
	return format, ParseGeneric(text)
}

// ParseStructured parses schema-delimited records.
// A leading header line is skipped and short records are silently dropped.
func ParseStructured(text string, schema Schema) []Entry {
	lines := splitLines(text)
	entries := make([]Entry, 0, len(lines))

	start := 0
	if len(lines) > 0 && strings.Contains(strings.ToUpper(lines[0]), headerMarker) {
		start = 1
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]
		rec, ok := schema.Split(line)
		if !ok {
			continue
		}

		units := rec.Units()
		rate := decimal.NewFromFloat(rec.UnitCost())
		lineTotal := decimal.NewFromFloat(units).Mul(rate)
		if stated, ok := rec.LineTotal(); ok {
			lineTotal = decimal.NewFromFloat(stated)
		}

		entries = append(entries, Entry{
			ID:                       entryID(FormatStructured, i, line),
			LineNumber:               i + 1,
			InvoiceDate:              rec.InvoiceDate(),
			InvoiceNumber:            rec.InvoiceNumber(),
			ClientMatterID:           rec.ClientMatterID(),
			TimekeeperID:             rec.TimekeeperID(),
			TimekeeperName:           rec.TimekeeperName(),
			TimekeeperClassification: rec.TimekeeperClassification(),
			TaskCode:                 rec.TaskCode(),
			ActivityCode:             rec.ActivityCode(),
			ExpenseCode:              rec.ExpenseCode(),
			Description:              rec.Description(),
			Units:                    units,
			Rate:                     rate,
			LineTotal:                lineTotal,
			RawLine:                  line,
		})
	}

	return entries
}

// ParseGeneric is the best-effort fallback for comma, tab or pipe separated text.
// Hours, rate and description are inferred from field values rather than positions.
func ParseGeneric(text string) []Entry {
	lines := splitLines(text)
	entries := make([]Entry, 0, len(lines))
	delimiter := detectDelimiter(lines)

	for i, line := range lines {
		if i == 0 && strings.Contains(strings.ToLower(line), "date") {
			continue // header
		}

		columns := strings.Split(line, delimiter)
		if len(columns) < 3 {
			continue
		}
		for j := range columns {
			columns[j] = strings.TrimSpace(columns[j])
		}

		units, rate, description := inferFields(columns)
		if description == "" {
			continue
		}

		name := columns[1]
		if name == "" {
			name = "Unknown"
		}

		rateDec := decimal.NewFromFloat(rate)
		entries = append(entries, Entry{
			ID:             entryID(FormatGeneric, i, line),
			LineNumber:     i + 1,
			InvoiceDate:    columns[0],
			TimekeeperName: name,
			Description:    description,
			Units:          units,
			Rate:           rateDec,
			LineTotal:      decimal.NewFromFloat(units).Mul(rateDec),
			RawLine:        line,
		})
	}

	return entries
}

// detectDelimiter inspects the first line that is not a header
func detectDelimiter(lines []string) string {
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l), "date") {
			continue
		}
		switch {
		case strings.Contains(l, "|"):
			return "|"
		case strings.Contains(l, "\t"):
			return "\t"
		default:
			return ","
		}
	}
	return ","
}

// inferFields picks hours, rate and description out of an unlabelled row
func inferFields(columns []string) (units, rate float64, description string) {
	units, rate = defaultHours, defaultRate
	foundUnits, foundRate := false, false

	for _, col := range columns {
		n, ok := parseAmount(col)
		if !ok {
			if len(col) > len(description) {
				description = col
			}
			continue
		}
		if !foundUnits && n > 0 && n <= maxPlausibleHours {
			units, foundUnits = n, true
		}
		if !foundRate && n >= minPlausibleRate && n <= maxPlausibleRate {
			rate, foundRate = n, true
		}
	}
	return units, rate, description
}
