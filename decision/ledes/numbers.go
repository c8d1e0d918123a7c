package ledes

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// leadingNumber matches a decimal literal at the start of a field ("4.5", "12hrs", ".25")
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)

// parseNumber reads the leading decimal literal of a field.
// Leading whitespace is ignored and trailing text after the literal is discarded.
func parseNumber(field string) (float64, bool) {
	s := strings.TrimSpace(field)
	lit := leadingNumber.FindString(s)
	if lit == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseAmount is parseNumber after stripping currency symbols and thousands separators
func parseAmount(field string) (float64, bool) {
	return parseNumber(strings.NewReplacer("$", "", ",", "").Replace(field))
}

// nonNegative clamps parsed amounts; invoice lines never carry negative hours or rates
func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
