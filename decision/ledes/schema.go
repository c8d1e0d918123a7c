package ledes

import "strings"

// Schema maps LEDES columns to field positions in a pipe-delimited record.
// A different LEDES revision is supported by declaring another Schema value.
type Schema struct {
	Name      string
	Delimiter string
	MinFields int // records with fewer fields are dropped

	InvoiceDate              int
	InvoiceNumber            int
	ClientMatterID           int
	TimekeeperID             int
	TimekeeperName           int
	TimekeeperClassification int
	TaskCode                 int
	ActivityCode             int
	ExpenseCode              int
	Units                    int
	LineTotal                int
	Description              int
	UnitCost                 int
}

// LEDES1998B is the standard column layout:
// INVOICE_DATE|INVOICE_NUMBER|CLIENT_ID|CLIENT_MATTER_ID|TIMEKEEPER_ID|TIMEKEEPER_NAME|
// TIMEKEEPER_CLASSIFICATION|TASK_BASED_CODE|ACTIVITY_CODE|EXPENSE_CODE|LINE_ITEM_NUMBER|
// EXP/FEE/INV_ADJ_TYPE|LINE_ITEM_NUMBER_OF_UNITS|LINE_ITEM_ADJUSTMENT_AMOUNT|LINE_ITEM_TOTAL|
// LINE_ITEM_DATE|LINE_ITEM_TASK_DESCRIPTION|LAW_FIRM_ID|LINE_ITEM_UNIT_COST
var LEDES1998B = Schema{
	Name:      "LEDES 1998B",
	Delimiter: "|",
	MinFields: 15,

	InvoiceDate:              0,
	InvoiceNumber:            1,
	ClientMatterID:           3,
	TimekeeperID:             4,
	TimekeeperName:           5,
	TimekeeperClassification: 6,
	TaskCode:                 7,
	ActivityCode:             8,
	ExpenseCode:              9,
	Units:                    12,
	LineTotal:                14,
	Description:              16,
	UnitCost:                 18,
}

// Record is one split line read through a Schema
type Record struct {
	schema Schema
	fields []string
}

// Split breaks a line into a Record. ok is false when the line has too few fields.
func (s Schema) Split(line string) (Record, bool) {
	fields := strings.Split(line, s.Delimiter)
	if len(fields) < s.MinFields {
		return Record{}, false
	}
	return Record{schema: s, fields: fields}, true
}

// field returns the trimmed column at idx, or "" when the record is shorter
func (r Record) field(idx int) string {
	if idx < 0 || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func (r Record) InvoiceDate() string              { return r.field(r.schema.InvoiceDate) }
func (r Record) InvoiceNumber() string            { return r.field(r.schema.InvoiceNumber) }
func (r Record) ClientMatterID() string           { return r.field(r.schema.ClientMatterID) }
func (r Record) TimekeeperID() string             { return r.field(r.schema.TimekeeperID) }
func (r Record) TimekeeperName() string           { return r.field(r.schema.TimekeeperName) }
func (r Record) TimekeeperClassification() string { return r.field(r.schema.TimekeeperClassification) }
func (r Record) TaskCode() string                 { return r.field(r.schema.TaskCode) }
func (r Record) ActivityCode() string             { return r.field(r.schema.ActivityCode) }
func (r Record) ExpenseCode() string              { return r.field(r.schema.ExpenseCode) }
func (r Record) Description() string              { return r.field(r.schema.Description) }

// Units returns billed hours, 0 when unparseable
func (r Record) Units() float64 {
	f, _ := parseNumber(r.field(r.schema.Units))
	return nonNegative(f)
}

// UnitCost returns the hourly rate, 0 when unparseable
func (r Record) UnitCost() float64 {
	f, _ := parseNumber(r.field(r.schema.UnitCost))
	return nonNegative(f)
}

// LineTotal returns the stated total. ok is false when it is missing, unparseable or zero.
func (r Record) LineTotal() (float64, bool) {
	f, ok := parseNumber(r.field(r.schema.LineTotal))
	if !ok || f == 0 {
		return 0, false
	}
	return nonNegative(f), true
}
