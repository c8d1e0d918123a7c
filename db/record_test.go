package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawaudit/decision/audit"
)

const invoice = "date,attorney,hours,rate,description\n" +
	"2024-03-01,J. Dillard,0.8,350,Scanning and indexing exhibits for trial binder\n"

func TestNewAuditRecord(t *testing.T) {
	report := audit.Process(invoice)

	rec, err := NewAuditRecord("upload.csv", invoice, report, "warn")
	require.NoError(t, err)

	assert.Equal(t, "upload.csv", rec.Source)
	assert.Equal(t, Digest(invoice), rec.Digest)
	assert.Len(t, rec.Digest, 64)
	assert.Equal(t, "generic", rec.Format)
	assert.Equal(t, 1, rec.TotalEntries)
	assert.Equal(t, "280", rec.TotalLeakage.String())
	assert.Equal(t, 1, rec.HighFlags)
	assert.Equal(t, "warn", rec.Decision)

	decoded, err := rec.Decode()
	require.NoError(t, err)
	assert.True(t, decoded.TotalLeakage.Equal(report.TotalLeakage))
	require.Len(t, decoded.Violations, 1)
	assert.Equal(t, report.Violations[0].ID, decoded.Violations[0].ID)
	assert.Equal(t, report.Entries[0].ID, decoded.Entries[0].ID)
}

func TestDecode_Empty(t *testing.T) {
	_, err := (&AuditRecord{}).Decode()
	assert.Error(t, err)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, Digest("a"), Digest("a"))
	assert.NotEqual(t, Digest("a"), Digest("b"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, ClampLimit(0))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, 500, ClampLimit(10000))
}
