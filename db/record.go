// Package db defines the persisted form of audit runs and the store contract shared by the
// Postgres report store and the ClickHouse analytics store.
package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lawaudit/decision/audit"
)

// ErrNotFound is returned when a report id is unknown
var ErrNotFound = errors.New("audit report not found")

// AuditRecord is one stored audit run
type AuditRecord struct {
	ID            uuid.UUID       `json:"id"`
	Source        string          `json:"source"`
	Digest        string          `json:"digest"` // sha256 of the input text
	Format        string          `json:"format"`
	TotalEntries  int             `json:"total_entries"`
	TotalBilled   decimal.Decimal `json:"total_billed"`
	TotalLeakage  decimal.Decimal `json:"total_leakage"`
	CriticalFlags int             `json:"critical_flags"`
	HighFlags     int             `json:"high_flags"`
	MediumFlags   int             `json:"medium_flags"`
	Decision      string          `json:"decision"`
	Report        json.RawMessage `json:"report,omitempty"` // empty in listings
	CreatedAt     time.Time       `json:"created_at"`
}

// ReportStore persists audit runs
type ReportStore interface {
	SaveReport(ctx context.Context, rec *AuditRecord) error
	GetReport(ctx context.Context, id uuid.UUID) (*AuditRecord, error)
	ListReports(ctx context.Context, limit int) ([]AuditRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// Digest is the content key for an input document
func Digest(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// NewAuditRecord snapshots a report for storage
func NewAuditRecord(source, input string, report *audit.Report, decision string) (*AuditRecord, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	return &AuditRecord{
		ID:            uuid.New(),
		Source:        source,
		Digest:        Digest(input),
		Format:        string(report.Format),
		TotalEntries:  report.Summary.TotalEntries,
		TotalBilled:   report.TotalBilled,
		TotalLeakage:  report.TotalLeakage,
		CriticalFlags: report.Summary.CriticalFlags,
		HighFlags:     report.Summary.HighFlags,
		MediumFlags:   report.Summary.MediumFlags,
		Decision:      decision,
		Report:        body,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Decode unmarshals the stored report body
func (r *AuditRecord) Decode() (*audit.Report, error) {
	if len(r.Report) == 0 {
		return nil, fmt.Errorf("record %s has no report body", r.ID)
	}
	var rep audit.Report
	if err := json.Unmarshal(r.Report, &rep); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", r.ID, err)
	}
	return &rep, nil
}

// ClampLimit bounds list sizes
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
