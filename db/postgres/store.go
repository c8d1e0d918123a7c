// Package postgres provides the PostgreSQL implementation of db.ReportStore
// Full report bodies are kept as JSONB next to the summary columns used for listing
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"lawaudit/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_reports (
	id UUID PRIMARY KEY,
	source TEXT NOT NULL,
	digest CHAR(64) NOT NULL,
	format TEXT NOT NULL,
	total_entries INTEGER NOT NULL,
	total_billed NUMERIC(18,4) NOT NULL,
	total_leakage NUMERIC(18,4) NOT NULL,
	critical_flags INTEGER NOT NULL,
	high_flags INTEGER NOT NULL,
	medium_flags INTEGER NOT NULL,
	decision TEXT NOT NULL,
	report JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_reports_created ON audit_reports(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_reports_digest ON audit_reports(digest);
`

const summaryColumns = `id, source, digest, format, total_entries, total_billed, total_leakage,
	critical_flags, high_flags, medium_flags, decision, created_at`

// Store implements db.ReportStore on PostgreSQL
type Store struct {
	db *sql.DB
}

var _ db.ReportStore = (*Store)(nil)

// NewStore wraps an open connection pool
func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Open connects with the lib/pq driver
func Open(ctx context.Context, dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return NewStore(conn), nil
}

// Init creates the necessary database tables.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveReport inserts a record
func (s *Store) SaveReport(ctx context.Context, rec *db.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_reports (id, source, digest, format, total_entries, total_billed, total_leakage,
			critical_flags, high_flags, medium_flags, decision, report, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, rec.ID, rec.Source, rec.Digest, rec.Format, rec.TotalEntries, rec.TotalBilled, rec.TotalLeakage,
		rec.CriticalFlags, rec.HighFlags, rec.MediumFlags, rec.Decision, []byte(rec.Report), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit report: %w", err)
	}
	return nil
}

// GetReport loads a record with its report body
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*db.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+`, report FROM audit_reports WHERE id = $1`, id)

	var rec db.AuditRecord
	var body []byte
	err := row.Scan(
		&rec.ID, &rec.Source, &rec.Digest, &rec.Format, &rec.TotalEntries, &rec.TotalBilled, &rec.TotalLeakage,
		&rec.CriticalFlags, &rec.HighFlags, &rec.MediumFlags, &rec.Decision, &rec.CreatedAt, &body,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit report: %w", err)
	}
	rec.Report = body
	return &rec, nil
}

// ListReports returns the most recent records, newest first, without report bodies
func (s *Store) ListReports(ctx context.Context, limit int) ([]db.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+summaryColumns+` FROM audit_reports ORDER BY created_at DESC LIMIT $1`, db.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]db.AuditRecord, 0)
	for rows.Next() {
		var rec db.AuditRecord
		if err := rows.Scan(
			&rec.ID, &rec.Source, &rec.Digest, &rec.Format, &rec.TotalEntries, &rec.TotalBilled, &rec.TotalLeakage,
			&rec.CriticalFlags, &rec.HighFlags, &rec.MediumFlags, &rec.Decision, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit report: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list audit reports: %w", err)
	}
	return records, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
