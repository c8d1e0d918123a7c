// Package clickhouse provides the ClickHouse implementation of db.ReportStore
// Optimized for columnar analytics over audit runs and their individual findings
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lawaudit/db"
	"lawaudit/decision/audit"
	"lawaudit/pkg/platform"
)

// Config holds ClickHouse connection configuration
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "lawaudit",
		Username: "default",
		Password: "",
		Debug:    false,
	}
}

// ConfigFromEnv overlays CLICKHOUSE_* variables on the defaults
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	cfg.Host = platform.GetEnv("CLICKHOUSE_HOST", cfg.Host)
	cfg.Port = platform.GetEnvInt("CLICKHOUSE_PORT", cfg.Port)
	cfg.Database = platform.GetEnv("CLICKHOUSE_DATABASE", cfg.Database)
	cfg.Username = platform.GetEnv("CLICKHOUSE_USER", cfg.Username)
	cfg.Password = platform.GetEnv("CLICKHOUSE_PASSWORD", cfg.Password)
	cfg.Debug = platform.GetEnvBool("CLICKHOUSE_DEBUG", cfg.Debug)
	return cfg
}

// ViolationRow is one finding as stored in audit_violations
type ViolationRow struct {
	RunID         uuid.UUID       `ch:"run_id"`
	FlagID        string          `ch:"flag_id"`
	Type          string          `ch:"type"`
	Severity      string          `ch:"severity"`
	EntryID       string          `ch:"entry_id"`
	LeakageAmount decimal.Decimal `ch:"leakage_amount"`
	Confidence    uint8           `ch:"confidence"`
	CreatedAt     time.Time       `ch:"created_at"`
}

// TypeLeakage aggregates findings of one violation type
type TypeLeakage struct {
	Type    string          `json:"type"`
	Flags   uint64          `json:"flags"`
	Leakage decimal.Decimal `json:"leakage"`
}

// Store implements db.ReportStore using ClickHouse
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

var _ db.ReportStore = (*Store)(nil)

// NewStore creates a new ClickHouse audit store
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// =============================================================================
// SCHEMA
// =============================================================================

var schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_runs (
		id UUID,
		source String,
		digest FixedString(64),
		format LowCardinality(String),
		total_entries UInt32,
		total_billed Decimal(18, 4),
		total_leakage Decimal(18, 4),
		critical_flags UInt32,
		high_flags UInt32,
		medium_flags UInt32,
		decision LowCardinality(String),
		report String,
		created_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS audit_violations (
		run_id UUID,
		flag_id String,
		type LowCardinality(String),
		severity LowCardinality(String),
		entry_id String,
		leakage_amount Decimal(18, 4),
		confidence UInt8,
		created_at DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (type, created_at, run_id)`,
}

// Init creates the tables if they do not exist
func (s *Store) Init(ctx context.Context) error {
	for _, ddl := range schema {
		if err := s.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// =============================================================================
// RUN OPERATIONS
// =============================================================================

// SaveReport batch-inserts one row per finding, then writes the run row.
// Findings go first so a failed save never leaves a run without its violations.
func (s *Store) SaveReport(ctx context.Context, rec *db.AuditRecord) error {
	report, err := rec.Decode()
	if err != nil {
		return err
	}
	if err := s.insertViolations(ctx, ViolationRows(rec.ID, rec.CreatedAt, report)); err != nil {
		return err
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO audit_runs (
			id, source, digest, format, total_entries, total_billed, total_leakage,
			critical_flags, high_flags, medium_flags, decision, report, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Source, rec.Digest, rec.Format, uint32(rec.TotalEntries),
		rec.TotalBilled, rec.TotalLeakage,
		uint32(rec.CriticalFlags), uint32(rec.HighFlags), uint32(rec.MediumFlags),
		rec.Decision, string(rec.Report), rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit run %s: %w", rec.ID, err)
	}
	return nil
}

// batchWriter is the part of driver.Batch used for violation inserts
type batchWriter interface {
	Append(v ...any) error
	Send() error
	Abort() error
}

func (s *Store) insertViolations(ctx context.Context, rows []ViolationRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO audit_violations (
			run_id, flag_id, type, severity, entry_id, leakage_amount, confidence, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	return writeViolations(batch, rows)
}

// writeViolations appends rows and sends the batch, aborting it on any append failure
func writeViolations(batch batchWriter, rows []ViolationRow) error {
	for _, r := range rows {
		if err := batch.Append(
			r.RunID, r.FlagID, r.Type, r.Severity, r.EntryID,
			r.LeakageAmount, r.Confidence, r.CreatedAt,
		); err != nil {
			if abortErr := batch.Abort(); abortErr != nil {
				return fmt.Errorf("failed to append to batch: %w (abort: %v)", err, abortErr)
			}
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send violation batch: %w", err)
	}
	return nil
}

// ViolationRows flattens a report's findings for the analytics table
func ViolationRows(runID uuid.UUID, at time.Time, report *audit.Report) []ViolationRow {
	rows := make([]ViolationRow, 0, len(report.Violations))
	for _, v := range report.Violations {
		rows = append(rows, ViolationRow{
			RunID:         runID,
			FlagID:        v.ID,
			Type:          string(v.Type),
			Severity:      string(v.Severity),
			EntryID:       v.EntryID,
			LeakageAmount: v.LeakageAmount,
			Confidence:    uint8(min(max(v.Confidence, 0), 100)),
			CreatedAt:     at,
		})
	}
	return rows
}

// GetReport retrieves a run by ID
func (s *Store) GetReport(ctx context.Context, id uuid.UUID) (*db.AuditRecord, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, source, digest, format, total_entries, total_billed, total_leakage,
			   critical_flags, high_flags, medium_flags, decision, report, created_at
		FROM audit_runs
		WHERE id = ?
		LIMIT 1
	`, id)

	rec, body, err := scanRun(row.Scan, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit run: %w", err)
	}
	rec.Report = []byte(body)
	return rec, nil
}

// ListReports lists the latest runs without their report bodies
func (s *Store) ListReports(ctx context.Context, limit int) ([]db.AuditRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, source, digest, format, total_entries, total_billed, total_leakage,
			   critical_flags, high_flags, medium_flags, decision, created_at
		FROM audit_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, db.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit runs: %w", err)
	}
	defer rows.Close()

	records := make([]db.AuditRecord, 0)
	for rows.Next() {
		rec, _, err := scanRun(rows.Scan, false)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit run: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanRun(scan func(dest ...any) error, withBody bool) (*db.AuditRecord, string, error) {
	var (
		rec                      db.AuditRecord
		entries, crit, high, med uint32
		body                     string
	)
	dest := []any{
		&rec.ID, &rec.Source, &rec.Digest, &rec.Format, &entries, &rec.TotalBilled, &rec.TotalLeakage,
		&crit, &high, &med, &rec.Decision,
	}
	if withBody {
		dest = append(dest, &body)
	}
	dest = append(dest, &rec.CreatedAt)

	if err := scan(dest...); err != nil {
		return nil, "", err
	}
	rec.TotalEntries = int(entries)
	rec.CriticalFlags, rec.HighFlags, rec.MediumFlags = int(crit), int(high), int(med)
	return &rec, body, nil
}

// =============================================================================
// ANALYTICS
// =============================================================================

// LeakageByType totals findings per violation type since a point in time, largest leakage first
func (s *Store) LeakageByType(ctx context.Context, since time.Time) ([]TypeLeakage, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT type, count() AS flags, sum(leakage_amount) AS leakage
		FROM audit_violations
		WHERE created_at >= ?
		GROUP BY type
		ORDER BY leakage DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query leakage by type: %w", err)
	}
	defer rows.Close()

	out := make([]TypeLeakage, 0)
	for rows.Next() {
		var tl TypeLeakage
		if err := rows.Scan(&tl.Type, &tl.Flags, &tl.Leakage); err != nil {
			return nil, fmt.Errorf("failed to scan leakage row: %w", err)
		}
		out = append(out, tl)
	}
	return out, rows.Err()
}
