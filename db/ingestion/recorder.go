// Package ingestion provides the persistence pipeline for finished audits
// Connects engine output to the report store and the report cache
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lawaudit/db"
	"lawaudit/decision/audit"
)

// ReportCache is the subset of the Redis cache the recorder writes to
type ReportCache interface {
	Get(ctx context.Context, digest string) (*audit.Report, bool, error)
	Put(ctx context.Context, digest string, report *audit.Report) error
}

// redactedScope prefixes cache digests of masked reports
const redactedScope = "redacted:"

// Recorder stores audit runs. Either dependency may be nil.
type Recorder struct {
	store    db.ReportStore
	cache    ReportCache
	redacted bool
}

// NewRecorder creates a recorder
func NewRecorder(store db.ReportStore, cache ReportCache) *Recorder {
	return &Recorder{store: store, cache: cache}
}

// Redacting marks the reports passing through r as masked.
// Masked and unmasked reports for the same text live under different cache keys.
func (r *Recorder) Redacting(on bool) *Recorder {
	r.redacted = on
	return r
}

// CacheDigest is the digest used as the cache key for text
func (r *Recorder) CacheDigest(text string) string {
	digest := db.Digest(text)
	if r.redacted {
		return redactedScope + digest
	}
	return digest
}

// Input is one finished audit
type Input struct {
	Source   string
	Text     string
	Report   *audit.Report
	Decision string
}

// Result tracks the outcome of recording a run
type Result struct {
	RecordID uuid.UUID     `json:"record_id"`
	Digest   string        `json:"digest"`
	Stored   bool          `json:"stored"`
	Cached   bool          `json:"cached"`
	Duration time.Duration `json:"duration"`
}

// Lookup returns a cached report for text. Cache failures are logged and treated as a miss.
func (r *Recorder) Lookup(ctx context.Context, text string) (*audit.Report, bool) {
	if r.cache == nil {
		return nil, false
	}
	report, ok, err := r.cache.Get(ctx, r.CacheDigest(text))
	if err != nil {
		log.Warn().Err(err).Msg("Report cache lookup failed")
		return nil, false
	}
	return report, ok
}

// Record persists the run to the store and refreshes the cache.
// A store failure is returned; a cache failure is only logged.
func (r *Recorder) Record(ctx context.Context, in *Input) (*Result, error) {
	start := time.Now()
	result := &Result{Digest: db.Digest(in.Text)}

	if r.store != nil {
		rec, err := db.NewAuditRecord(in.Source, in.Text, in.Report, in.Decision)
		if err != nil {
			return result, err
		}
		if err := r.store.SaveReport(ctx, rec); err != nil {
			return result, fmt.Errorf("failed to save report: %w", err)
		}
		result.RecordID = rec.ID
		result.Stored = true
	}

	if r.cache != nil {
		key := r.CacheDigest(in.Text)
		if err := r.cache.Put(ctx, key, in.Report); err != nil {
			log.Warn().Err(err).Str("digest", key).Msg("Report cache write failed")
		} else {
			result.Cached = true
		}
	}

	result.Duration = time.Since(start)
	log.Debug().
		Str("source", in.Source).
		Str("record_id", result.RecordID.String()).
		Bool("stored", result.Stored).
		Bool("cached", result.Cached).
		Dur("duration", result.Duration).
		Msg("Audit recorded")

	return result, nil
}
