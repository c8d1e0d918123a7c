package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawaudit/db"
	"lawaudit/decision/audit"
)

const invoice = "date,attorney,hours,rate,description\n" +
	"2024-03-01,AC,0.8,350,Scanning and indexing exhibits for trial binder\n" +
	"2024-03-02,AC,0.2,350,Email\n"

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	t.Setenv("CLICKHOUSE_PORT", "9440")
	t.Setenv("CLICKHOUSE_DEBUG", "true")

	cfg := ConfigFromEnv()
	assert.Equal(t, "ch.internal", cfg.Host)
	assert.Equal(t, 9440, cfg.Port)
	assert.Equal(t, "lawaudit", cfg.Database)
	assert.True(t, cfg.Debug)
}

func TestViolationRows(t *testing.T) {
	report := audit.Process(invoice)
	require.Len(t, report.Violations, 2)

	runID := uuid.New()
	at := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	rows := ViolationRows(runID, at, report)

	require.Len(t, rows, 2)
	assert.Equal(t, "FLAG-1", rows[0].FlagID)
	assert.Equal(t, "Administrative Overhead", rows[0].Type)
	assert.Equal(t, "high", rows[0].Severity)
	assert.Equal(t, "280", rows[0].LeakageAmount.String())
	assert.Equal(t, "Vague Entry", rows[1].Type)
	for i, r := range rows {
		assert.Equal(t, runID, r.RunID)
		assert.Equal(t, at, r.CreatedAt)
		assert.Equal(t, report.Violations[i].EntryID, r.EntryID)
		assert.Equal(t, uint8(report.Violations[i].Confidence), r.Confidence)
	}

	assert.Empty(t, ViolationRows(runID, at, audit.Process("")))
}

type fakeBatch struct {
	appendErr error
	sendErr   error
	appended  int
	sent      bool
	aborted   bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.appended++
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return b.sendErr
}

func (b *fakeBatch) Abort() error {
	b.aborted = true
	return nil
}

func TestWriteViolations(t *testing.T) {
	rows := ViolationRows(uuid.New(), time.Now(), audit.Process(invoice))
	require.Len(t, rows, 2)

	t.Run("sends every row", func(t *testing.T) {
		b := &fakeBatch{}
		require.NoError(t, writeViolations(b, rows))
		assert.Equal(t, 2, b.appended)
		assert.True(t, b.sent)
		assert.False(t, b.aborted)
	})

	t.Run("append failure aborts", func(t *testing.T) {
		b := &fakeBatch{appendErr: errors.New("bad column")}
		err := writeViolations(b, rows)
		require.Error(t, err)
		assert.ErrorIs(t, err, b.appendErr)
		assert.True(t, b.aborted)
		assert.False(t, b.sent)
	})

	t.Run("send failure is returned", func(t *testing.T) {
		b := &fakeBatch{sendErr: errors.New("connection reset")}
		err := writeViolations(b, rows)
		assert.ErrorIs(t, err, b.sendErr)
		assert.Contains(t, err.Error(), "failed to send violation batch")
	})
}

// TestStore_Integration requires a running ClickHouse.
// We skip if connection fails.
func TestStore_Integration(t *testing.T) {
	store, err := NewStore(ConfigFromEnv())
	if err != nil {
		t.Skip("Skipping ClickHouse integration test: clickhouse not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		t.Skip("Skipping ClickHouse integration test: clickhouse not available")
	}
	defer store.Close()

	require.NoError(t, store.Init(ctx))

	since := time.Now().Add(-time.Minute)
	rec, err := db.NewAuditRecord("it.csv", invoice, audit.Process(invoice), "warn")
	require.NoError(t, err)
	require.NoError(t, store.SaveReport(ctx, rec))

	got, err := store.GetReport(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Digest, got.Digest)
	assert.True(t, rec.TotalLeakage.Equal(got.TotalLeakage))

	_, err = store.GetReport(ctx, uuid.New())
	assert.ErrorIs(t, err, db.ErrNotFound)

	byType, err := store.LeakageByType(ctx, since)
	require.NoError(t, err)
	assert.NotEmpty(t, byType)
}
