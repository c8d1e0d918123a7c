package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawaudit/db"
	"lawaudit/decision/audit"
)

type memStore struct {
	saved []*db.AuditRecord
	err   error
}

func (m *memStore) SaveReport(_ context.Context, rec *db.AuditRecord) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memStore) GetReport(_ context.Context, id uuid.UUID) (*db.AuditRecord, error) {
	for _, r := range m.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) ListReports(context.Context, int) ([]db.AuditRecord, error) { return nil, nil }
func (m *memStore) Ping(context.Context) error                                 { return nil }
func (m *memStore) Close() error                                               { return nil }

type memCache struct {
	items map[string]*audit.Report
	err   error
}

func (m *memCache) Get(_ context.Context, digest string) (*audit.Report, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	r, ok := m.items[digest]
	return r, ok, nil
}

func (m *memCache) Put(_ context.Context, digest string, r *audit.Report) error {
	if m.err != nil {
		return m.err
	}
	m.items[digest] = r
	return nil
}

const text = "date,attorney,hours,rate,description\n2024-03-02,AC,0.2,350,Email\n"

func TestRecorder_Record(t *testing.T) {
	store := &memStore{}
	cache := &memCache{items: map[string]*audit.Report{}}
	rec := NewRecorder(store, cache)
	report := audit.Process(text)

	_, hit := rec.Lookup(context.Background(), text)
	assert.False(t, hit)

	res, err := rec.Record(context.Background(), &Input{Source: "s.csv", Text: text, Report: report, Decision: "warn"})
	require.NoError(t, err)
	assert.True(t, res.Stored)
	assert.True(t, res.Cached)
	assert.Equal(t, db.Digest(text), res.Digest)

	require.Len(t, store.saved, 1)
	assert.Equal(t, res.RecordID, store.saved[0].ID)
	assert.Equal(t, "warn", store.saved[0].Decision)

	cached, hit := rec.Lookup(context.Background(), text)
	require.True(t, hit)
	assert.Same(t, report, cached)
}

func TestRecorder_StoreFailure(t *testing.T) {
	rec := NewRecorder(&memStore{err: errors.New("disk full")}, nil)
	_, err := rec.Record(context.Background(), &Input{Text: text, Report: audit.Process(text)})
	assert.ErrorContains(t, err, "disk full")
}

func TestRecorder_CacheFailureIsSoft(t *testing.T) {
	cache := &memCache{err: errors.New("redis down")}
	rec := NewRecorder(nil, cache)

	res, err := rec.Record(context.Background(), &Input{Text: text, Report: audit.Process(text)})
	require.NoError(t, err)
	assert.False(t, res.Stored)
	assert.False(t, res.Cached)
	assert.Equal(t, uuid.Nil, res.RecordID)

	_, hit := rec.Lookup(context.Background(), text)
	assert.False(t, hit)
}

func TestRecorder_RedactionScopesCache(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{items: map[string]*audit.Report{}}
	plain := NewRecorder(nil, cache)
	masked := NewRecorder(nil, cache).Redacting(true)

	assert.Equal(t, db.Digest(text), plain.CacheDigest(text))
	assert.Equal(t, "redacted:"+db.Digest(text), masked.CacheDigest(text))

	_, err := plain.Record(ctx, &Input{Text: text, Report: audit.Process(text)})
	require.NoError(t, err)

	_, hit := masked.Lookup(ctx, text)
	assert.False(t, hit, "masked lookup must not return an unmasked report")

	res, err := masked.Record(ctx, &Input{Text: text, Report: audit.Process(text)})
	require.NoError(t, err)
	assert.Equal(t, db.Digest(text), res.Digest)
	assert.Len(t, cache.items, 2)

	_, hit = masked.Lookup(ctx, text)
	assert.True(t, hit)
}
