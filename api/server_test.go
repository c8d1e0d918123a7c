package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawaudit/db"
	"lawaudit/db/clickhouse"
	"lawaudit/decision/audit"
	"lawaudit/decision/policy"
	auditerrors "lawaudit/pkg/errors"
)

const invoice = "date,attorney,hours,rate,description\n" +
	"2024-03-01,AC,0.8,350,Scanning and indexing exhibits for trial binder\n" +
	"2024-03-02,AC,0.2,350,Email Jane Doe\n"

type memStore struct {
	records map[uuid.UUID]*db.AuditRecord
	pingErr error
}

func newMemStore() *memStore { return &memStore{records: map[uuid.UUID]*db.AuditRecord{}} }

func (m *memStore) SaveReport(_ context.Context, rec *db.AuditRecord) error {
	m.records[rec.ID] = rec
	return nil
}

func (m *memStore) GetReport(_ context.Context, id uuid.UUID) (*db.AuditRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return rec, nil
}

func (m *memStore) ListReports(context.Context, int) ([]db.AuditRecord, error) {
	out := make([]db.AuditRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return m.pingErr }
func (m *memStore) Close() error               { return nil }

type memCache map[string]*audit.Report

func (m memCache) Get(_ context.Context, d string) (*audit.Report, bool, error) {
	r, ok := m[d]
	return r, ok, nil
}

func (m memCache) Put(_ context.Context, d string, r *audit.Report) error {
	m[d] = r
	return nil
}

type fakeAnalytics struct{ since time.Time }

func (f *fakeAnalytics) LeakageByType(_ context.Context, since time.Time) ([]clickhouse.TypeLeakage, error) {
	f.since = since
	return []clickhouse.TypeLeakage{{Type: "Vague Entry", Flags: 3, Leakage: decimal.NewFromInt(90)}}, nil
}

func newTestServer(t *testing.T, cfg *Config, opts ...Option) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s, err := NewServer(cfg, opts...)
	require.NoError(t, err)
	return s.Router()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeAudit(t *testing.T, rec *httptest.ResponseRecorder) AuditResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AuditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t, nil)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, "OK", rec.Body.String())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Contains(t, rec.Body.String(), Version)

	rec = do(h, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_StoreDown(t *testing.T) {
	store := newMemStore()
	store.pingErr = errors.New("refused")
	h := newTestServer(t, nil, WithStore(store))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAudit_PlainText(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))
	req.Header.Set("Content-Type", "text/plain")
	resp := decodeAudit(t, do(h, req))

	require.NotNil(t, resp.Report)
	assert.Len(t, resp.Report.Entries, 2)
	assert.Len(t, resp.Report.Violations, 2)
	// 280 admin + 10.5 vague
	assert.Equal(t, "290.5", resp.Report.TotalLeakage.String())
	assert.Equal(t, policy.DecisionPass, resp.Policy.Decision)
	assert.Empty(t, resp.RecordID)
	assert.False(t, resp.Cached)
}

func TestAudit_JSON(t *testing.T) {
	h := newTestServer(t, nil)

	body, _ := json.Marshal(AuditRequest{Text: invoice, Source: "jan.csv"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := decodeAudit(t, do(h, req))
	assert.Len(t, resp.Report.Violations, 2)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}

const ledesInvoice = "INVOICE_DATE|INVOICE_NUMBER|CLIENT_ID|CLIENT_MATTER_ID|TIMEKEEPER_ID|TIMEKEEPER_NAME|" +
	"TIMEKEEPER_CLASSIFICATION|TASK_BASED_CODE|ACTIVITY_CODE|EXPENSE_CODE|LINE_ITEM_NUMBER|" +
	"EXP/FEE/INV_ADJ_TYPE|LINE_ITEM_NUMBER_OF_UNITS|LINE_ITEM_ADJUSTMENT_AMOUNT|LINE_ITEM_TOTAL|" +
	"LINE_ITEM_DATE|LINE_ITEM_TASK_DESCRIPTION|LAW_FIRM_ID|LINE_ITEM_UNIT_COST\n" +
	"20240331|INV-9|C1|C1-M2|TK1|Roe, Richard|ASSOCIATE|L120|A104||1|F|1|0||20240328|Filing documents with court|LF-1|450\n"

type upload struct {
	name, contentType, content string
}

func multipartRequest(t *testing.T, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="files"; filename="`+f.name+`"`)
		hdr.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, _ = part.Write([]byte(f.content))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func postRaw(t *testing.T, h http.Handler, text string) AuditResponse {
	t.Helper()
	return decodeAudit(t, do(h, httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(text))))
}

func TestAudit_MultipartMatchesRawPost(t *testing.T) {
	h := newTestServer(t, nil)

	tests := []struct {
		name string
		file upload
		text string
	}{
		{"csv with header", upload{"jan.csv", "text/csv", invoice}, invoice},
		{"ledes with header", upload{"march.txt", "text/plain", ledesInvoice}, ledesInvoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := postRaw(t, h, tt.text)
			up := decodeAudit(t, do(h, multipartRequest(t, tt.file, upload{"scan.pdf", "application/pdf", "%PDF-1.4"})))

			require.Len(t, up.Report.Entries, len(raw.Report.Entries))
			for i, e := range up.Report.Entries {
				assert.Equal(t, raw.Report.Entries[i].Description, e.Description)
			}
			assert.Equal(t, raw.Report.Format, up.Report.Format)
			assert.True(t, raw.Report.TotalBilled.Equal(up.Report.TotalBilled))
			assert.True(t, raw.Report.TotalLeakage.Equal(up.Report.TotalLeakage))
			assert.Len(t, up.Report.Violations, len(raw.Report.Violations))
		})
	}
}

func TestAudit_MultipartSeveralFiles(t *testing.T) {
	h := newTestServer(t, nil)

	resp := decodeAudit(t, do(h, multipartRequest(t,
		upload{"jan.csv", "text/csv", invoice},
		upload{"march.txt", "text/plain", ledesInvoice},
	)))

	require.Len(t, resp.Report.Entries, 3)
	for _, e := range resp.Report.Entries {
		assert.NotEqual(t, "description", e.Description)
		assert.NotEqual(t, "LINE_ITEM_TASK_DESCRIPTION", e.Description)
	}
	// 350 from the csv, 450 from the ledes line
	assert.Equal(t, "800", resp.Report.TotalBilled.String())
	// 290.5 from the csv, the full ledes filing line
	assert.Equal(t, "740.5", resp.Report.TotalLeakage.String())

	rec := do(h, multipartRequest(t, upload{"scan.pdf", "application/pdf", "%PDF-1.4"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), auditerrors.ErrCodeEmptyInput)
}

func TestAudit_InputErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRequestSize = 64
	h := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader("  \n"))
	rec := do(h, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), auditerrors.ErrCodeEmptyInput)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))
	rec = do(h, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), auditerrors.ErrCodeInputTooLarge)
}

func TestAudit_StoreAndCache(t *testing.T) {
	store := newMemStore()
	cache := memCache{}
	h := newTestServer(t, nil, WithStore(store), WithCache(cache))

	post := func() AuditResponse {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))
		return decodeAudit(t, do(h, req))
	}

	first := post()
	assert.False(t, first.Cached)
	require.NotEmpty(t, first.RecordID)

	second := post()
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.RecordID, second.RecordID)
	assert.Len(t, store.records, 2)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/audits/"+first.RecordID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got db.AuditRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "pass", got.Decision)
	assert.Equal(t, "290.5", got.TotalLeakage.String())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/audits", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []db.AuditRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	assert.Equal(t, http.StatusNotFound, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/audits/"+uuid.NewString(), nil)).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/audits/not-a-uuid", nil)).Code)
}

func TestAudits_NoStore(t *testing.T) {
	h := newTestServer(t, nil)
	assert.Equal(t, http.StatusNotImplemented, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/audits", nil)).Code)
	assert.Equal(t, http.StatusNotImplemented, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/audits/"+uuid.NewString(), nil)).Code)
	assert.Equal(t, http.StatusNotImplemented, do(h, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/leakage", nil)).Code)
}

func TestAudit_Redaction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedactPII = true
	h := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))
	resp := decodeAudit(t, do(h, req))
	assert.NotContains(t, resp.Report.Entries[1].Description, "Jane Doe")
	assert.Contains(t, resp.Report.Entries[1].Description, "[LAWYER_NAME_MASKED]")
}

func TestAudit_RedactionSharedCache(t *testing.T) {
	cache := memCache{}
	plain := newTestServer(t, nil, WithCache(cache))
	masked := DefaultConfig()
	masked.RedactPII = true
	redacting := newTestServer(t, masked, WithCache(cache))

	first := decodeAudit(t, do(plain, httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))))
	assert.False(t, first.Cached)
	assert.Contains(t, first.Report.Entries[1].Description, "Jane Doe")

	resp := decodeAudit(t, do(redacting, httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))))
	assert.False(t, resp.Cached)
	assert.NotContains(t, resp.Report.Entries[1].Description, "Jane Doe")
	assert.Len(t, cache, 2)

	again := decodeAudit(t, do(redacting, httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))))
	assert.True(t, again.Cached)
	assert.NotContains(t, again.Report.Entries[1].Description, "Jane Doe")
}

func TestAudit_CustomPolicyDenies(t *testing.T) {
	custom := []policy.Policy{{
		ID: "cap", Name: "Leakage cap", Type: policy.PolicyTypeLeakageLimit,
		Severity: policy.SeverityError, Threshold: 100, Enabled: true,
	}}
	h := newTestServer(t, nil, WithPolicies(custom))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))
	resp := decodeAudit(t, do(h, req))
	assert.Equal(t, policy.DecisionDeny, resp.Policy.Decision)
}

func TestNewServer_InvalidPolicy(t *testing.T) {
	_, err := NewServer(nil, WithPolicies([]policy.Policy{{ID: "x", Type: "nope", Severity: policy.SeverityError}}))
	assert.Error(t, err)
}

func TestAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	h := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))
	assert.Equal(t, http.StatusUnauthorized, do(h, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/audit", strings.NewReader(invoice))
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, do(h, req).Code)

	// health stays open
	assert.Equal(t, http.StatusOK, do(h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestAnalytics(t *testing.T) {
	a := &fakeAnalytics{}
	h := newTestServer(t, nil, WithAnalytics(a))

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/leakage?since=2024-01-01T00:00:00Z", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Vague Entry"`)
	assert.Equal(t, 2024, a.since.Year())

	rec = do(h, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/leakage?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := parseSince("", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -30), got)

	got, err = parseSince("48h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-48*time.Hour), got)

	_, err = parseSince("-1h", now)
	assert.Error(t, err)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/audit", nil)
	req.Header.Set("Origin", "https://portal.example")
	rec := do(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://portal.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDACT_PII", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDACT_NAMES", "A. Partner")

	cfg := ConfigFromEnv()
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.RedactPII)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"A. Partner"}, cfg.RedactNames)
}
