package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"lawaudit/db"
	"lawaudit/db/ingestion"
	"lawaudit/decision/audit"
	"lawaudit/decision/policy"
	auditerrors "lawaudit/pkg/errors"
)

// AuditRequest is the JSON form of POST /api/v1/audit
type AuditRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// AuditResponse is the audit result
type AuditResponse struct {
	Report   *audit.Report            `json:"report"`
	Policy   *policy.EvaluationResult `json:"policy"`
	RecordID string                   `json:"record_id,omitempty"`
	Cached   bool                     `json:"cached"`
}

// ErrorResponse is returned for every non-2xx API response
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// documentSeparator joins uploaded files into the digested input; it cannot occur in text uploads
const documentSeparator = "\x00"

// accepted upload types for multipart bodies
var uploadTypes = map[string]bool{
	"text/plain": true,
	"text/csv":   true,
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "lawaudit-api",
		"version": Version,
		"uptime":  time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Check database connectivity
	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Report store not ready")
			s.jsonError(w, r, http.StatusServiceUnavailable, "", "database not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"version": Version,
		"service": "lawaudit-api",
	})
}

// =============================================================================
// AUDIT ENDPOINT
// =============================================================================

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)

	source, docs, err := s.readInvoice(r)
	if err != nil {
		s.inputError(w, r, err)
		return
	}
	text := strings.Join(docs, documentSeparator)
	if strings.TrimSpace(text) == "" {
		s.inputError(w, r, auditerrors.NewEmptyInputError(source))
		return
	}

	ctx := r.Context()
	report, cached := s.recorder.Lookup(ctx, text)
	if !cached {
		report = s.engine.ProcessDocuments(docs...)
		if s.config.RedactPII {
			report = s.redactor.Report(report)
		}
	}

	result, err := s.policies.Evaluate(ctx, report, s.custom...)
	if err != nil {
		s.jsonError(w, r, http.StatusInternalServerError, auditerrors.ErrCodePolicyInvalid, err.Error())
		return
	}

	resp := AuditResponse{Report: report, Policy: result, Cached: cached}

	rec, err := s.recorder.Record(ctx, &ingestion.Input{
		Source:   source,
		Text:     text,
		Report:   report,
		Decision: string(result.Decision),
	})
	if err != nil {
		log.Error().Err(err).Str("source", source).Msg("Failed to record audit")
		s.jsonError(w, r, http.StatusInternalServerError, auditerrors.ErrCodeStoreFailed, "failed to store audit report")
		return
	}
	if rec.Stored {
		resp.RecordID = rec.RecordID.String()
	}

	s.jsonResponse(w, http.StatusOK, resp)
}

// readInvoice extracts the invoice documents from a plain, JSON or multipart body
func (s *Server) readInvoice(r *http.Request) (source string, docs []string, err error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		return s.readUpload(r)

	case "application/json":
		var req AuditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", nil, bodyError(err, "invalid request body")
		}
		if req.Source == "" {
			req.Source = "api"
		}
		return req.Source, []string{req.Text}, nil

	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return "", nil, bodyError(err, "failed to read request body")
		}
		return "api", []string{string(body)}, nil
	}
}

// readUpload returns every text/plain or text/csv part of the "files" field as its own document,
// so each file's header row is seen by the parser as the first line.
func (s *Server) readUpload(r *http.Request) (string, []string, error) {
	if err := r.ParseMultipartForm(s.config.MaxRequestSize); err != nil {
		return "", nil, bodyError(err, "invalid multipart body")
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		return "", nil, errors.New("no files provided")
	}

	docs := make([]string, 0, len(files))
	names := make([]string, 0, len(files))
	for _, fh := range files {
		mediaType, _, _ := mime.ParseMediaType(fh.Header.Get("Content-Type"))
		if !uploadTypes[mediaType] {
			log.Warn().Str("file", fh.Filename).Str("type", mediaType).Msg("Skipping unsupported upload type")
			continue
		}

		f, err := fh.Open()
		if err != nil {
			return "", nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return "", nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}

		docs = append(docs, string(data))
		names = append(names, fh.Filename)
	}

	return strings.Join(names, ","), docs, nil
}

func bodyError(err error, msg string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return auditerrors.NewInputTooLargeError("api", tooLarge.Limit)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *Server) inputError(w http.ResponseWriter, r *http.Request, err error) {
	code := auditerrors.Code(err)
	status := http.StatusBadRequest
	if code == auditerrors.ErrCodeInputTooLarge {
		status = http.StatusRequestEntityTooLarge
	}
	s.jsonError(w, r, status, code, err.Error())
}

// =============================================================================
// STORED RUNS
// =============================================================================

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.jsonError(w, r, http.StatusNotImplemented, "", "report store not configured")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.store.ListReports(r.Context(), limit)
	if err != nil {
		s.jsonError(w, r, http.StatusInternalServerError, auditerrors.ErrCodeStoreFailed, "failed to list audit reports")
		return
	}
	s.jsonResponse(w, http.StatusOK, records)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.jsonError(w, r, http.StatusNotImplemented, "", "report store not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.jsonError(w, r, http.StatusBadRequest, "", "invalid audit id")
		return
	}

	rec, err := s.store.GetReport(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		s.jsonError(w, r, http.StatusNotFound, "", "audit report not found")
		return
	}
	if err != nil {
		s.jsonError(w, r, http.StatusInternalServerError, auditerrors.ErrCodeStoreFailed, "failed to load audit report")
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// =============================================================================
// ANALYTICS
// =============================================================================

func (s *Server) handleLeakageByType(w http.ResponseWriter, r *http.Request) {
	if s.analytics == nil {
		s.jsonError(w, r, http.StatusNotImplemented, "", "analytics store not configured")
		return
	}

	since, err := parseSince(r.URL.Query().Get("since"), time.Now())
	if err != nil {
		s.jsonError(w, r, http.StatusBadRequest, "", err.Error())
		return
	}

	rows, err := s.analytics.LeakageByType(r.Context(), since)
	if err != nil {
		s.jsonError(w, r, http.StatusInternalServerError, auditerrors.ErrCodeStoreFailed, "failed to query analytics")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"since":   since.UTC().Format(time.RFC3339),
		"by_type": rows,
	})
}

// parseSince accepts an RFC3339 timestamp or a lookback duration such as "168h"; default 30 days
func parseSince(v string, now time.Time) (time.Time, error) {
	if v == "" {
		return now.AddDate(0, 0, -30), nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid since %q: want RFC3339 time or duration", v)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) jsonError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.jsonResponse(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	})
}
