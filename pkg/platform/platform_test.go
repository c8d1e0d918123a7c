package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("LA_STR", "value")
	t.Setenv("LA_INT", "42")
	t.Setenv("LA_BADINT", "x")
	t.Setenv("LA_BOOL", "TRUE")
	t.Setenv("LA_DUR", "1m30s")
	t.Setenv("LA_SECS", "15")

	assert.Equal(t, "value", GetEnv("LA_STR", "d"))
	assert.Equal(t, "d", GetEnv("LA_UNSET", "d"))
	assert.Equal(t, 42, GetEnvInt("LA_INT", 1))
	assert.Equal(t, 1, GetEnvInt("LA_BADINT", 1))
	assert.True(t, GetEnvBool("LA_BOOL", false))
	assert.False(t, GetEnvBool("LA_STR", true))
	assert.True(t, GetEnvBool("LA_UNSET", true))
	assert.Equal(t, 90*time.Second, GetEnvDuration("LA_DUR", time.Second))
	assert.Equal(t, 15*time.Second, GetEnvDuration("LA_SECS", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration("LA_STR", time.Second))
}

func TestInitLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	InitLogger("debug", false)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	InitLogger("nonsense", true)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("a|b|c"))
	}))
	defer srv.Close()

	c := NewHTTPClient(3, time.Second)
	c.Backoff = time.Millisecond

	body, err := c.Get(context.Background(), srv.URL, 1024)
	require.NoError(t, err)
	assert.Equal(t, "a|b|c", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(3, time.Second)
	c.Backoff = time.Millisecond

	_, err := c.Get(context.Background(), srv.URL, 1024)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_LimitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	body, err := NewHTTPClient(0, time.Second).Get(context.Background(), srv.URL, 4)
	require.NoError(t, err)
	assert.Len(t, body, 5)
}

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	tests := []struct {
		name   string
		key    string
		header string
		want   int
	}{
		{"disabled", "", "", http.StatusNoContent},
		{"missing", "secret", "", http.StatusUnauthorized},
		{"wrong", "secret", "nope", http.StatusUnauthorized},
		{"match", "secret", "secret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			APIKeyMiddleware(tt.key)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
