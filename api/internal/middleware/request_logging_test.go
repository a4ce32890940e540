package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"healthtech/api/internal/metrics"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	buf := captureLogs(t)
	reg := metrics.NewRegistry()

	var ctxHasLogger bool
	h := RequestLogger(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxHasLogger = zerolog.Ctx(r.Context()).GetLevel() != zerolog.Disabled
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.True(t, ctxHasLogger)
	assert.Contains(t, buf.String(), `"message":"http request served"`)
	assert.Contains(t, buf.String(), `"status":201`)
	assert.Equal(t, int64(1), reg.Value("http_requests_total", map[string]string{"method": "GET", "status": "2xx"}))
}

func TestRequestLoggerKeepsIncomingRequestID(t *testing.T) {
	captureLogs(t)
	h := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestRequestLoggerCountsServerErrors(t *testing.T) {
	buf := captureLogs(t)
	reg := metrics.NewRegistry()
	h := RequestLogger(reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/analyze-prescription", nil))

	assert.Contains(t, buf.String(), `"message":"http request failed"`)
	assert.Equal(t, int64(1), reg.Value("http_requests_errors_total", map[string]string{"method": "POST", "status": "5xx"}))
}

func TestRemoteIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	assert.Equal(t, "10.0.0.7", remoteIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", remoteIP(r))
}
