package httpapi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bikerides/internal/logging"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		out = append(out, line)
	}
	return out
}

func findLog(lines []map[string]any, msg string) map[string]any {
	for _, l := range lines {
		if l["msg"] == msg {
			return l
		}
	}
	return nil
}

func TestPanicBecomesInternalError(t *testing.T) {
	var buf bytes.Buffer
	s := NewServer(Options{Logger: logging.New(&buf, "debug", "json")})
	s.mux.HandleFunc("/api/v1/rides/{id}/explode", func(http.ResponseWriter, *http.Request) {
		panic("chain snapped")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rides/r-9/explode", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeInternal, body.Error.Code)

	lines := logLines(t, &buf)
	panicked := findLog(lines, "handler panicked")
	require.NotNil(t, panicked)
	assert.Equal(t, "chain snapped", panicked["panic"])
	assert.Equal(t, "/api/v1/rides/{id}/explode", panicked["route"])
	assert.Equal(t, "req-42", panicked["request_id"])
	assert.Contains(t, panicked["stack"], "middleware_test.go")

	served := findLog(lines, "request served")
	require.NotNil(t, served)
	assert.Equal(t, "ERROR", served["level"])
	assert.Equal(t, float64(http.StatusInternalServerError), served["status"])
	assert.Equal(t, "r-9", served["ride_id"])
}

func TestPanicAfterWriteKeepsResponse(t *testing.T) {
	var buf bytes.Buffer
	s := NewServer(Options{Logger: logging.New(&buf, "info", "json")})
	s.mux.HandleFunc("/half", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("partial"))
		panic("late")
	})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/half", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
	require.NotNil(t, findLog(logLines(t, &buf), "handler panicked"))
}

func TestRequestLogCarriesRideAndLevel(t *testing.T) {
	var buf bytes.Buffer
	f := newFixture(t, Options{Logger: logging.New(&buf, "info", "json")})

	resp, _ := f.do(t, http.MethodGet, "/api/v1/rides/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	served := findLog(logLines(t, &buf), "request served")
	require.NotNil(t, served)
	assert.Equal(t, "WARN", served["level"])
	assert.Equal(t, "missing", served["ride_id"])
	assert.Equal(t, "/api/v1/rides/{id}", served["route"])
	assert.Equal(t, logging.Service, served["service"])
	assert.NotEmpty(t, served["request_id"])
	assert.Greater(t, served["bytes"], float64(0))
	assert.True(t, strings.HasPrefix(served["source"].(string), "http/"))
}
