package middleware

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"os"

	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerRecordsStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h := RequestID(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/List", nil))

	rid := w.Header().Get("X-Request-Id")
	require.NotEmpty(t, rid)

	line := buf.String()
	assert.Contains(t, line, "POST /List 404")
	assert.Contains(t, line, "rid="+rid)
}

func TestRequestIDKeepsClientSuppliedID(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-Id", "client-id-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "client-id-1", w.Header().Get("X-Request-Id"))
}
