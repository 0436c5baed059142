package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasehold/internal/platform/metrics"
)

func TestRecovery(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := Recovery(logger, m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, rr.Body.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Panics))
}

func TestLatencyUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	r := chi.NewRouter()
	r.Use(Latency(m))
	r.Get("/domains/{node}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/domains/0xabc", nil))

	families, err := reg.Gather()
	require.NoError(t, err)

	labels := map[string]string{}
	for _, mf := range families {
		if mf.GetName() != "leasehold_http_request_duration_seconds" {
			continue
		}
		require.Len(t, mf.GetMetric(), 1)
		for _, lp := range mf.GetMetric()[0].GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
	}
	assert.Equal(t, map[string]string{"route": "/domains/{node}", "method": "GET", "status": "418"}, labels)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/names/hash", nil))

	assert.Contains(t, buf.String(), `"path":"/names/hash"`)
	assert.Contains(t, buf.String(), `"status":200`)
}
