package obs_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-kasir/internal/obs"
)

func TestHTTPMetricsLabelRoutesByPattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("kasir", []float64{10, 1}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Post("/api/v1/settlements", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/api/v1/products/{name}/free-count", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/settlements", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products/cola/free-count", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodPost, "/api/v1/settlements", "201")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "/api/v1/products/{name}/free-count", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	require.Equal(t, 3, testutil.CollectAndCount(metrics.Latency))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("kasir", nil, registry)
	second := obs.NewHTTPMetrics("kasir", nil, registry)
	require.Same(t, first.Requests, second.Requests)
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 25.5, 100}, obs.ParseBucketsCSV(" 5, 25.5 ,x,,-1,100"))
	require.Empty(t, obs.ParseBucketsCSV(""))
}

func TestRequestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware)
	r.Get("/api/v1/products/{name}/free-count", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"free":1}}`))
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/cola/free-count", nil)
	req.Header.Set("Idempotency-Key", "abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	require.Contains(t, out, `"message":"http_request"`)
	require.Contains(t, out, `"level":"info"`)
	require.Contains(t, out, `"status":200`)
	require.Contains(t, out, `"route":"/api/v1/products/{name}/free-count"`)
	require.Contains(t, out, `"path":"/api/v1/products/cola/free-count"`)
	require.Contains(t, out, `"bytes":19`)
	require.Contains(t, out, `"idempotency_key":"abc"`)

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Contains(t, buf.String(), `"level":"error"`)
	require.Contains(t, buf.String(), `"status":500`)
}

func TestTracingMiddlewarePassesThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
}

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("kasir_test", registry)
	obs.MustRegisterDomainMetrics("kasir_test", registry)
	require.NotNil(t, obs.SettlementTotal)
	require.NotNil(t, obs.StockDepletedTotal)
}
