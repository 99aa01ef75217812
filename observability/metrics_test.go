package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tranche-engine/amortization"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := NewMetrics()
	policy := amortization.PolicyInterestOnlyDuringConstruction

	m.ObserveRun(policy, time.Millisecond, false)
	m.ObserveRun(policy, time.Millisecond, true)
	m.ObserveRun(amortization.PolicyFullFromStart, time.Millisecond, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(string(policy))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.incomplete.WithLabelValues(string(policy))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.incomplete.WithLabelValues(string(amortization.PolicyFullFromStart))))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.ObserveMalformedRecords("tranche", 3)
	m.ObserveRequest("/api/schedule", http.StatusOK)
	m.ObserveCache("schedule", true)
	m.ObserveCache("schedule", false)
	m.ObserveCache("schedule", false)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.malformed.WithLabelValues("tranche")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/schedule", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("schedule", "miss")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun(amortization.PolicyFullFromStart, time.Millisecond, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tranche_schedule_runs_total{policy="fullFromStart"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
