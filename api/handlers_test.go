/*
handlers_test.go - HTTP tests for the API handlers

Tests run the full router over the in-memory scenario store and the
in-memory result cache.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/tranche-engine/cache"
	"github.com/warp/tranche-engine/observability"
	"github.com/warp/tranche-engine/scenario"
	"github.com/warp/tranche-engine/scenario/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const halfAndHalfBody = `{
	"statedPrincipal": 15500000,
	"annualRatePercent": 7.65,
	"tenureYears": 25,
	"constructionMonths": 18,
	"accrualPolicy": "interestOnlyDuringConstruction",
	"tranches": [{"month": 0, "amount": 7750000}, {"month": 6, "amount": "7750000"}]
}`

type testServer struct {
	handler *Handler
	router  http.Handler
	cache   *cache.Memory
	store   *store.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	c := cache.NewMemory()

	h := NewHandler(mem, nil, observability.NewMetrics())
	h.Cache = c
	h.now = func() time.Time { return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC) }

	return &testServer{handler: h, router: NewRouter(h, nil), cache: c, store: mem}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// CALCULATOR TESTS
// =============================================================================

func TestInstallment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/installment", `{"principal": 15500000, "annualRatePercent": 7.65, "termYears": 25}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[InstallmentResponse](t, rec)
	assert.InDelta(t, 116060.21, resp.Installment, 0.01)
	assert.Equal(t, 300, resp.Months)
}

func TestInstallment_RejectsZeroTerm(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/installment", `{"principal": 1000, "annualRatePercent": 7, "termYears": 0}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Details, "term")
}

func TestCalculators_ExtremeInputs(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"installment at 50000%", "/api/installment", `{"principal": 15500000, "annualRatePercent": 50000, "termYears": 25}`, http.StatusOK},
		{"installment term past cap", "/api/installment", `{"principal": 1000, "annualRatePercent": 7, "termYears": 101}`, http.StatusBadRequest},
		{"baseline overflows", "/api/baseline", `{"statedPrincipal": 1e308, "annualRatePercent": 1200, "tenureYears": 25}`, http.StatusBadRequest},
		{"rates overflow", "/api/rates/compare", `{"principal": 1e308, "tenureYears": 25, "rates": [7, 1200]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.True(t, json.Valid(rec.Body.Bytes()))
		})
	}
}

func TestBaseline(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/baseline", `{"statedPrincipal": 1200, "annualRatePercent": 0, "tenureYears": 1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"installment":100`)
	assert.Contains(t, body, `"totalInterest":0`)
}

func TestCompareRates(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/rates/compare", `{"principal": 15500000, "tenureYears": 25, "rates": [8.1, 7.65, 7.9]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		BestIndex int `json:"bestIndex"`
		Options   []struct {
			AnnualRatePercent float64 `json:"annualRatePercent"`
			Best              bool    `json:"best"`
		} `json:"options"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.BestIndex)
	require.Len(t, resp.Options, 3)
	assert.True(t, resp.Options[1].Best)

	rec = s.do(t, http.MethodPost, "/api/rates/compare", `{"principal": 100, "tenureYears": 1, "rates": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProjectPrepayment(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/prepayments/project?month=12&base=100000&rate=5&compounding=annual", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ProjectionResponse](t, rec)
	assert.InDelta(t, 105000, resp.Amount, 1e-6)

	rec = s.do(t, http.MethodGet, "/api/prepayments/project?month=12&base=100000&compounding=weekly", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/prepayments/project?month=x&base=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/prepayments/project?month=1200&base=1&rate=1e300", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SCHEDULE TESTS
// =============================================================================

func TestSchedule_InterestOnlyConstruction(t *testing.T) {
	// GIVEN: Two equal tranches with an 18-month interest-only window
	s := newTestServer(t)

	// WHEN: Running the schedule
	rec := s.do(t, http.MethodPost, "/api/schedule", halfAndHalfBody)

	// THEN: The run matches the engine and nothing was coerced
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScheduleResponse](t, rec)
	assert.Equal(t, 318, resp.Summary.ActualTenureMonths)
	assert.InDelta(t, 20849656.97, resp.Summary.TotalInterest, 0.005)
	assert.False(t, resp.Summary.Incomplete)
	assert.Empty(t, resp.Warnings)
	assert.False(t, resp.Cached)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Schedule, 319)
	assert.InDelta(t, 116060.21, resp.Baseline.Installment, 0.01)
	assert.Zero(t, resp.InterestSaved)
	assert.Equal(t, 100.0, resp.Disbursement.PercentDisbursed)
}

func TestSchedule_SecondCallIsServedFromCache(t *testing.T) {
	s := newTestServer(t)

	first := s.do(t, http.MethodPost, "/api/schedule", halfAndHalfBody)
	second := s.do(t, http.MethodPost, "/api/schedule", halfAndHalfBody)

	require.Equal(t, http.StatusOK, second.Code)
	assert.False(t, decode[ScheduleResponse](t, first).Cached)
	resp := decode[ScheduleResponse](t, second)
	assert.True(t, resp.Cached)
	assert.Equal(t, 318, resp.Summary.ActualTenureMonths)
	assert.Equal(t, 1, s.cache.Len())
}

func TestSchedule_ReportsCoercedRecords(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/schedule", `{
		"tranches": [{"month": 0, "amount": 15500000}, {"month": "soon", "amount": "abc"}]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScheduleResponse](t, rec)
	require.NotEmpty(t, resp.Warnings)
	assert.Equal(t, "tranche", resp.Warnings[0].Kind)
	assert.Equal(t, 1, resp.Warnings[0].Index)
}

func TestSchedule_ClientErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no positive tranche", `{"tranches": [{"month": 0, "amount": 0}]}`},
		{"missing tranches", `{"statedPrincipal": 100}`},
		{"invalid policy", `{"accrualPolicy": "sometimes", "tranches": [{"month": 0, "amount": 100}]}`},
		{"garbage", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rec := s.do(t, http.MethodPost, "/api/schedule", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, s.cache.Len())
		})
	}
}

func TestSchedule_ExtremeNumbersNeverCrash(t *testing.T) {
	// GIVEN: Inputs at the edge of the numeric range
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"tenure overflows int", `{"tenureYears": 1152921504606846976, "tranches": [{"month": 0, "amount": 100}]}`, http.StatusBadRequest},
		{"construction past cap", `{"constructionMonths": 1e30, "tranches": [{"month": 0, "amount": 100}]}`, http.StatusBadRequest},
		{"rate overflows emi factor", `{"annualRatePercent": 50000, "tranches": [{"month": 0, "amount": 15500000}]}`, http.StatusOK},
		{"amounts overflow", `{"statedPrincipal": 1e308, "annualRatePercent": 1200, "accrualPolicy": "fullFromStart", "tranches": [{"month": 0, "amount": 1e308}]}`, http.StatusBadRequest},
		{"growth projects inf", `{
			"tranches": [{"month": 0, "amount": 15500000}],
			"prepayments": [{"month": 120}],
			"prepaymentGrowth": {"baseAmount": 100000, "annualGrowthRate": 1e300}
		}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			// WHEN: Running the schedule
			rec := s.do(t, http.MethodPost, "/api/schedule", tt.body)

			// THEN: The response is well-formed JSON with the expected status
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.True(t, json.Valid(rec.Body.Bytes()), rec.Body.String())
		})
	}
}

func TestSchedule_FarFutureTrancheIsReportedUndisbursed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/schedule", `{
		"statedPrincipal": 100000,
		"annualRatePercent": 12,
		"tenureYears": 1,
		"constructionMonths": 0,
		"accrualPolicy": "fullFromStart",
		"tranches": [{"month": 0, "amount": 100000}, {"month": 1000, "amount": 50000}]
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScheduleResponse](t, rec)
	assert.False(t, resp.Summary.Incomplete)
	assert.Equal(t, 12, resp.Summary.ActualTenureMonths)
	assert.Equal(t, 50000.0, resp.Summary.Undisbursed)
}

func TestCompare_BreakEven(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/compare", halfAndHalfBody)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[CompareResponse](t, rec)
	assert.Equal(t, 318, resp.InterestOnly.ActualTenureMonths)
	assert.Equal(t, 287, resp.FullFromStart.ActualTenureMonths)
	assert.Equal(t, 31, resp.TenureDifference)
	assert.True(t, resp.HasBreakEven)
	assert.Equal(t, 122, resp.BreakEvenMonth)
	assert.InDelta(t, 557490.04, resp.ConstructionCashDifference, 0.01)
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestScenarios_Lifecycle(t *testing.T) {
	s := newTestServer(t)

	// Save
	rec := s.do(t, http.MethodPost, "/api/scenarios", `{"name": "Tower B", "data": `+halfAndHalfBody+`}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	saved := decode[scenario.Scenario](t, rec)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "2026-03-01T12:00:00Z", saved.Timestamp)

	// List
	rec = s.do(t, http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 15_500_000.0, list[0].Disbursement.TotalDisbursed)

	// Get
	rec = s.do(t, http.MethodGet, "/api/scenarios/Tower%20B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, saved.ID, decode[scenario.Scenario](t, rec).ID)

	// Run
	rec = s.do(t, http.MethodPost, "/api/scenarios/Tower%20B/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 318, decode[ScheduleResponse](t, rec).Summary.ActualTenureMonths)

	// Delete
	rec = s.do(t, http.MethodDelete, "/api/scenarios/Tower%20B", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/scenarios/Tower%20B", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/api/scenarios/Tower%20B", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/scenarios/Tower%20B/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios_SaveRequiresName(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios", `{"name": "  ", "data": {}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportImport(t *testing.T) {
	// GIVEN: Two saved scenarios and a working copy
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/scenarios", `{"name": "a", "data": `+halfAndHalfBody+`}`).Code)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/scenarios", `{"name": "b", "data": {"tranches": [{"month": 0, "amount": 100}]}}`).Code)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/autosave", `{"name": "draft", "data": `+halfAndHalfBody+`}`).Code)

	// WHEN: Exporting, resetting and importing the export
	rec := s.do(t, http.MethodGet, "/api/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "loan-scenarios-2026-03-01.json")
	bundle := rec.Body.String()

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/reset", "").Code)
	rec = s.do(t, http.MethodPost, "/api/import", bundle)

	// THEN: Everything is back
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[ImportResponse](t, rec).Imported)
	list := decode[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", ""))
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	snap := decode[*scenario.Autosave](t, s.do(t, http.MethodGet, "/api/autosave", ""))
	require.NotNil(t, snap)
	assert.Equal(t, "draft", snap.Name)
}

func TestImport_AcceptsLegacyFieldNames(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/import", `{
		"scenarios": [{"name": "old", "timestamp": "2025-01-01T00:00:00Z", "data": {
			"startMonth": "2025-06", "loanAmount": "5000000", "interestRate": "8.5",
			"tenure": "20", "extraEMI": "0",
			"disbursements": [{"month": "0", "amount": "5000000"}]
		}}],
		"exportDate": "2025-01-02T00:00:00Z"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/scenarios/old/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ScheduleResponse](t, rec)
	assert.Equal(t, 5_000_000.0, resp.Summary.TotalDisbursed)
	// no construction window in the legacy shape: the default 18 months apply
	assert.Equal(t, 18+240, resp.Summary.ActualTenureMonths)
}

func TestImport_RejectsMalformedBundle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/import", `{"scenarios": "nope"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutosave(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/autosave", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(bytes.TrimSpace(rec.Body.Bytes())))

	rec = s.do(t, http.MethodPut, "/api/autosave", `{"name": "wip", "data": {"statedPrincipal": "9000000"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decode[scenario.Autosave](t, s.do(t, http.MethodGet, "/api/autosave", ""))
	assert.Equal(t, "wip", snap.Name)
	assert.Equal(t, "2026-03-01T12:00:00Z", snap.SavedAt)
	assert.Equal(t, 9_000_000.0, snap.Data.Params().StatedPrincipal)
}

// =============================================================================
// OPERATIONAL TESTS
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/schedule", halfAndHalfBody)

	rec := s.do(t, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `tranche_schedule_runs_total{policy="interestOnlyDuringConstruction"} 1`)
	assert.Contains(t, body, `tranche_http_requests_total{route="/api/schedule",status="200"} 1`)
	assert.Contains(t, body, `tranche_cache_lookups_total{namespace="schedule",result="miss"} 1`)
}

func TestRouter_WithoutCacheOrMetrics(t *testing.T) {
	h := NewHandler(store.NewMemory(), nil, nil)
	router := NewRouter(h, []string{"https://loans.example"})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/schedule", bytes.NewBufferString(halfAndHalfBody)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
