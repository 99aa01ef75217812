package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const halfAndHalfYAML = `
name: Tower B
data:
  startDate: "2026-01"
  statedPrincipal: 15500000
  annualRatePercent: 7.65
  tenureYears: 25
  constructionMonths: 18
  accrualPolicy: interestOnlyDuringConstruction
  tranches:
    - {month: 0, amount: 7750000}
    - {month: 6, amount: 7750000}
`

func writeScenario(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_PrintsSummary(t *testing.T) {
	// GIVEN: A YAML scenario file
	path := writeScenario(t, "tower.yaml", halfAndHalfYAML)
	var stdout, stderr bytes.Buffer

	// WHEN: Running with the comparison
	code := run([]string{"-compare", path}, &stdout, &stderr)

	// THEN: Summary and comparison are printed
	require.Equal(t, 0, code, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "Tower B")
	assert.Contains(t, out, "interestOnlyDuringConstruction")
	assert.Contains(t, out, "318 months (26y 6m), last payment 2052-07")
	assert.Contains(t, out, "20849656.97")
	assert.Contains(t, out, "Break-even month")
	assert.Contains(t, out, "122")
}

func TestRun_PolicyOverrideAndSchedule(t *testing.T) {
	path := writeScenario(t, "tower.yaml", halfAndHalfYAML)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-policy", "fullFromStart", "-schedule", path}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "fullFromStart")
	assert.Contains(t, out, "287 months")
	assert.Contains(t, out, "Balance")
	assert.Contains(t, out, "2026-02")
}

func TestRun_JSON(t *testing.T) {
	path := writeScenario(t, "tower.json", `{"tranches": [{"month": 0, "amount": 1200}], "statedPrincipal": 1200,
		"annualRatePercent": 0, "tenureYears": 1, "constructionMonths": 0, "accrualPolicy": "fullFromStart"}`)
	var stdout, stderr bytes.Buffer

	code := run([]string{"-json", path}, &stdout, &stderr)

	require.Equal(t, 0, code, stderr.String())
	var got struct {
		Result struct {
			ActualTenureMonths int     `json:"actualTenureMonths"`
			TotalInterest      float64 `json:"totalInterest"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, 12, got.Result.ActualTenureMonths)
	assert.Zero(t, got.Result.TotalInterest)
}

func TestRun_Failures(t *testing.T) {
	empty := writeScenario(t, "empty.json", `{"tranches": []}`)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"no file", nil, 2},
		{"unknown policy", []string{"-policy", "whenever", empty}, 2},
		{"missing file", []string{filepath.Join(t.TempDir(), "nope.json")}, 1},
		{"no positive tranche", []string{empty}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer

			code := run(tt.args, &stdout, &stderr)

			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestMonthLabel(t *testing.T) {
	assert.Equal(t, "2026-01", monthLabel("2026-01", 0))
	assert.Equal(t, "2027-03", monthLabel("2026-01", 14))
	assert.Equal(t, "+5", monthLabel("soon", 5))
}
