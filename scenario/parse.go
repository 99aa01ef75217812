package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/warp/tranche-engine/amortization"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// LEGACY FIELD NAMES
// =============================================================================

// UnmarshalJSON accepts both current and legacy field names. Current names
// win when both are present.
func (d *Data) UnmarshalJSON(b []byte) error {
	type plain Data
	var wire struct {
		plain
		StartMonth    string                  `json:"startMonth"`
		LoanAmount    amortization.Number     `json:"loanAmount"`
		InterestRate  amortization.Number     `json:"interestRate"`
		Tenure        amortization.Number     `json:"tenure"`
		ExtraEMI      amortization.Number     `json:"extraEMI"`
		Disbursements []amortization.RawEvent `json:"disbursements"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	*d = Data(wire.plain)
	if d.StartDate == "" {
		d.StartDate = wire.StartMonth
	}
	fallback(&d.StatedPrincipal, wire.LoanAmount)
	fallback(&d.AnnualRatePercent, wire.InterestRate)
	fallback(&d.TenureYears, wire.Tenure)
	fallback(&d.ExtraMonthlyPayment, wire.ExtraEMI)
	if d.Tranches == nil {
		d.Tranches = wire.Disbursements
	}
	return nil
}

func fallback(dst *amortization.Number, legacy amortization.Number) {
	if !dst.IsSet() {
		*dst = legacy
	}
}

// =============================================================================
// PARSING
// =============================================================================

// Format is a scenario document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", &InvalidError{Reason: fmt.Sprintf("unsupported file extension %q", filepath.Ext(path))}
	}
}

// Parse decodes a single scenario document. The document may be a full
// scenario ({name, data}) or bare scenario data; bare data gets an empty name.
func Parse(r io.Reader, format Format) (*Scenario, error) {
	raw, err := toJSON(r, format)
	if err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &InvalidError{Reason: "document is not an object", Err: err}
	}

	var s Scenario
	if _, wrapped := envelope["data"]; wrapped {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, &InvalidError{Reason: "malformed scenario", Err: err}
		}
		return &s, nil
	}
	if err := json.Unmarshal(raw, &s.Data); err != nil {
		return nil, &InvalidError{Reason: "malformed scenario data", Err: err}
	}
	return &s, nil
}

// ParseFile reads a .json, .yaml or .yml scenario file.
func ParseFile(path string) (*Scenario, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file: %w", err)
	}
	defer f.Close()

	s, err := Parse(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// toJSON normalizes the input to JSON so both formats share one decoder and
// the same lenient field handling.
func toJSON(r io.Reader, format Format) ([]byte, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	switch format {
	case FormatJSON, "":
		return body, nil
	case FormatYAML:
		var doc any
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return nil, &InvalidError{Reason: "malformed YAML", Err: err}
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return nil, &InvalidError{Reason: "YAML is not representable as JSON", Err: err}
		}
		return out, nil
	default:
		return nil, &InvalidError{Reason: fmt.Sprintf("unknown format %q", format)}
	}
}
