// Package testutil provides shared test infrastructure for specpol.
// It consolidates golden dataset types, exposure-set builders and assertion
// helpers used across the polar/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/specpol/specpol/polar"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one reference reduction: raw per-exposure beams in
// acquisition order and the expected per-element outputs.
type GoldenTestCase struct {
	Name      string      `json:"name"`
	Method    string      `json:"method"`
	Parameter string      `json:"parameter"`
	E         [][]float64 `json:"e"` // [exposure][element]
	A         [][]float64 `json:"a"`

	StokesI    []float64 `json:"stokes_i"`
	Degree     []float64 `json:"degree"`
	FirstNull  []float64 `json:"first_null,omitempty"`  // absent for two exposures
	SecondNull []float64 `json:"second_null,omitempty"` // absent for two exposures
}

// ExposureSet builds the raw BeamExposureSet of the case.
func (c GoldenTestCase) ExposureSet(t *testing.T) polar.BeamExposureSet {
	t.Helper()
	return ExposureSet(t, c.E, c.A)
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Near compares two float64 values with an absolute tolerance.
// Two NaNs compare equal.
func AssertFloat64Near(t *testing.T, name string, want, got, absTol float64) {
	t.Helper()
	if math.IsNaN(want) && math.IsNaN(got) {
		return
	}
	if diff := math.Abs(want - got); !(diff <= absTol) {
		t.Errorf("%s: got %v, want %v (diff=%v)", name, got, want, diff)
	}
}
