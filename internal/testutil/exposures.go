package testutil

import (
	"testing"

	"github.com/specpol/specpol/polar"
)

// ExposureSet builds a BeamExposureSet from per-exposure E and A fluxes
// ([exposure][element]) with zero variances.
func ExposureSet(t *testing.T, e, a [][]float64) polar.BeamExposureSet {
	t.Helper()
	if len(e) != len(a) {
		t.Fatalf("ExposureSet: %d E exposures, %d A exposures", len(e), len(a))
	}
	set := make(polar.BeamExposureSet, len(e))
	for k := range e {
		ev, err := polar.NewFluxVector(e[k], nil)
		if err != nil {
			t.Fatal(err)
		}
		av, err := polar.NewFluxVector(a[k], nil)
		if err != nil {
			t.Fatal(err)
		}
		set[k] = polar.ExposureBeams{E: ev, A: av}
	}
	return set
}

// UniformExposureSet builds a set where every exposure has E == A == flux
// over n elements. Such a set carries no polarization signal.
func UniformExposureSet(t *testing.T, exposures, n int, flux float64) polar.BeamExposureSet {
	t.Helper()
	e := make([][]float64, exposures)
	for k := range e {
		e[k] = make([]float64, n)
		for i := range e[k] {
			e[k][i] = flux * float64(i+1)
		}
	}
	return ExposureSet(t, e, e)
}

// SwapLastPair returns a copy of a four-exposure set with exposures 3 and 4
// exchanged. Sets of any other size are returned as a plain copy.
func SwapLastPair(set polar.BeamExposureSet) polar.BeamExposureSet {
	out := append(polar.BeamExposureSet(nil), set...)
	if len(out) == 4 {
		out[2], out[3] = out[3], out[2]
	}
	return out
}
