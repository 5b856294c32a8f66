package polar_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specpol/specpol/internal/testutil"
	"github.com/specpol/specpol/polar"
)

func labelledSet(t *testing.T, exposures int) polar.BeamExposureSet {
	e := make([][]float64, exposures)
	a := make([][]float64, exposures)
	for k := range e {
		e[k] = []float64{float64(k + 1)}
		a[k] = []float64{float64(10 * (k + 1))}
	}
	return testutil.ExposureSet(t, e, a)
}

func TestCanonicalize_FourExposures_SwapsThirdAndFourth(t *testing.T) {
	// GIVEN four exposures labelled 1..4 by their E flux
	raw := labelledSet(t, 4)

	// WHEN canonicalized
	got, err := polar.Canonicalize(raw)
	require.NoError(t, err)

	// THEN canonical slots 3 and 4 hold raw exposures 4 and 3, beams intact
	labels := []float64{got[0].E[0].Flux, got[1].E[0].Flux, got[2].E[0].Flux, got[3].E[0].Flux}
	assert.Equal(t, []float64{1, 2, 4, 3}, labels)
	assert.Equal(t, 40.0, got[2].A[0].Flux, "A beam must travel with its exposure")
	assert.Equal(t, 30.0, got[3].A[0].Flux, "A beam must travel with its exposure")
}

func TestCanonicalize_TwoExposures_Unchanged(t *testing.T) {
	raw := labelledSet(t, 2)

	got, err := polar.Canonicalize(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestCanonicalize_AppliedTwice_IsIdentity(t *testing.T) {
	raw := labelledSet(t, 4)

	once, err := polar.Canonicalize(raw)
	require.NoError(t, err)
	twice, err := polar.Canonicalize(once)
	require.NoError(t, err)

	assert.Equal(t, raw, twice)
}

func TestCanonicalize_DoesNotMutateInput(t *testing.T) {
	raw := labelledSet(t, 4)

	_, err := polar.Canonicalize(raw)
	require.NoError(t, err)

	assert.Equal(t, 3.0, raw[2].E[0].Flux)
	assert.Equal(t, 4.0, raw[3].E[0].Flux)
}

func TestCanonicalize_InvalidCount_ReturnsError(t *testing.T) {
	for _, n := range []int{0, 1, 3, 5} {
		_, err := polar.Canonicalize(labelledSet(t, n))
		if !errors.Is(err, polar.ErrInvalidExposureCount) {
			t.Errorf("exposures=%d: err = %v, want ErrInvalidExposureCount", n, err)
		}
	}
}

func TestCanonicalSlots(t *testing.T) {
	slots, ok := polar.CanonicalSlots(4)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 3, 2}, slots)

	// the returned slice is a copy
	slots[0] = 9
	again, _ := polar.CanonicalSlots(4)
	assert.Equal(t, 0, again[0])

	slots, ok = polar.CanonicalSlots(2)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, slots)

	_, ok = polar.CanonicalSlots(3)
	assert.False(t, ok)
}
