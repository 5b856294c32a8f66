package product

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specpol/specpol/internal/testutil"
	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/spectrum"
)

// reducedOrders computes one order per entry of orderNumbers from a uniform
// exposure set with a small injected signal.
func reducedOrders(t *testing.T, exposures int, method polar.Method, orderNumbers ...int) *spectrum.OrderVector {
	t.Helper()
	engine, err := polar.NewEngine(method, polar.StokesV)
	require.NoError(t, err)

	out := spectrum.NewOrderVector("out")
	for _, n := range orderNumbers {
		set := testutil.UniformExposureSet(t, exposures, 3, 100)
		set[0].E[1].Flux += 2
		set[0].E[1].Variance = 1.5
		res, err := engine.Compute(set)
		require.NoError(t, err)
		out.Add(&spectrum.Order{
			Number:      n,
			Distance:    []float64{0, 1, 2},
			Wavelength:  []float64{600.125, 600.25, 600.375},
			Polarimetry: res,
		})
	}
	return out
}

func testMetadata(exposures int) *Metadata {
	return &Metadata{
		RunID:     "run-1",
		CreatedAt: "2026-10-19T00:00:00Z",
		Method:    polar.MethodDifference,
		Parameter: "V",
		Exposures: exposures,
		MinOrder:  22,
		MaxOrder:  23,
		Inputs:    []string{"a.csv", "b.csv"},
	}
}

func TestProduct_RoundTrip_FourExposures(t *testing.T) {
	// GIVEN two reduced orders
	orders := reducedOrders(t, 4, polar.Difference{}, 22, 23)
	path := filepath.Join(t.TempDir(), "star.csv")

	// WHEN written and loaded back
	require.NoError(t, WriteProduct(path, testMetadata(4), orders))
	loaded, err := LoadProduct(path)
	require.NoError(t, err)

	// THEN metadata and per-element values survive
	assert.Equal(t, Version, loaded.Metadata.Version)
	assert.Equal(t, "run-1", loaded.Metadata.RunID)
	assert.Equal(t, []int{22, 23}, loaded.Orders.Numbers())
	for _, n := range orders.Numbers() {
		want, _ := orders.Order(n)
		got, _ := loaded.Orders.Order(n)
		assert.Equal(t, want.Polarimetry.Degree, got.Polarimetry.Degree, "order %d", n)
		assert.Equal(t, want.Polarimetry.StokesI, got.Polarimetry.StokesI, "order %d", n)
		assert.Equal(t, want.Polarimetry.FirstNull, got.Polarimetry.FirstNull, "order %d", n)
		assert.Equal(t, want.Wavelength, got.Wavelength, "order %d", n)
		assert.Equal(t, polar.StokesV, got.Polarimetry.Parameter)
	}
}

func TestProduct_TwoExposures_NullsWrittenAsNaN(t *testing.T) {
	// GIVEN a two-exposure reduction
	orders := reducedOrders(t, 2, polar.Ratio{}, 30)
	path := filepath.Join(t.TempDir(), "star.csv")
	meta := testMetadata(2)
	meta.Method = polar.MethodRatio

	// WHEN written
	require.NoError(t, WriteProduct(path, meta, orders))

	// THEN the null columns hold NaN and load back as undefined
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "order,element,distance,wavelength,stokes_i,stokes_i_variance,stokes_v,stokes_v_variance,degree,degree_variance,first_null,second_null,xcorrelation", lines[0])
	fields := strings.Split(lines[1], ",")
	assert.Equal(t, "NaN", fields[10])
	assert.Equal(t, "NaN", fields[11])

	loaded, err := LoadProduct(path)
	require.NoError(t, err)
	o, _ := loaded.Orders.Order(30)
	assert.False(t, o.Polarimetry.HasNullSpectra())
}

func TestWriteProduct_SkipsOrdersWithoutPolarimetry(t *testing.T) {
	orders := reducedOrders(t, 4, polar.Difference{}, 5)
	orders.Add(&spectrum.Order{Number: 6})
	path := filepath.Join(t.TempDir(), "p.csv")

	require.NoError(t, WriteProduct(path, testMetadata(4), orders))
	loaded, err := LoadProduct(path)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, loaded.Orders.Numbers())
}

func TestWriteProduct_UnwritableDirectory_LeavesNothing(t *testing.T) {
	// GIVEN an output path inside a missing directory
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "p.csv")

	// WHEN written
	err := WriteProduct(path, testMetadata(4), reducedOrders(t, 4, polar.Difference{}, 1))

	// THEN the error is reported and the directory holds no stray files
	require.Error(t, err)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestWriteProduct_InvalidParameter(t *testing.T) {
	meta := testMetadata(4)
	meta.Parameter = "X"
	err := WriteProduct(filepath.Join(t.TempDir(), "p.csv"), meta, spectrum.NewOrderVector("x"))
	assert.ErrorIs(t, err, polar.ErrInvalidParameter)
}

func TestLoadProduct_UnknownMetadataField_Rejected(t *testing.T) {
	// GIVEN a valid product whose sidecar gained an unknown key
	path := filepath.Join(t.TempDir(), "p.csv")
	require.NoError(t, WriteProduct(path, testMetadata(4), reducedOrders(t, 4, polar.Difference{}, 1)))
	f, err := os.OpenFile(SidecarPath(path), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("bogus: 1\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// WHEN loaded
	_, err = LoadProduct(path)

	// THEN strict parsing rejects it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestWriteFileAtomic_FailedWrite_RemovesTemp(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	err := writeFileAtomic(dest, func(w io.Writer) error {
		return os.ErrInvalid
	})

	assert.ErrorIs(t, err, os.ErrInvalid)
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestNullAt(t *testing.T) {
	assert.True(t, math.IsNaN(nullAt(nil, 3)))
	assert.Equal(t, 0.5, nullAt([]float64{0.25, 0.5}, 1))
}
