package product

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/spectrum"
)

// rawInputs builds exposure vectors carrying order n with E=A=k+1 flux.
func rawInputs(exposures, n, elements int) []*spectrum.OrderVector {
	inputs := make([]*spectrum.OrderVector, exposures)
	for k := range inputs {
		o := &spectrum.Order{Number: n}
		for i := 0; i < elements; i++ {
			o.Beams.E = append(o.Beams.E, polar.FluxSample{Flux: float64(k + 1)})
			o.Beams.A = append(o.Beams.A, polar.FluxSample{Flux: float64(k + 1)})
		}
		inputs[k] = spectrum.NewOrderVector("in")
		inputs[k].Add(o)
	}
	return inputs
}

func dataRows(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rows []string
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}

func TestWriteDataFile_FlatBlocks(t *testing.T) {
	// GIVEN one reduced four-exposure order with three elements
	orders := reducedOrders(t, 4, polar.Difference{}, 40)
	path := filepath.Join(t.TempDir(), "polar.dat")

	// WHEN the data table is written
	require.NoError(t, WriteDataFile(path, orders, rawInputs(4, 40, 3), DataFileOptions{}))

	// THEN each element is one tab-separated row with six-decimal values
	rows := dataRows(t, path)
	require.Len(t, rows, 3)
	fields := strings.Split(strings.TrimSuffix(rows[0], "\t"), "\t")
	assert.Len(t, fields, 9+2*4)
	assert.Equal(t, "0", fields[ColumnFlag-1])
	assert.Equal(t, "40", fields[ColumnOrder-1])
	assert.Equal(t, "600.125000", fields[ColumnWavelength-1])
	assert.Equal(t, "3.000000", fields[len(fields)-1], "last column is the A beam of canonical exposure 4")
}

func TestWriteDataFile_BeamColumns_FollowCanonicalExposureOrder(t *testing.T) {
	// GIVEN raw exposures whose fluxes equal their acquisition index
	orders := reducedOrders(t, 4, polar.Difference{}, 40)
	path := filepath.Join(t.TempDir(), "polar.dat")

	// WHEN the data table is written
	require.NoError(t, WriteDataFile(path, orders, rawInputs(4, 40, 3), DataFileOptions{}))

	// THEN the beam pairs list raw exposures 1, 2, 4, 3
	fields := strings.Split(strings.TrimSuffix(dataRows(t, path)[0], "\t"), "\t")
	beams := fields[ColumnSecondNull:]
	assert.Equal(t, []string{
		"1.000000", "1.000000", "2.000000", "2.000000",
		"4.000000", "4.000000", "3.000000", "3.000000",
	}, beams)
}

func TestWriteDataFile_TwoExposures_AcquisitionOrderKept(t *testing.T) {
	orders := reducedOrders(t, 2, polar.Difference{}, 9)
	path := filepath.Join(t.TempDir(), "polar.dat")

	require.NoError(t, WriteDataFile(path, orders, rawInputs(2, 9, 3), DataFileOptions{}))

	fields := strings.Split(strings.TrimSuffix(dataRows(t, path)[0], "\t"), "\t")
	assert.Equal(t, []string{"1.000000", "1.000000", "2.000000", "2.000000"}, fields[ColumnSecondNull:])
}

func TestWriteDataFile_SurfaceRepeatsBlockWithFlagOne(t *testing.T) {
	orders := reducedOrders(t, 4, polar.Difference{}, 40, 41)
	inputs := rawInputs(4, 40, 3)
	for k, in := range rawInputs(4, 41, 3) {
		o, _ := in.Order(41)
		inputs[k].Add(o)
	}
	path := filepath.Join(t.TempDir(), "polar.dat")

	require.NoError(t, WriteDataFile(path, orders, inputs, DataFileOptions{Surface: true}))

	rows := dataRows(t, path)
	require.Len(t, rows, 12)
	assert.True(t, strings.HasPrefix(rows[0], "0\t40\t"))
	assert.True(t, strings.HasPrefix(rows[3], "1\t40\t"))
	assert.True(t, strings.HasPrefix(rows[6], "0\t41\t"))
}

func TestWriteDataFile_TwoExposures_UndefinedNulls(t *testing.T) {
	orders := reducedOrders(t, 2, polar.Ratio{}, 9)
	path := filepath.Join(t.TempDir(), "polar.dat")

	require.NoError(t, WriteDataFile(path, orders, rawInputs(2, 9, 3), DataFileOptions{}))

	fields := strings.Split(dataRows(t, path)[0], "\t")
	assert.Equal(t, "NaN", fields[ColumnFirstNull-1])
	assert.Equal(t, "NaN", fields[ColumnSecondNull-1])
}

func TestWriteDataFile_BlankLinesSeparateOrders(t *testing.T) {
	orders := reducedOrders(t, 4, polar.Difference{}, 3)
	path := filepath.Join(t.TempDir(), "polar.dat")
	require.NoError(t, WriteDataFile(path, orders, rawInputs(4, 3, 3), DataFileOptions{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\t\n\n\n\n"), "block ends with three blank lines")
}
