package product

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/spectrum"
)

// Data table columns, 1-based as gnuplot addresses them.
const (
	ColumnFlag       = 1
	ColumnOrder      = 2
	ColumnDistance   = 3
	ColumnWavelength = 4
	ColumnStokesI    = 5
	ColumnStokes     = 6
	ColumnDegree     = 7
	ColumnFirstNull  = 8
	ColumnSecondNull = 9
)

// DataFileOptions controls the plot data table.
type DataFileOptions struct {
	// Surface repeats every order block with flag 1 so pm3d can draw each
	// order as a strip.
	Surface bool
}

// WriteDataFile writes the tab-separated data table of every order in
// orders that carries polarimetry. inputs supplies the raw per-exposure
// beam fluxes appended to each row, in acquisition order; the table lists
// them in canonical exposure order.
func WriteDataFile(path string, orders *spectrum.OrderVector, inputs []*spectrum.OrderVector, opts DataFileOptions) error {
	return CommitFiles(func(b *Batch) error {
		return StageDataFile(b, path, orders, inputs, opts)
	})
}

// StageDataFile stages the data table in b.
func StageDataFile(b *Batch, path string, orders *spectrum.OrderVector, inputs []*spectrum.OrderVector, opts DataFileOptions) error {
	canonical := canonicalInputs(inputs)
	err := b.Stage(path, func(w io.Writer) error {
		for _, n := range orders.Numbers() {
			o, _ := orders.Order(n)
			if o.Polarimetry == nil {
				continue
			}
			if err := writeDataBlock(w, o, canonical, opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing data file: %w", err)
	}
	return nil
}

// canonicalInputs reorders the exposure vectors the way the polarimetry
// was computed, so column i3E holds the beam that entered the formulas as
// the third exposure.
func canonicalInputs(inputs []*spectrum.OrderVector) []*spectrum.OrderVector {
	slots, ok := polar.CanonicalSlots(len(inputs))
	if !ok {
		return inputs
	}
	out := make([]*spectrum.OrderVector, len(inputs))
	for canonical, raw := range slots {
		out[canonical] = inputs[raw]
	}
	return out
}

// writeDataBlock writes one order. inputs are in canonical exposure order.
func writeDataBlock(w io.Writer, o *spectrum.Order, inputs []*spectrum.OrderVector, opts DataFileOptions) error {
	beams := make([]*spectrum.Order, len(inputs))
	for k, in := range inputs {
		beams[k], _ = in.Order(o.Number)
	}

	var b strings.Builder
	b.WriteString("# flag order distance wavelength stokes_i stokes_p degree first_null second_null")
	for k := range inputs {
		fmt.Fprintf(&b, " i%dE i%dA", k+1, k+1)
	}
	b.WriteString(" (canonical exposure order)\n")

	flags := []int{0}
	if opts.Surface {
		flags = append(flags, 1)
	}
	res := o.Polarimetry
	for bi, flag := range flags {
		for i := 0; i < res.Len(); i++ {
			fmt.Fprintf(&b, "%d\t%d\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\t%.6f\t",
				flag, o.Number,
				valueAt(o.Distance, i), valueAt(o.Wavelength, i),
				res.StokesI[i].Flux, res.Stokes[i].Flux, res.Degree[i].Flux,
				nullAt(res.FirstNull, i), nullAt(res.SecondNull, i))
			for _, exp := range beams {
				fmt.Fprintf(&b, "%.6f\t%.6f\t", beamFlux(exp, i, true), beamFlux(exp, i, false))
			}
			b.WriteByte('\n')
		}
		if bi == 0 {
			b.WriteByte('\n')
		}
	}
	b.WriteString("\n\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing order %d: %w", o.Number, err)
	}
	return nil
}

func beamFlux(o *spectrum.Order, i int, e bool) float64 {
	if o == nil || i >= o.Len() {
		return math.NaN()
	}
	if e {
		return o.Beams.E[i].Flux
	}
	return o.Beams.A[i].Flux
}
