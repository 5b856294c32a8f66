// Package plot generates gnuplot scripts for the data table written by
// product.WriteDataFile and optionally runs gnuplot on them.
package plot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/specpol/specpol/polar"
	"github.com/specpol/specpol/polar/product"
)

// DegreeScale magnifies the polarization spectra in the stacked 2D plot so
// they are visible against the unit order spacing.
const DegreeScale = 10.0

// nullOffset separates the null spectra from the degree of polarization in
// the stacked 2D plot.
const nullOffset = 0.2

// Options describes one plot.
type Options struct {
	ScriptPath string // required
	DataPath   string // data table written by product.WriteDataFile
	EPSPath    string // optional postscript output

	Parameter polar.StokesParameter
	MinOrder  int
	MaxOrder  int

	Surface     bool // pm3d map instead of stacked orders
	Continuum   bool // surface only: Stokes I and the parameter flux
	Interactive bool // display on x11 and keep the window open
}

// Validate checks the paths and parameter.
func (o Options) Validate() error {
	if o.ScriptPath == "" {
		return errors.New("plot script path is required")
	}
	if o.DataPath == "" {
		return errors.New("plot data path is required")
	}
	if !o.Parameter.Requestable() {
		return fmt.Errorf("%w: %v; valid: Q, U, V", polar.ErrInvalidParameter, o.Parameter)
	}
	if o.Continuum && !o.Surface {
		return errors.New("continuum plots require the surface plot")
	}
	return nil
}

// Script renders the gnuplot script text.
func Script(o Options) string {
	if o.Surface {
		return surfaceScript(o)
	}
	return stackedScript(o)
}

func stackedScript(o Options) string {
	var b strings.Builder
	b.WriteString("reset\n")
	b.WriteString("set xrange[-200:*]\n")
	fmt.Fprintf(&b, "set yrange[%g:%g]\n", float64(o.MinOrder)-1, float64(o.MaxOrder)+1)
	b.WriteString("\nset xlabel \"distance (pixels)\"\n")
	fmt.Fprintf(&b, "set ylabel \"order + degree of polarization (Stokes %v / Stokes I)\"\n", o.Parameter)

	plotLine := fmt.Sprintf(
		"plot %q u %d:($%d+$%d*%g) t \"degree of polarization*%g\" w l lt 3, "+
			"\"\" u %d:($%d+$%d*%g+%g) t \"first null polarization*%g + %g\" w l lt 4, "+
			"\"\" u %d:($%d+$%d*%g-%g) t \"second null polarization*%g - %g\" w l lt 5\n",
		o.DataPath,
		product.ColumnDistance, product.ColumnOrder, product.ColumnDegree, DegreeScale, DegreeScale,
		product.ColumnDistance, product.ColumnOrder, product.ColumnFirstNull, DegreeScale, nullOffset, DegreeScale, nullOffset,
		product.ColumnDistance, product.ColumnOrder, product.ColumnSecondNull, DegreeScale, nullOffset, DegreeScale, nullOffset,
	)
	writeOutputs(&b, o, plotLine)
	return b.String()
}

func surfaceScript(o Options) string {
	var b strings.Builder
	b.WriteString("reset\n")
	b.WriteString("unset key\n")
	b.WriteString("set view 0,0\n")
	b.WriteString("set palette gray\n")
	b.WriteString("set palette gamma 2.0\n")
	b.WriteString("set pm3d map\n")
	b.WriteString("unset ztics\n")
	b.WriteString("set xrange[-200:*]\n")
	b.WriteString("\nset xlabel \"distance (pixels)\"\n")
	b.WriteString("set ylabel \"order number\"\n")

	var plotLine string
	if o.Continuum {
		fmt.Fprintf(&b, "set cblabel \"Stokes I and %v\"\n", o.Parameter)
		b.WriteString("set log z\n")
		plotLine = fmt.Sprintf(
			"splot %q u %d:($%d + 0.3*$%d - 0.325):%d w pm3d,\"\" u %d:($%d + 0.3*$%d + 0.025):%d w pm3d\n",
			o.DataPath,
			product.ColumnDistance, product.ColumnOrder, product.ColumnFlag, product.ColumnStokesI,
			product.ColumnDistance, product.ColumnOrder, product.ColumnFlag, product.ColumnStokes,
		)
	} else {
		fmt.Fprintf(&b, "set cblabel \"Stokes %v / Stokes I\"\n", o.Parameter)
		plotLine = fmt.Sprintf(
			"splot %q u %d:($%d + 0.25*$%d - 0.125):%d w pm3d,"+
				"\"\" u %d:($%d + 0.2*$%d + 0.175):%d w pm3d,"+
				"\"\" u %d:($%d - 0.2*$%d - 0.175):%d w pm3d\n",
			o.DataPath,
			product.ColumnDistance, product.ColumnOrder, product.ColumnFlag, product.ColumnDegree,
			product.ColumnDistance, product.ColumnOrder, product.ColumnFlag, product.ColumnFirstNull,
			product.ColumnDistance, product.ColumnOrder, product.ColumnFlag, product.ColumnSecondNull,
		)
	}
	writeOutputs(&b, o, plotLine)
	return b.String()
}

// writeOutputs emits the plot command for the EPS file, the display, or
// both.
func writeOutputs(b *strings.Builder, o Options, plotLine string) {
	if o.EPSPath != "" {
		b.WriteString("\nset terminal postscript enhanced color solid lw 1.5 \"Helvetica\" 14\n")
		fmt.Fprintf(b, "set output %q\n\n", o.EPSPath)
		b.WriteString(plotLine)
		if o.Interactive {
			b.WriteString("\nset terminal x11\nset output\nreplot\n")
		}
		return
	}
	b.WriteString("\n")
	b.WriteString(plotLine)
}

// WriteScript validates o and writes the script, replacing any existing
// file atomically.
func WriteScript(o Options) error {
	return product.CommitFiles(func(b *product.Batch) error {
		return StageScript(b, o)
	})
}

// StageScript validates o and stages the script in b.
func StageScript(b *product.Batch, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	err := b.Stage(o.ScriptPath, func(w io.Writer) error {
		_, werr := io.WriteString(w, Script(o))
		return werr
	})
	if err != nil {
		return fmt.Errorf("writing plot script: %w", err)
	}
	return nil
}

// Runner invokes gnuplot.
type Runner struct {
	// Command is the gnuplot executable; empty means "gnuplot" on PATH.
	Command string
}

// Run executes the script. Interactive plots keep their window open.
func (r Runner) Run(ctx context.Context, scriptPath string, interactive bool) error {
	command := r.Command
	if command == "" {
		command = "gnuplot"
	}
	args := []string{scriptPath}
	if interactive {
		args = []string{"-persist", scriptPath}
	}
	logrus.Infof("running %s %s", command, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, command, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w: %s", command, err, strings.TrimSpace(string(output)))
	}
	return nil
}
