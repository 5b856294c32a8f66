package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/specpol/specpol/internal/catalog"
	"github.com/specpol/specpol/internal/params"
	"github.com/specpol/specpol/polar/plot"
	"github.com/specpol/specpol/polar/product"
	"github.com/specpol/specpol/polar/reduce"
	"github.com/specpol/specpol/polar/spectrum"
	"github.com/specpol/specpol/polar/trace"
)

var (
	reduceOpts = ReduceOptions{}
	recipePath string // YAML run recipe
	paramsPath string // TOML parameter table

	// Order bounds apply only when their flag is given.
	orderFlag    int
	minOrderFlag int
	maxOrderFlag int
)

// reduceReport is what a successful run produced.
type reduceReport struct {
	RunID     string
	Method    string // canonical method name
	Parameter string
	Range     reduce.Range
	Trace     *trace.ReductionTrace
	Summary   *trace.ReductionSummary
}

// reduceCmd combines the exposures into a polarimetry product
var reduceCmd = &cobra.Command{
	Use:   "reduce",
	Short: "Compute polarization spectra from 2 or 4 exposures",
	Run: func(cmd *cobra.Command, args []string) {
		opts, err := resolveReduceOptions(cmd)
		if err != nil {
			logrus.Fatalf("specpol reduce: %v", err)
		}
		logrus.Infof("Reducing %d exposures: method=%s stokes=%s output=%s",
			opts.Exposures, opts.Method, opts.Stokes, opts.Output)

		report, err := runReduction(cmd.Context(), opts)
		if err != nil {
			logrus.Fatalf("specpol reduce: %v", err)
		}
		printReduceReport(os.Stdout, opts, report)
		logrus.Info("Reduction complete.")
	},
}

// resolveReduceOptions merges explicit flags, the run recipe and the
// parameter table, in that order of precedence, and validates the result.
func resolveReduceOptions(cmd *cobra.Command) (ReduceOptions, error) {
	opts := reduceOpts
	opts.Inputs = append([]string(nil), reduceOpts.Inputs...)

	set := setTracker{}
	cmd.Flags().Visit(func(f *pflag.Flag) { set[f.Name] = true })
	if cmd.Flags().Changed("order") {
		opts.Order = intRef(orderFlag)
	}
	if cmd.Flags().Changed("min-order") {
		opts.MinOrder = intRef(minOrderFlag)
	}
	if cmd.Flags().Changed("max-order") {
		opts.MaxOrder = intRef(maxOrderFlag)
	}

	if recipePath != "" {
		recipe, err := LoadRunRecipe(recipePath)
		if err != nil {
			return opts, err
		}
		applyRecipe(&opts, set, recipe)
	}
	if paramsPath != "" {
		store, err := params.Load(paramsPath)
		if err != nil {
			return opts, err
		}
		if err := applyParams(&opts, set, store); err != nil {
			return opts, err
		}
	}
	return opts, opts.Validate()
}

// runReduction loads the exposures, processes the order range and writes
// every requested output. A failure at any step leaves the output paths as
// they were before the run.
func runReduction(ctx context.Context, opts ReduceOptions) (*reduceReport, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := opts.PolarConfig()
	if err != nil {
		return nil, err
	}
	engine, err := cfg.NewEngine()
	if err != nil {
		return nil, err
	}

	inputs := make([]*spectrum.OrderVector, len(opts.Inputs))
	for i, path := range opts.Inputs {
		inputs[i], err = spectrum.LoadOrderVector(path)
		if err != nil {
			return nil, fmt.Errorf("exposure %d: %w", i+1, err)
		}
		logrus.Debugf("exposure %d: %s, %d orders", i+1, path, inputs[i].Len())
	}

	processor, err := reduce.NewProcessor(engine, inputs, opts.Workers)
	if err != nil {
		return nil, err
	}
	r, err := processor.ResolveRange(opts.RangeRequest())
	if err != nil {
		return nil, err
	}
	logrus.Infof("Processing orders %v", r)

	out := spectrum.NewOrderVector(opts.Output)
	rt, err := processor.Run(r, out)
	if err != nil {
		return nil, err
	}
	summary := trace.Summarize(rt)

	report := &reduceReport{
		RunID:     catalog.NewRunID(),
		Method:    engine.Method().Name(),
		Parameter: engine.Parameter().String(),
		Range:     r,
		Trace:     rt,
		Summary:   summary,
	}
	created := time.Now().UTC()
	meta := &product.Metadata{
		RunID:         report.RunID,
		CreatedAt:     created.Format(time.RFC3339),
		Method:        report.Method,
		Parameter:     report.Parameter,
		Exposures:     opts.Exposures,
		MinOrder:      r.Min,
		MaxOrder:      r.Max,
		Inputs:        opts.Inputs,
		StoredOrders:  summary.StoredCount,
		SkippedOrders: summary.SkippedOrders,
	}

	// Outputs are staged, committed together and undone if a later step
	// fails, so a failed run leaves every path as it found it.
	outputs := &product.Batch{}
	defer func() {
		if err := outputs.Rollback(); err != nil {
			logrus.Warnf("restoring outputs: %v", err)
		}
	}()
	if err := product.StageProduct(outputs, opts.Output, meta, out); err != nil {
		return nil, err
	}
	if opts.DataFile != "" {
		if err := product.StageDataFile(outputs, opts.DataFile, out, inputs, product.DataFileOptions{Surface: opts.Surface}); err != nil {
			return nil, err
		}
	}
	if opts.PlotScript != "" {
		plotOpts := plot.Options{
			ScriptPath:  opts.PlotScript,
			DataPath:    opts.DataFile,
			EPSPath:     opts.PlotEPS,
			Parameter:   engine.Parameter(),
			MinOrder:    r.Min,
			MaxOrder:    r.Max,
			Surface:     opts.Surface,
			Continuum:   opts.PlotContinuum,
			Interactive: opts.Interactive,
		}
		if err := plot.StageScript(outputs, plotOpts); err != nil {
			return nil, err
		}
	}
	if err := outputs.Commit(); err != nil {
		return nil, err
	}

	if opts.PlotScript != "" && opts.Plot {
		if opts.PlotEPS != "" {
			if err := outputs.Guard(opts.PlotEPS); err != nil {
				return nil, err
			}
		}
		if err := (plot.Runner{}).Run(ctx, opts.PlotScript, opts.Interactive); err != nil {
			return nil, err
		}
	}
	if opts.Catalog != "" {
		if err := recordRun(ctx, opts, report, created); err != nil {
			return nil, err
		}
	}
	outputs.Finish()
	logrus.Debugf("outputs written: %v", outputs.Paths())
	return report, nil
}

func recordRun(ctx context.Context, opts ReduceOptions, report *reduceReport, created time.Time) error {
	c, err := catalog.Open(opts.Catalog)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	run := catalog.Run{
		ID:        report.RunID,
		CreatedAt: created,
		Method:    report.Method,
		Parameter: report.Parameter,
		Exposures: opts.Exposures,
		MinOrder:  report.Range.Min,
		MaxOrder:  report.Range.Max,
		Output:    opts.Output,
		Inputs:    opts.Inputs,
	}
	if err := c.RecordRun(ctx, run, report.Trace); err != nil {
		return fmt.Errorf("cataloguing run: %w", err)
	}
	logrus.Infof("Run %s recorded in %s", report.RunID, c.Path())
	return nil
}

// printReduceReport writes the run summary to w.
func printReduceReport(w io.Writer, opts ReduceOptions, report *reduceReport) {
	s := report.Summary
	_, _ = fmt.Fprintf(w, "=== Reduction ===\n")
	_, _ = fmt.Fprintf(w, "run_id:             %s\n", report.RunID)
	_, _ = fmt.Fprintf(w, "method:             %s\n", report.Method)
	_, _ = fmt.Fprintf(w, "stokes_parameter:   %s\n", report.Parameter)
	_, _ = fmt.Fprintf(w, "output:             %s\n", opts.Output)
	_, _ = fmt.Fprintf(w, "orders:             %v\n", report.Range)
	_, _ = fmt.Fprintf(w, "stored_orders:      %d\n", s.StoredCount)
	_, _ = fmt.Fprintf(w, "skipped_orders:     %d %v\n", s.SkippedCount, s.SkippedOrders)
	_, _ = fmt.Fprintf(w, "elements:           %d\n", s.TotalElements)
	_, _ = fmt.Fprintf(w, "nonfinite_elements: %d\n", s.NonFiniteElements)
	_, _ = fmt.Fprintf(w, "mean_degree_rms:    %.6g\n", s.MeanDegreeRMS)
	if s.MeanFirstNullRMS != 0 {
		_, _ = fmt.Fprintf(w, "mean_null_rms:      %.6g\n", s.MeanFirstNullRMS)
	}
}

func init() {
	f := reduceCmd.Flags()
	f.StringSliceVar(&reduceOpts.Inputs, "input", nil, "Exposure spectrum files in acquisition order (repeat or comma-separate)")
	f.StringVar(&reduceOpts.Output, "output", "", "Polarimetry product file")
	f.IntVar(&reduceOpts.Exposures, "exposures", 4, "Number of exposures (2 or 4)")
	f.StringVar(&reduceOpts.Method, "method", "difference", "Polarimetry method (difference, ratio, difference-beam-swap or code 1-3)")
	f.StringVar(&reduceOpts.Stokes, "stokes", "V", "Stokes parameter (Q, U, V or code 1-3)")
	f.IntVar(&orderFlag, "order", 0, "Process a single absolute order")
	f.IntVar(&minOrderFlag, "min-order", 0, "Lowest order to process (default: lowest order with data)")
	f.IntVar(&maxOrderFlag, "max-order", 0, "Highest order to process (default: highest order with data)")
	f.IntVar(&reduceOpts.Workers, "workers", 1, "Orders computed concurrently")

	f.StringVar(&reduceOpts.DataFile, "data-file", "", "Tab-separated data table for plotting")
	f.BoolVar(&reduceOpts.Surface, "surface", false, "Write surface blocks and a pm3d map script")
	f.StringVar(&reduceOpts.PlotScript, "plot-script", "", "gnuplot script file")
	f.StringVar(&reduceOpts.PlotEPS, "plot-eps", "", "EPS plot file written by the script")
	f.BoolVar(&reduceOpts.PlotContinuum, "plot-continuum", false, "Map Stokes I and the parameter flux instead of P/I")
	f.BoolVar(&reduceOpts.Plot, "plot", false, "Run gnuplot on the script")
	f.BoolVar(&reduceOpts.Interactive, "interactive", false, "Display the plot and keep the window open")

	f.StringVar(&reduceOpts.Catalog, "catalog", "", "SQLite run catalog to record the run in")
	f.StringVar(&recipePath, "config", "", "YAML run recipe; explicit flags take precedence")
	f.StringVar(&paramsPath, "params", "", "TOML parameter table supplying polar.* defaults")

	rootCmd.AddCommand(reduceCmd)
}
