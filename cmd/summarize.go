package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/specpol/specpol/polar/product"
	"github.com/specpol/specpol/polar/trace"
)

// orderSummary holds the statistics of one product order.
type orderSummary struct {
	Order      int
	Degree     trace.Statistics
	FirstNull  trace.Statistics
	SecondNull trace.Statistics
}

// summarizeProduct computes per-order statistics, orders ascending.
func summarizeProduct(p *product.Product) []orderSummary {
	var out []orderSummary
	for _, n := range p.Orders.Numbers() {
		o, _ := p.Orders.Order(n)
		res := o.Polarimetry
		if res == nil {
			continue
		}
		s := orderSummary{Order: n, Degree: trace.Describe(res.Degree.Fluxes())}
		if res.HasNullSpectra() {
			s.FirstNull = trace.Describe(res.FirstNull)
			s.SecondNull = trace.Describe(res.SecondNull)
		}
		out = append(out, s)
	}
	return out
}

// printProductSummary writes the metadata and a per-order table to w.
func printProductSummary(w io.Writer, p *product.Product) error {
	m := p.Metadata
	_, _ = fmt.Fprintf(w, "run_id: %s\nmethod: %s\nstokes_parameter: %s\nexposures: %d\norders: %d-%d\n\n",
		m.RunID, m.Method, m.Parameter, m.Exposures, m.MinOrder, m.MaxOrder)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ORDER\tELEMENTS\tNAN\tP/I MEAN\tP/I RMS\tN1 RMS\tN2 RMS")
	for _, s := range summarizeProduct(p) {
		n1, n2 := "-", "-"
		if s.FirstNull.Count > 0 {
			n1 = fmt.Sprintf("%.3e", s.FirstNull.RMS)
			n2 = fmt.Sprintf("%.3e", s.SecondNull.RMS)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%d\t%.3e\t%.3e\t%s\t%s\n",
			s.Order, s.Degree.Count+s.Degree.NonFinite, s.Degree.NonFinite,
			s.Degree.Mean, s.Degree.RMS, n1, n2)
	}
	return tw.Flush()
}

// summarizeCmd prints statistics of a product file
var summarizeCmd = &cobra.Command{
	Use:   "summarize PRODUCT",
	Short: "Print per-order statistics of a polarimetry product",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		p, err := product.LoadProduct(args[0])
		if err != nil {
			logrus.Fatalf("specpol summarize: %v", err)
		}
		if err := printProductSummary(os.Stdout, p); err != nil {
			logrus.Fatalf("specpol summarize: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
