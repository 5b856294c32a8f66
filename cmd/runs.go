package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/specpol/specpol/internal/catalog"
)

var runsCatalogPath string

// listRuns writes the catalogued runs to w, newest first.
func listRuns(ctx context.Context, w io.Writer, path string) error {
	c, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	runs, err := c.ListRuns(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RUN\tCREATED\tMETHOD\tSTOKES\tN\tORDERS\tSTORED\tSKIPPED\tOUTPUT")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d-%d\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Method, r.Parameter, r.Exposures,
			r.MinOrder, r.MaxOrder, r.StoredOrders, r.SkippedOrders, r.Output)
	}
	return tw.Flush()
}

// runsCmd lists reductions recorded in a catalog
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List reductions recorded in a run catalog",
	Run: func(cmd *cobra.Command, args []string) {
		if runsCatalogPath == "" {
			logrus.Fatalf("specpol runs: --catalog is required")
		}
		if err := listRuns(cmd.Context(), os.Stdout, runsCatalogPath); err != nil {
			logrus.Fatalf("specpol runs: %v", err)
		}
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsCatalogPath, "catalog", "", "SQLite run catalog")
	rootCmd.AddCommand(runsCmd)
}
