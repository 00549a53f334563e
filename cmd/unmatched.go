package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/orderrisk/internal/matcher"
	"github.com/sells-group/orderrisk/internal/orders"
)

var unmatchedCmd = &cobra.Command{
	Use:   "unmatched",
	Short: "List order restaurant names missing from the mapping",
	Long:  "Loads the order dataset and the name mapping only; no inspection data is fetched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m, err := matcher.LoadFile(cfg.Mapping.Path)
		if err != nil {
			return err
		}
		_, opener := newFetchers()
		set, err := orders.Load(ctx, opener, cfg.Orders.Source)
		if err != nil {
			return err
		}

		formatUnmatched(os.Stdout, matcher.Unmatched(set.Orders, m.BuildTable(set.Orders)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(unmatchedCmd)
}

func formatUnmatched(out io.Writer, names []matcher.UnmatchedName) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RESTAURANT\tORDERS\tREVENUE")
	_, _ = fmt.Fprintln(w, "----------\t------\t-------")
	for _, n := range names {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.2f\n", n.RestaurantName, n.OrderCount, n.Revenue)
	}
	_ = w.Flush()
}
