package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/orderrisk/internal/inspection"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show dataset and snapshot status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		formatStatus(os.Stdout, env.Orders.Len(), env.Matcher.Len(), len(env.Table), env.Store.Status())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatStatus writes a two-column summary of the loaded datasets to out.
func formatStatus(out io.Writer, orders, mapped, resolved int, st inspection.Status) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "ORDERS\t%d\n", orders)
	_, _ = fmt.Fprintf(w, "MAPPING ENTRIES\t%d\n", mapped)
	_, _ = fmt.Fprintf(w, "RESOLVED NAMES\t%d\n", resolved)
	if !st.Loaded {
		_, _ = fmt.Fprintln(w, "SNAPSHOT\tunavailable")
	} else {
		_, _ = fmt.Fprintf(w, "SNAPSHOT\t%s\n", st.SnapshotID)
		_, _ = fmt.Fprintf(w, "FETCHED\t%s\n", st.FetchedAt.Format("2006-01-02 15:04"))
		_, _ = fmt.Fprintf(w, "AGE\t%.1fh\n", st.AgeHours)
		_, _ = fmt.Fprintf(w, "STALE\t%t\n", st.Stale)
		_, _ = fmt.Fprintf(w, "RECORDS\t%d\n", st.Records)
		_, _ = fmt.Fprintf(w, "RESTAURANTS\t%d\n", st.Restaurants)
	}
	_, _ = fmt.Fprintf(w, "BREAKER\t%s\n", st.BreakerState)
	_ = w.Flush()
}
