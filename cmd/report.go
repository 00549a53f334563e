package main

import (
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/analytics"
	"github.com/sells-group/orderrisk/internal/report"
)

var (
	reportFormat string
	reportOut    string
	reportDays   int
	reportStart  string
	reportEnd    string
	reportTopN   int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the full analytics report",
	Long:  "Assembles every analytics view for a date window and writes it as JSON, PDF or XLSX.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(reportFormat)
		if err != nil {
			return err
		}
		topN := reportTopN
		if topN == 0 {
			topN = cfg.Analytics.DefaultTopN
		}

		days := ""
		if reportDays > 0 {
			days = strconv.Itoa(reportDays)
		}
		now := time.Now()
		win, err := analytics.ParseWindow(now, days, reportStart, reportEnd, cfg.Analytics.DefaultDays)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		eng, err := env.Engine()
		if err != nil {
			return err
		}
		rep, err := report.Assemble(eng, win, topN, now)
		if err != nil {
			return err
		}

		out := reportOut
		if out == "" && format != report.FormatJSON {
			out = report.Filename(win.Days(), format)
		}
		if err := writeReport(rep, format, out); err != nil {
			return err
		}
		if out != "" && out != "-" {
			zap.L().Info("report written", zap.String("path", out), zap.String("format", string(format)))
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "json", "output format: json, pdf or xlsx")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "output file (default stdout for json, generated name otherwise)")
	reportCmd.Flags().IntVar(&reportDays, "days", 0, "trailing days to cover (default from config)")
	reportCmd.Flags().StringVar(&reportStart, "start", "", "window start date (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportEnd, "end", "", "window end date (YYYY-MM-DD)")
	reportCmd.Flags().IntVar(&reportTopN, "top-n", 0, "watchlist size (default from config)")
	rootCmd.AddCommand(reportCmd)
}

// writeReport renders rep to path, or stdout when path is empty or "-".
func writeReport(rep *report.Report, f report.Format, path string) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer file.Close() //nolint:errcheck
		w = file
	}
	return rep.Write(w, f)
}
