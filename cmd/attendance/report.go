package main

import (
	"fmt"
	"text/tabwriter"

	"face-attendance-go/internal/util/timezone"

	"github.com/spf13/cobra"
)

var reportDate string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the attendance of a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		date := reportDate
		if date == "" {
			date = timezone.Today()
		}

		records, err := application.ledger.List(cmd.Context(), date)
		if err != nil {
			return fmt.Errorf("failed to read attendance: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, application.tr("report.empty", map[string]interface{}{"Date": date}))
			return nil
		}

		fmt.Fprintln(out, application.tr("report.header", map[string]interface{}{"Date": date}))
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tDATE\tTIME")
		fmt.Fprintln(w, "----\t----\t----")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Date, r.Time)
		}
		return w.Flush()
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "day to report (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(reportCmd)
}
