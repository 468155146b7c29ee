package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		pipeline string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show persisted job history, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if err := requireHistory(a); err != nil {
				return err
			}

			entries, err := a.history.List(cmd.Context(), pipeline, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, entries)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tPIPELINE\tSTATUS\tTRIGGER\tRECORDS\tERROR")
			for _, e := range entries {
				records := "-"
				if e.Result != nil {
					records = fmt.Sprintf("%d/%d", e.Result.RecordsSuccessful, e.Result.RecordsProcessed)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Timestamp.Local().Format(time.DateTime), e.PipelineName, e.Status, e.Trigger, records, e.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&pipeline, "pipeline", "p", "", "filter by pipeline name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
