package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/carnage999-max/liberty-realtime/api"
)

var historyPage int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent calls, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := requireToken()
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.APIBaseURL, token, logger)
		page, err := client.ListCalls(cmd.Context(), historyPage)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tCALLER\tRECEIVER\tSTARTED\tDURATION")
		for _, c := range page.Results {
			started := "-"
			if c.StartedAt != nil {
				started = c.StartedAt.Local().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.ID, c.CallType, c.CallerID, c.ReceiverID, started,
				(time.Duration(c.DurationSeconds) * time.Second).String())
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d calls total\n", page.Count)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "result page to fetch")
}
