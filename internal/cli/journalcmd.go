package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/originbots/tradebot/journal"
	"github.com/spf13/cobra"
)

func newJournalCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Summarize recorded negotiation rounds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			j, err := journal.Open(a.cfg.StatePath(a.cfg.Paths.Journal))
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			summary, err := j.Summary(ctx)
			if err != nil {
				return err
			}
			recent, err := j.Recent(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			outcomes := make([]string, 0, len(summary))
			for o := range summary {
				outcomes = append(outcomes, o)
			}
			sort.Strings(outcomes)
			for _, o := range outcomes {
				fmt.Fprintf(out, "%-10s %d\n", o, summary[o])
			}
			if len(recent) == 0 {
				_, err = fmt.Fprintln(out, "no rounds recorded")
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nFINISHED\tOUTCOME\tSTATE\tOFFERED\tWANTED\tREASON")
			for _, e := range recent {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d %s\t%d %s\t%s\n",
					e.FinishedAt.Format(time.DateTime), e.Outcome, e.State,
					e.OfferedQty, e.Offered, e.WantedQty, e.Wanted, e.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of recent rounds to list")
	return cmd
}
