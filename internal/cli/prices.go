package cli

import (
	"fmt"

	"github.com/originbots/tradebot/pricefeed"
	"github.com/spf13/cobra"
)

func newPricesCmd(a *app) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Fetch item values and print trade suggestions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := pricefeed.NewClient()
			c.URL = a.cfg.Prices.URL
			if url != "" {
				c.URL = url
			}
			items, err := c.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, line := range pricefeed.Format(pricefeed.Ranked(items)) {
				fmt.Fprintln(out, line)
			}
			if s := pricefeed.Suggest(items); len(s) > 0 {
				fmt.Fprintln(out, "\nSuggested trades:")
				for _, line := range s {
					fmt.Fprintln(out, "  "+line)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "override prices.url")
	return cmd
}
