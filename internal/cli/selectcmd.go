package cli

import (
	"errors"
	"fmt"

	"github.com/originbots/tradebot/selection"
	"github.com/spf13/cobra"
)

func newSelectCmd(a *app) *cobra.Command {
	var pf proposalFlags
	cmd := &cobra.Command{
		Use:   "select",
		Short: "Show or change the proposal negotiated by run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := selection.NewStore(a.cfg.StatePath(a.cfg.Paths.Selection))
			p, err := pf.proposal()
			if err != nil {
				return err
			}
			if p != nil {
				if _, err := a.cfg.Catalog().Lookup(p.Offered); err != nil {
					return err
				}
				if _, err := a.cfg.Catalog().Lookup(p.Wanted); err != nil {
					return err
				}
				if err := store.Save(cmd.Context(), selection.Selection{Base: *p}); err != nil {
					return err
				}
			}

			sel, err := store.Load(cmd.Context())
			if errors.Is(err, selection.ErrNotFound) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no proposal selected")
				return err
			}
			if err != nil {
				return err
			}
			pair := sel.Pair()
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "proposal: %s\nnext:     %s\n", pair.Base.Message(), pair.Active.Message())
			return err
		},
	}
	pf.register(cmd)
	return cmd
}
