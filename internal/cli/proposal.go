package cli

import (
	"github.com/originbots/tradebot/negotiation"
	"github.com/spf13/cobra"
)

type proposalFlags struct {
	offered    string
	offeredQty int
	wanted     string
	wantedQty  int
}

func (f *proposalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.offered, "offered", "", "item to offer")
	cmd.Flags().IntVar(&f.offeredQty, "offered-qty", 1, "quantity offered")
	cmd.Flags().StringVar(&f.wanted, "wanted", "", "item to ask for")
	cmd.Flags().IntVar(&f.wantedQty, "wanted-qty", 1, "quantity asked for")
}

// proposal returns nil when neither item was given.
func (f *proposalFlags) proposal() (*negotiation.Proposal, error) {
	if f.offered == "" && f.wanted == "" {
		return nil, nil
	}
	p := negotiation.Proposal{Offered: f.offered, OfferedQty: f.offeredQty, Wanted: f.wanted, WantedQty: f.wantedQty}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
