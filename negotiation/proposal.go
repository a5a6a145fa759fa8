// Package negotiation drives one trade with a counterparty through the trade
// window: propose, wait for the window, stage items, wait for both sides and
// resolve.
package negotiation

import (
	"errors"
	"fmt"
	"strings"
)

// MaxQuantity is the largest quantity a proposal may carry.
const MaxQuantity = 99

// ErrInvalidProposal is wrapped by Proposal.Validate failures.
var ErrInvalidProposal = errors.New("invalid proposal")

// Proposal offers OfferedQty of Offered for WantedQty of Wanted.
type Proposal struct {
	Offered    string `toml:"offered" json:"offered" mapstructure:"offered"`
	OfferedQty int    `toml:"offered_qty" json:"offered_qty" mapstructure:"offered_qty"`
	Wanted     string `toml:"wanted" json:"wanted" mapstructure:"wanted"`
	WantedQty  int    `toml:"wanted_qty" json:"wanted_qty" mapstructure:"wanted_qty"`
}

// Message is the chat line announcing the proposal.
func (p Proposal) Message() string {
	return strings.ToUpper(fmt.Sprintf("SELL %d %s FOR %d %s", p.OfferedQty, p.Offered, p.WantedQty, p.Wanted))
}

// Dual swaps the offered and wanted sides.
func (p Proposal) Dual() Proposal {
	return Proposal{Offered: p.Wanted, OfferedQty: p.WantedQty, Wanted: p.Offered, WantedQty: p.OfferedQty}
}

func (p Proposal) String() string { return p.Message() }

// Validate checks item names and the quantity bounds.
func (p Proposal) Validate() error {
	switch {
	case strings.TrimSpace(p.Offered) == "" || strings.TrimSpace(p.Wanted) == "":
		return fmt.Errorf("%w: item names must not be empty", ErrInvalidProposal)
	case p.OfferedQty < 1 || p.OfferedQty > MaxQuantity:
		return fmt.Errorf("%w: offered quantity %d outside 1..%d", ErrInvalidProposal, p.OfferedQty, MaxQuantity)
	case p.WantedQty < 1 || p.WantedQty > MaxQuantity:
		return fmt.Errorf("%w: wanted quantity %d outside 1..%d", ErrInvalidProposal, p.WantedQty, MaxQuantity)
	}
	return nil
}

// Pair is a proposal together with its dual. Active is the direction that
// will be announced next.
type Pair struct {
	Base   Proposal
	Active Proposal
}

// NewPair starts at base. A restored active direction is kept only when it
// is base or its dual.
func NewPair(base Proposal, restored *Proposal) Pair {
	p := Pair{Base: base, Active: base}
	if restored != nil && (*restored == base || *restored == base.Dual()) {
		p.Active = *restored
	}
	return p
}

// Swap makes the dual of the active direction active.
func (p *Pair) Swap() { p.Active = p.Active.Dual() }
