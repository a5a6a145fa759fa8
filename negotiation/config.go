package negotiation

import (
	"image"
	"time"
)

// Control names resolved by the locator.
const (
	ControlTradeWindow = "trade_window"
	ControlAccept      = "accept_button"
	ControlCancel      = "cancel_button"
	ControlMyItemBox   = "my_item_box"
	ControlNextPage    = "next_page_button"
)

// Config holds coordinates, thresholds and timings of a negotiation.
type Config struct {
	ControlThreshold   float64
	InventoryThreshold float64
	MinDistance        float64
	InventoryRect      image.Rectangle
	BlankSlotRect      image.Rectangle

	PollInterval  time.Duration
	JitterMin     time.Duration
	JitterMax     time.Duration
	PageSwapLimit int
	PageSettle    time.Duration
	ClickSettle   time.Duration
	SettleDelay   time.Duration
	StartDelay    time.Duration
}

// DefaultConfig matches a 2560x1440 client.
func DefaultConfig() Config {
	return Config{
		ControlThreshold:   0.8,
		InventoryThreshold: 0.6,
		MinDistance:        10,
		InventoryRect:      image.Rect(2029, 225, 2029+288, 225+220),
		BlankSlotRect:      image.Rect(1287, 528, 1287+61, 528+60),
		PollInterval:       time.Second,
		JitterMin:          5 * time.Second,
		JitterMax:          10 * time.Second,
		PageSwapLimit:      10,
		PageSettle:         7 * time.Second,
		ClickSettle:        500 * time.Millisecond,
		SettleDelay:        60 * time.Second,
		StartDelay:         5 * time.Second,
	}
}
