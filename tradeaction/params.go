package tradeaction

import (
	"github.com/bytedance/sonic"
	"github.com/originbots/tradebot/negotiation"
)

// negotiateParam is the custom_action_param of TradeBotNegotiate.
type negotiateParam struct {
	// Config is the path of tradebot.toml; empty searches the working directory.
	Config string `json:"config"`
	// Proposal overrides the saved selection when set.
	Proposal *negotiation.Proposal `json:"proposal"`
	// MaxRounds stops after this many rounds; 0 runs until the task stops.
	MaxRounds int `json:"max_rounds"`
}

// countParam is the custom_action_param of TradeBotCount.
type countParam struct {
	Config string `json:"config"`
	// Cycles is the number of recognition cycles; 0 runs until the task stops.
	Cycles int `json:"cycles"`
}

func decodeParam(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return sonic.UnmarshalString(raw, v)
}
