package main

import (
	"github.com/originbots/tradebot/tradeaction"
	"github.com/rs/zerolog/log"
)

func registerAll() {
	tradeaction.Register()

	log.Info().
		Msg("All custom components registered successfully")
}
