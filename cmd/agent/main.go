// Command agent is the MaaFramework agent service exposing the trade bot as
// custom actions.
package main

import (
	"os"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/originbots/tradebot/internal/version"
	"github.com/originbots/tradebot/pkg/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	logFile, err := logging.Init(os.Getenv("TRADEBOT_LOG_LEVEL"), "debug/tradebot-agent.log")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	defer logFile.Close()

	log.Info().Str("version", version.Version).Msg("TradeBot Agent Service")

	if len(os.Args) < 2 {
		log.Fatal().Msg("Usage: agent <identifier>")
	}

	identifier := os.Args[1]
	log.Info().Str("identifier", identifier).Msg("Starting agent server")

	registerAll()

	if err := maa.AgentServerStartUp(identifier); err != nil {
		log.Fatal().Msg("Failed to start agent server")
	}
	log.Info().Msg("Agent server started")

	maa.AgentServerJoin()

	maa.AgentServerShutDown()
	log.Info().Msg("Agent server shutdown")
}
