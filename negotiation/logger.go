package negotiation

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// negLog is the sub-logger for the negotiation module.
var negLog zerolog.Logger = log.With().Str("module", "negotiation").Logger()
