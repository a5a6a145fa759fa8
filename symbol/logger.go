package symbol

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// symLog 是 symbol 模块的子日志器。
//
// symLog is the sub-logger for the symbol module, with module=symbol field.
var symLog zerolog.Logger = log.With().Str("module", "symbol").Logger()
