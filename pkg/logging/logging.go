// Package logging configures the global zerolog logger: a console writer on
// stderr plus an optional JSON log file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init sets the global level and outputs. The returned closer flushes the log
// file; it is a no-op when file is empty.
func Init(level, file string) (io.Closer, error) {
	return initTo(os.Stderr, level, file)
}

func initTo(console io.Writer, level, file string) (io.Closer, error) {
	lvl, levelErr := zerolog.ParseLevel(level)
	if levelErr != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	cw := zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	var closer io.Closer = nopCloser{}
	var out io.Writer = cw
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		closer, out = f, zerolog.MultiLevelWriter(cw, f)
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	if levelErr != nil {
		log.Warn().Str("level", level).Msg("[Logger]unknown level, using info")
	}
	return closer, nil
}
