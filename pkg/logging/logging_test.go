package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInit_ConsoleAndFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "tradebot.log")

	c, err := initTo(&console, "debug", path)
	if err != nil {
		t.Fatalf("initTo: %v", err)
	}
	log.Debug().Str("k", "v").Msg("[Test]hello")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"[Test]hello"`) {
		t.Errorf("file log missing message: %s", data)
	}
	if !strings.Contains(console.String(), "[Test]hello") {
		t.Errorf("console log missing message: %s", console.String())
	}
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)
	var console bytes.Buffer

	if _, err := initTo(&console, "loud", ""); err != nil {
		t.Fatalf("initTo: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", zerolog.GlobalLevel())
	}
	if !strings.Contains(console.String(), "unknown level") {
		t.Errorf("missing warning: %s", console.String())
	}
	console.Reset()
	log.Debug().Msg("hidden")
	if console.Len() != 0 {
		t.Errorf("debug line written at info level: %s", console.String())
	}
}
