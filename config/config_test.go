package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/originbots/tradebot/activity"
	"github.com/originbots/tradebot/counter"
	"github.com/originbots/tradebot/negotiation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradebot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsMatchPackages(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)

	assert.Equal(t, negotiation.DefaultConfig(), cfg.Negotiation())
	assert.Equal(t, counter.DefaultConfig(), cfg.Counter())
	assert.Equal(t, activity.DefaultGrid, cfg.Grid())
	assert.Equal(t, negotiation.DefaultCatalog(), cfg.Catalog())
	assert.Equal(t, activity.DefaultTimeout, cfg.Timing.WatchdogTimeout)
	assert.Equal(t, "item_counts.json", cfg.Paths.Store)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
page_swap_limit = 4

[proposal]
offered = "dino_egg"
offered_qty = 3
wanted = "majestic_chair"
wanted_qty = 1

[regions]
blank_slot = [10, 20, 30, 40]

[timing]
settle_delay = "15s"
jitter_min = "1s"
jitter_max = "2s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "debug", cfg.LogLevel)

	neg := cfg.Negotiation()
	assert.Equal(t, 4, neg.PageSwapLimit)
	assert.Equal(t, 15*time.Second, neg.SettleDelay)
	assert.Equal(t, time.Second, neg.JitterMin)
	assert.Equal(t, image.Rect(10, 20, 40, 60), neg.BlankSlotRect)
	assert.Equal(t, negotiation.Proposal{Offered: "dino_egg", OfferedQty: 3, Wanted: "majestic_chair", WantedQty: 1}, cfg.Proposal)

	// untouched values keep their defaults
	assert.Equal(t, 0.8, neg.ControlThreshold)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TRADEBOT_TIMING_WATCHDOG_TIMEOUT", "30s")
	t.Setenv("TRADEBOT_PATHS_STORE", "counts.json")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timing.WatchdogTimeout)
	assert.Equal(t, "counts.json", cfg.Paths.Store)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"threshold": "[thresholds]\ncontrol = 1.5\n",
		"swaps":     "page_swap_limit = 0\n",
		"jitter":    "[timing]\njitter_min = \"10s\"\njitter_max = \"1s\"\n",
		"grid":      "[regions]\ngrid = [[0, 0, 1, 1]]\n",
		"proposal":  "[proposal]\noffered = \"a\"\noffered_qty = 0\nwanted = \"b\"\nwanted_qty = 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestStatePath(t *testing.T) {
	cfg := &Config{Paths: Paths{StateDir: "state"}}
	assert.Equal(t, filepath.Join("state", "a.json"), cfg.StatePath("a.json"))
	abs := filepath.Join(t.TempDir(), "b.json")
	assert.Equal(t, abs, cfg.StatePath(abs))
	assert.Empty(t, cfg.StatePath(""))
}

func TestLoad_SearchRegions(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[regions.search]
accept_button = [1900, 1100, 400, 200]
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]image.Rectangle{
		"accept_button": image.Rect(1900, 1100, 2300, 1300),
	}, cfg.SearchROIs())
	assert.Equal(t, DesktopFrame, cfg.Regions.Frame.Point())
}

func TestScaleTo_HalvesDesktopRegions(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Regions.Search = map[string]Rect{"cancel_button": {1000, 600, 200, 100}}
	minDist := cfg.Thresholds.MinDistance

	require.NoError(t, cfg.ScaleTo(image.Pt(1280, 720)))

	assert.Equal(t, Size{1280, 720}, cfg.Regions.Frame)
	assert.Equal(t, image.Rect(644, 264, 674, 294), cfg.Negotiation().BlankSlotRect)
	assert.Equal(t, image.Rect(1015, 113, 1159, 223), cfg.Negotiation().InventoryRect)
	assert.Equal(t, image.Rect(500, 300, 600, 350), cfg.SearchROIs()["cancel_button"])
	assert.InDelta(t, minDist/2, cfg.Thresholds.MinDistance, 1e-9)

	grid := cfg.Grid()
	for i, r := range activity.DefaultGrid {
		assert.InDelta(t, r.Min.X/2, grid[i].Min.X, 1, "slot %d", i)
		assert.InDelta(t, r.Min.Y/2, grid[i].Min.Y, 1, "slot %d", i)
	}
	assert.Len(t, cfg.Regions.Grid, activity.SlotCount)
	require.NoError(t, cfg.Validate())
}

func TestScaleTo_SameFrameIsNoop(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	before := cfg.Negotiation()

	require.NoError(t, cfg.ScaleTo(DesktopFrame))
	assert.Equal(t, before, cfg.Negotiation())
	assert.Error(t, cfg.ScaleTo(image.Point{}))
}
