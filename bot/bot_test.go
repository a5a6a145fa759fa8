package bot

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/originbots/tradebot/config"
	"github.com/originbots/tradebot/negotiation"
	"github.com/originbots/tradebot/notify"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullDriver struct{}

func (nullDriver) Capture(context.Context) (image.Image, error) {
	return image.NewGray(image.Rect(0, 0, 2560, 1440)), nil
}

func (nullDriver) CaptureRect(_ context.Context, r image.Rectangle) (image.Image, error) {
	return image.NewGray(r), nil
}
func (nullDriver) MoveTo(context.Context, image.Point) error { return nil }
func (nullDriver) Click(context.Context, image.Point) error  { return nil }
func (nullDriver) ClickCurrent(context.Context) error        { return nil }
func (nullDriver) TypeLine(context.Context, string) error    { return nil }

func loadConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf("[paths]\nstate_dir = %q\nimage_dir = %q\n%s", dir, filepath.Join(dir, "images"), extra)
	path := filepath.Join(dir, "tradebot.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

var eggForChair = negotiation.Proposal{Offered: "dino_egg", OfferedQty: 3, Wanted: "majestic_chair", WantedQty: 1}

func TestResolve_NothingSelected(t *testing.T) {
	b, err := New(loadConfig(t, ""), nullDriver{}, Options{NoJournal: true, Notifier: notify.Nop{}})
	require.NoError(t, err)

	_, err = b.Resolve(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoProposal)
}

func TestResolve_ConfiguredProposal(t *testing.T) {
	cfg := loadConfig(t, "[proposal]\noffered = \"dino_egg\"\noffered_qty = 3\nwanted = \"majestic_chair\"\nwanted_qty = 1\n")
	b, err := New(cfg, nullDriver{}, Options{NoJournal: true, Notifier: notify.Nop{}})
	require.NoError(t, err)

	pair, err := b.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, eggForChair, pair.Active)
}

func TestResolve_ExplicitBaseResumesSavedDirection(t *testing.T) {
	ctx := context.Background()
	b, err := New(loadConfig(t, ""), nullDriver{}, Options{NoJournal: true, Notifier: notify.Nop{}})
	require.NoError(t, err)

	pair, err := b.Resolve(ctx, &eggForChair)
	require.NoError(t, err)
	assert.Equal(t, eggForChair, pair.Active)

	require.NoError(t, b.Selection.SaveActive(ctx, eggForChair.Dual()))

	pair, err = b.Resolve(ctx, &eggForChair)
	require.NoError(t, err)
	assert.Equal(t, eggForChair.Dual(), pair.Active)

	// without an explicit base the saved selection is used as is
	pair, err = b.Resolve(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, eggForChair, pair.Base)
	assert.Equal(t, eggForChair.Dual(), pair.Active)

	// a different base starts over
	other := negotiation.Proposal{Offered: "hc_sofa", OfferedQty: 1, Wanted: "dino_egg", WantedQty: 2}
	pair, err = b.Resolve(ctx, &other)
	require.NoError(t, err)
	assert.Equal(t, other, pair.Active)
}

func TestEngine_JournalOpened(t *testing.T) {
	b, err := New(loadConfig(t, ""), nullDriver{}, Options{Notifier: notify.Nop{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.NotNil(t, b.Journal)

	e, err := b.Engine(negotiation.NewPair(eggForChair, nil), EngineOptions{})
	require.NoError(t, err)
	assert.Equal(t, eggForChair, e.Active())
	assert.NotNil(t, b.Counter())
}

func TestEngine_UnknownItem(t *testing.T) {
	b, err := New(loadConfig(t, ""), nullDriver{}, Options{NoJournal: true, Notifier: notify.Nop{}})
	require.NoError(t, err)

	bad := negotiation.Proposal{Offered: "golden_egg", OfferedQty: 1, Wanted: "dino_egg", WantedQty: 1}
	_, err = b.Engine(negotiation.NewPair(bad, nil), EngineOptions{})
	assert.Error(t, err)
}

type stubLocator struct{}

func (stubLocator) Locate(context.Context, string, float64) (image.Point, bool, error) {
	return image.Point{}, false, nil
}

func (stubLocator) FindAll(context.Context, string, image.Rectangle, float64, float64) ([]image.Point, error) {
	return nil, nil
}

func TestNew_LocatorOverride(t *testing.T) {
	b, err := New(loadConfig(t, ""), nullDriver{}, Options{NoJournal: true, Notifier: notify.Nop{}, Locator: stubLocator{}})
	require.NoError(t, err)
	assert.Equal(t, stubLocator{}, b.Locator)
}

func TestNew_DefaultLocatorUsesSearchRegions(t *testing.T) {
	cfg := loadConfig(t, "[regions.search]\naccept_button = [1900, 1100, 400, 200]\n")
	b, err := New(cfg, nullDriver{}, Options{NoJournal: true, Notifier: notify.Nop{}})
	require.NoError(t, err)

	l, ok := b.Locator.(*screen.TemplateLocator)
	require.True(t, ok, "expected a template locator, got %T", b.Locator)
	assert.Equal(t, cfg.Paths.ImageDir, l.Dir)
	assert.Equal(t, image.Rect(1900, 1100, 2300, 1300), l.ROIs["accept_button"])
}
