// Package config loads tradebot.toml with viper. Every key can be overridden
// from the environment as TRADEBOT_<SECTION>_<KEY>.
package config

import (
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/originbots/tradebot/activity"
	"github.com/originbots/tradebot/counter"
	"github.com/originbots/tradebot/negotiation"
	"github.com/originbots/tradebot/symbol"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "TRADEBOT"
	// FileName is searched for in the working directory when no path is given.
	FileName = "tradebot"
)

// Rect is x, y, width, height in screen pixels.
type Rect [4]int

// Rectangle converts to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r[0], r[1], r[0]+r[2], r[1]+r[3])
}

func rect(x, y, w, h int) Rect { return Rect{x, y, w, h} }

// scale maps r by the per-axis factors, rounding the corners so adjacent
// rectangles stay adjacent.
func (r Rect) scale(sx, sy float64) Rect {
	x0, y0 := round(float64(r[0])*sx), round(float64(r[1])*sy)
	x1, y1 := round(float64(r[0]+r[2])*sx), round(float64(r[1]+r[3])*sy)
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

func round(v float64) int { return int(math.Round(v)) }

// Size is width, height in screen pixels.
type Size [2]int

// Point converts to an image.Point.
func (s Size) Point() image.Point { return image.Pt(s[0], s[1]) }

// DesktopFrame is the client size the default regions are measured at.
var DesktopFrame = image.Pt(2560, 1440)

type Paths struct {
	ImageDir      string `mapstructure:"image_dir"`
	StateDir      string `mapstructure:"state_dir"`
	Store         string `mapstructure:"store"`
	Selection     string `mapstructure:"selection"`
	Journal       string `mapstructure:"journal"`
	Snapshots     string `mapstructure:"snapshots"`
	EnvFile       string `mapstructure:"env_file"`
	LogFile       string `mapstructure:"log_file"`
	MinePattern   string `mapstructure:"mine_pattern"`
	TheirsPattern string `mapstructure:"theirs_pattern"`
	Empty         string `mapstructure:"empty"`
	Blank         string `mapstructure:"blank"`
}

type Regions struct {
	// Frame is the client size every rectangle here is measured at.
	Frame     Size   `mapstructure:"frame"`
	OwnSlot   Rect   `mapstructure:"own_slot"`
	TheirSlot Rect   `mapstructure:"their_slot"`
	BlankSlot Rect   `mapstructure:"blank_slot"`
	Inventory Rect   `mapstructure:"inventory"`
	Grid      []Rect `mapstructure:"grid"`

	// Search limits where a control icon is looked for, by icon name.
	Search map[string]Rect `mapstructure:"search"`
}

type Thresholds struct {
	Control     float64 `mapstructure:"control"`
	Inventory   float64 `mapstructure:"inventory"`
	MinDistance float64 `mapstructure:"min_distance"`
}

type Timing struct {
	WatchdogTimeout   time.Duration `mapstructure:"watchdog_timeout"`
	Poll              time.Duration `mapstructure:"poll"`
	JitterMin         time.Duration `mapstructure:"jitter_min"`
	JitterMax         time.Duration `mapstructure:"jitter_max"`
	PageSettle        time.Duration `mapstructure:"page_settle"`
	ClickSettle       time.Duration `mapstructure:"click_settle"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	StartDelay        time.Duration `mapstructure:"start_delay"`
	RecognitionPeriod time.Duration `mapstructure:"recognition_period"`
}

type Status struct {
	Addr string `mapstructure:"addr"`
}

type Prices struct {
	URL string `mapstructure:"url"`
}

// Config is the whole configuration file.
type Config struct {
	LogLevel      string                      `mapstructure:"log_level"`
	PageSwapLimit int                         `mapstructure:"page_swap_limit"`
	Proposal      negotiation.Proposal        `mapstructure:"proposal"`
	Paths         Paths                       `mapstructure:"paths"`
	Regions       Regions                     `mapstructure:"regions"`
	Thresholds    Thresholds                  `mapstructure:"thresholds"`
	Timing        Timing                      `mapstructure:"timing"`
	Status        Status                      `mapstructure:"status"`
	Prices        Prices                      `mapstructure:"prices"`
	Items         map[string]negotiation.Item `mapstructure:"items"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	neg := negotiation.DefaultConfig()
	cnt := counter.DefaultConfig()

	v.SetDefault("log_level", "info")
	v.SetDefault("page_swap_limit", neg.PageSwapLimit)

	v.SetDefault("paths.image_dir", "images")
	v.SetDefault("paths.state_dir", ".")
	v.SetDefault("paths.store", "item_counts.json")
	v.SetDefault("paths.selection", "trade_state.toml")
	v.SetDefault("paths.journal", "tradebot.db")
	v.SetDefault("paths.snapshots", "")
	v.SetDefault("paths.env_file", ".env")
	v.SetDefault("paths.log_file", "tradebot.log")
	v.SetDefault("paths.mine_pattern", symbol.DefaultLayout.MinePattern)
	v.SetDefault("paths.theirs_pattern", symbol.DefaultLayout.TheirsPattern)
	v.SetDefault("paths.empty", symbol.DefaultLayout.Empty)
	v.SetDefault("paths.blank", symbol.DefaultLayout.Blank)

	v.SetDefault("regions.frame", Size{DesktopFrame.X, DesktopFrame.Y})
	v.SetDefault("regions.own_slot", fromRectangle(cnt.OwnSlot))
	v.SetDefault("regions.their_slot", fromRectangle(cnt.TheirSlot))
	v.SetDefault("regions.blank_slot", fromRectangle(neg.BlankSlotRect))
	v.SetDefault("regions.inventory", fromRectangle(neg.InventoryRect))
	grid := make([]Rect, 0, activity.SlotCount)
	for _, r := range activity.DefaultGrid {
		grid = append(grid, fromRectangle(r))
	}
	v.SetDefault("regions.grid", grid)
	v.SetDefault("regions.search", map[string]any{})

	v.SetDefault("thresholds.control", neg.ControlThreshold)
	v.SetDefault("thresholds.inventory", neg.InventoryThreshold)
	v.SetDefault("thresholds.min_distance", neg.MinDistance)

	v.SetDefault("timing.watchdog_timeout", activity.DefaultTimeout)
	v.SetDefault("timing.poll", neg.PollInterval)
	v.SetDefault("timing.jitter_min", neg.JitterMin)
	v.SetDefault("timing.jitter_max", neg.JitterMax)
	v.SetDefault("timing.page_settle", neg.PageSettle)
	v.SetDefault("timing.click_settle", neg.ClickSettle)
	v.SetDefault("timing.settle_delay", neg.SettleDelay)
	v.SetDefault("timing.start_delay", neg.StartDelay)
	v.SetDefault("timing.recognition_period", cnt.Period)

	v.SetDefault("status.addr", "127.0.0.1:8089")
	v.SetDefault("prices.url", "https://originvalues.com/")

	items := map[string]any{}
	for name, it := range negotiation.DefaultCatalog() {
		items[name] = map[string]any{"inventory": it.Inventory, "window": it.Window}
	}
	v.SetDefault("items", items)
}

func fromRectangle(r image.Rectangle) Rect {
	return rect(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// Load reads path, or tradebot.toml from the working directory when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges that would make the loops misbehave.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Regions.Grid) != activity.SlotCount {
		errs = append(errs, fmt.Errorf("regions.grid must have %d slots, has %d", activity.SlotCount, len(c.Regions.Grid)))
	}
	for name, th := range map[string]float64{"thresholds.control": c.Thresholds.Control, "thresholds.inventory": c.Thresholds.Inventory} {
		if th <= 0 || th > 1 {
			errs = append(errs, fmt.Errorf("%s must be in (0, 1], got %v", name, th))
		}
	}
	if c.Regions.Frame[0] <= 0 || c.Regions.Frame[1] <= 0 {
		errs = append(errs, fmt.Errorf("regions.frame must be positive, got %v", c.Regions.Frame))
	}
	if c.PageSwapLimit < 1 {
		errs = append(errs, fmt.Errorf("page_swap_limit must be positive, got %d", c.PageSwapLimit))
	}
	if c.Timing.JitterMax < c.Timing.JitterMin {
		errs = append(errs, errors.New("timing.jitter_max is below timing.jitter_min"))
	}
	if c.Timing.WatchdogTimeout <= 0 || c.Timing.Poll <= 0 {
		errs = append(errs, errors.New("timing.watchdog_timeout and timing.poll must be positive"))
	}
	if c.Proposal != (negotiation.Proposal{}) {
		if err := c.Proposal.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ScaleTo converts every region, and the inventory hit distance, from
// Regions.Frame to a client of the given size.
func (c *Config) ScaleTo(frame image.Point) error {
	if frame.X <= 0 || frame.Y <= 0 {
		return fmt.Errorf("cannot scale regions to %v", frame)
	}
	from := c.Regions.Frame.Point()
	if from == frame {
		return nil
	}
	if from.X <= 0 || from.Y <= 0 {
		return fmt.Errorf("regions.frame must be positive, got %v", c.Regions.Frame)
	}
	sx := float64(frame.X) / float64(from.X)
	sy := float64(frame.Y) / float64(from.Y)

	r := &c.Regions
	r.OwnSlot = r.OwnSlot.scale(sx, sy)
	r.TheirSlot = r.TheirSlot.scale(sx, sy)
	r.BlankSlot = r.BlankSlot.scale(sx, sy)
	r.Inventory = r.Inventory.scale(sx, sy)
	grid := make([]Rect, len(r.Grid))
	for i, g := range r.Grid {
		grid[i] = g.scale(sx, sy)
	}
	r.Grid = grid
	search := make(map[string]Rect, len(r.Search))
	for name, s := range r.Search {
		search[name] = s.scale(sx, sy)
	}
	r.Search = search
	r.Frame = Size{frame.X, frame.Y}
	c.Thresholds.MinDistance *= math.Min(sx, sy)
	return nil
}

// SearchROIs returns the per-icon search rectangles.
func (c *Config) SearchROIs() map[string]image.Rectangle {
	rois := make(map[string]image.Rectangle, len(c.Regions.Search))
	for name, r := range c.Regions.Search {
		rois[name] = r.Rectangle()
	}
	return rois
}

// StatePath resolves a path relative to paths.state_dir.
func (c *Config) StatePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.StateDir, p)
}

// Layout is the reference catalog layout.
func (c *Config) Layout() symbol.Layout {
	return symbol.Layout{
		MinePattern:   c.Paths.MinePattern,
		TheirsPattern: c.Paths.TheirsPattern,
		Empty:         c.Paths.Empty,
		Blank:         c.Paths.Blank,
	}
}

// Negotiation returns the engine settings.
func (c *Config) Negotiation() negotiation.Config {
	return negotiation.Config{
		ControlThreshold:   c.Thresholds.Control,
		InventoryThreshold: c.Thresholds.Inventory,
		MinDistance:        c.Thresholds.MinDistance,
		InventoryRect:      c.Regions.Inventory.Rectangle(),
		BlankSlotRect:      c.Regions.BlankSlot.Rectangle(),
		PollInterval:       c.Timing.Poll,
		JitterMin:          c.Timing.JitterMin,
		JitterMax:          c.Timing.JitterMax,
		PageSwapLimit:      c.PageSwapLimit,
		PageSettle:         c.Timing.PageSettle,
		ClickSettle:        c.Timing.ClickSettle,
		SettleDelay:        c.Timing.SettleDelay,
		StartDelay:         c.Timing.StartDelay,
	}
}

// Counter returns the recognition loop settings.
func (c *Config) Counter() counter.Config {
	return counter.Config{
		OwnSlot:     c.Regions.OwnSlot.Rectangle(),
		TheirSlot:   c.Regions.TheirSlot.Rectangle(),
		Period:      c.Timing.RecognitionPeriod,
		SnapshotDir: c.Paths.Snapshots,
	}
}

// Grid returns the activity grid.
func (c *Config) Grid() [activity.SlotCount]image.Rectangle {
	var g [activity.SlotCount]image.Rectangle
	for i := 0; i < len(g) && i < len(c.Regions.Grid); i++ {
		g[i] = c.Regions.Grid[i].Rectangle()
	}
	return g
}

// Catalog returns the item catalog.
func (c *Config) Catalog() negotiation.Catalog {
	cat := negotiation.Catalog{}
	for name, it := range c.Items {
		cat[name] = it
	}
	return cat
}
