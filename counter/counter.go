// Package counter runs the recognition loop: read the two tracked slot
// quantities from the screen and publish them to the observation store.
package counter

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"github.com/originbots/tradebot/metrics"
	"github.com/originbots/tradebot/obsstore"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/originbots/tradebot/pkg/vision"
	"github.com/originbots/tradebot/symbol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var cntLog zerolog.Logger = log.With().Str("module", "counter").Logger()

// Config locates the slots and paces the loop.
type Config struct {
	OwnSlot   image.Rectangle
	TheirSlot image.Rectangle
	Period    time.Duration
	// SnapshotDir, when set, receives a PNG of every classified slot.
	SnapshotDir string
}

// DefaultConfig matches a 2560x1440 client.
func DefaultConfig() Config {
	return Config{
		OwnSlot:   image.Rect(1640, 497, 1640+21, 497+20),
		TheirSlot: image.Rect(1306, 498, 1306+21, 498+20),
		Period:    time.Second,
	}
}

// Counter reads both slots from one capture per cycle.
type Counter struct {
	Capture screen.Capturer
	Reader  *symbol.Reader
	Catalog *symbol.Catalog
	Store   obsstore.Writer
	Config  Config
	// Now defaults to time.Now.
	Now func() time.Time
}

// Step runs one recognition cycle.
func (c *Counter) Step(ctx context.Context) (obsstore.Observation, error) {
	frame, err := c.Capture.Capture(ctx)
	if err != nil {
		return obsstore.Observation{}, fmt.Errorf("capture: %w", err)
	}
	stamp := c.now().Format("20060102-150405")

	own := c.read(frame, c.Config.OwnSlot, symbol.Mine, "Your_Item", stamp)
	theirs := c.read(frame, c.Config.TheirSlot, symbol.Theirs, "Their_Item", stamp)

	obs, err := c.Store.Save(ctx, own, theirs)
	if err != nil {
		return obsstore.Observation{}, fmt.Errorf("save observation: %w", err)
	}
	cntLog.Info().
		Int("own", own).
		Int("counterparty", theirs).
		Uint64("version", obs.Version).
		Msg("[Counter] observation saved")
	return obs, nil
}

func (c *Counter) read(frame image.Image, r image.Rectangle, side symbol.Side, label, stamp string) int {
	region := vision.Crop(frame, r)
	if c.Config.SnapshotDir != "" {
		path := filepath.Join(c.Config.SnapshotDir, label+"_"+stamp+".png")
		if err := vision.SavePNG(path, region); err != nil {
			cntLog.Warn().Err(err).Str("file", path).Msg("[Counter] snapshot failed")
		}
	}
	q, m := c.Reader.Quantity(region, c.Catalog.For(side))
	metrics.SetQuantity(side.String(), q)
	if !m.Blank {
		metrics.ObserveScore(side.String(), m.Score)
	}
	return q
}

// Run repeats Step every period until ctx ends. Failed cycles are logged and
// retried on the next tick.
func (c *Counter) Run(ctx context.Context) error {
	period := c.Config.Period
	if period <= 0 {
		period = time.Second
	}
	cntLog.Info().Dur("period", period).Msg("[Counter] recognition loop started")
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		_, err := c.Step(ctx)
		metrics.ObserveCycle(err)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cntLog.Warn().Err(err).Msg("[Counter] cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Counter) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
