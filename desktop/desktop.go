// Package desktop drives the local display: kbinani/screenshot for pixels and
// robotgo for pointer and keyboard input.
package desktop

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/go-vgo/robotgo"
	"github.com/kbinani/screenshot"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/rs/zerolog/log"
)

var _ screen.Driver = (*Driver)(nil)

// Driver captures and clicks on one display. Input calls are serialized.
type Driver struct {
	Display int

	mu sync.Mutex
}

// New returns a driver for display, enabling DPI awareness where the platform
// needs it so capture and input agree on coordinates.
func New(display int) (*Driver, error) {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", display, n)
	}
	if err := enableDPIAwareness(); err != nil {
		log.Warn().Err(err).Msg("[Desktop]DPI awareness not enabled")
	}
	b := screenshot.GetDisplayBounds(display)
	log.Info().Int("display", display).Int("w", b.Dx()).Int("h", b.Dy()).Msg("[Desktop]Display selected")
	return &Driver{Display: display}, nil
}

// Bounds is the display rectangle in screen coordinates.
func (d *Driver) Bounds() image.Rectangle {
	return screenshot.GetDisplayBounds(d.Display)
}

func (d *Driver) Capture(ctx context.Context) (image.Image, error) {
	return d.CaptureRect(ctx, d.Bounds())
}

func (d *Driver) CaptureRect(ctx context.Context, r image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, fmt.Errorf("capture: empty rectangle %v", r)
	}
	img, err := screenshot.CaptureRect(r)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", r, err)
	}
	// screenshot returns an image with a zero origin; shift it back to r so
	// callers can crop with screen coordinates.
	img.Rect = img.Rect.Add(r.Min)
	return img, nil
}

func (d *Driver) MoveTo(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	robotgo.Move(p.X, p.Y)
	return nil
}

func (d *Driver) Click(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	robotgo.Move(p.X, p.Y)
	robotgo.Click("left", false)
	return nil
}

func (d *Driver) ClickCurrent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	robotgo.Click("left", false)
	return nil
}

func (d *Driver) TypeLine(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	robotgo.TypeStr(text)
	if err := robotgo.KeyTap("enter"); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	return nil
}
