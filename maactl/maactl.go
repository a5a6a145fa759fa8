// Package maactl adapts a MaaFramework controller to the screen.Driver
// interface so the negotiation engine can run inside an agent action.
package maactl

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/originbots/tradebot/pkg/vision"
)

// KeyEnter is the virtual key code of the enter key.
const KeyEnter int32 = 13

// WorkSize is the size screenshots are scaled to before they reach
// recognitions and custom actions; click coordinates use the same space.
var WorkSize = image.Pt(1280, 720)

var (
	_ screen.Driver = (*Driver)(nil)

	// ErrNilController indicates the driver was built without a controller.
	ErrNilController = errors.New("controller is nil")
)

// Driver posts jobs to a controller and waits for each one.
// MaaFramework has no hover, so MoveTo only records the pointer position
// and ClickCurrent taps there.
type Driver struct {
	ctrl *maa.Controller

	mu      sync.Mutex
	pointer image.Point
}

// New wraps ctrl.
func New(ctrl *maa.Controller) (*Driver, error) {
	if ctrl == nil {
		return nil, ErrNilController
	}
	return &Driver{ctrl: ctrl}, nil
}

// FromContext uses the controller of the tasker running ctx.
func FromContext(ctx *maa.Context) (*Driver, error) {
	if ctx == nil {
		return nil, ErrNilController
	}
	t := ctx.GetTasker()
	if t == nil {
		return nil, ErrNilController
	}
	return New(t.GetController())
}

func (d *Driver) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.ctrl.PostScreencap().Wait()
	img, err := d.ctrl.CacheImage()
	if err != nil {
		return nil, fmt.Errorf("screencap: %w", err)
	}
	if img == nil {
		return nil, errors.New("screencap: empty image")
	}
	return img, nil
}

func (d *Driver) CaptureRect(ctx context.Context, r image.Rectangle) (image.Image, error) {
	img, err := d.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return vision.Crop(img, r), nil
}

func (d *Driver) MoveTo(ctx context.Context, p image.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.pointer = p
	d.mu.Unlock()
	return nil
}

func (d *Driver) Click(ctx context.Context, p image.Point) error {
	if err := d.MoveTo(ctx, p); err != nil {
		return err
	}
	return d.tap(p)
}

func (d *Driver) ClickCurrent(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	p := d.pointer
	d.mu.Unlock()
	return d.tap(p)
}

func (d *Driver) TypeLine(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.ctrl.PostInputText(text).Wait().Done() {
		return fmt.Errorf("input text %q failed", text)
	}
	if !d.ctrl.PostClickKey(KeyEnter).Wait().Done() {
		return errors.New("press enter failed")
	}
	return nil
}

func (d *Driver) tap(p image.Point) error {
	if !d.ctrl.PostClick(int32(p.X), int32(p.Y)).Wait().Done() {
		return fmt.Errorf("click at %v failed", p)
	}
	return nil
}
