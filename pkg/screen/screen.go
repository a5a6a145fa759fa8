// Package screen defines the collaborators the recognition and negotiation
// loops talk to: something that captures pixels, something that injects input,
// and something that finds reference icons on screen.
package screen

import (
	"context"
	"image"
)

// Capturer supplies raster images of the observed interface.
type Capturer interface {
	// Capture returns the full frame.
	Capture(ctx context.Context) (image.Image, error)
	// CaptureRect returns only the pixels inside r, in screen coordinates.
	CaptureRect(ctx context.Context, r image.Rectangle) (image.Image, error)
}

// Inputter injects simulated input. Calls are fire-and-forget from the
// observed system's point of view; the error only reports local failures.
type Inputter interface {
	MoveTo(ctx context.Context, p image.Point) error
	Click(ctx context.Context, p image.Point) error
	// ClickCurrent clicks wherever the pointer was last moved to.
	ClickCurrent(ctx context.Context) error
	// TypeLine types text and presses enter.
	TypeLine(ctx context.Context, text string) error
}

// Driver is a full screen automation backend.
type Driver interface {
	Capturer
	Inputter
}

// Locator finds reference icons on screen.
type Locator interface {
	// Locate returns the center of the best match of the named icon on the
	// full frame when its score reaches threshold.
	Locate(ctx context.Context, name string, threshold float64) (image.Point, bool, error)
	// FindAll returns the centers of every match of the named icon inside
	// region, de-duplicated so hits closer than minDist collapse into one.
	FindAll(ctx context.Context, name string, region image.Rectangle, threshold, minDist float64) ([]image.Point, error)
}
