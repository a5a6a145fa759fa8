package screen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/originbots/tradebot/pkg/vision"
	"github.com/rs/zerolog/log"
)

// TemplateLocator implements Locator with template matching over captures.
// Icons are read lazily from Dir as <name> (or <name>.png) and cached.
type TemplateLocator struct {
	Capturer Capturer
	Dir      string
	// ROIs narrows Locate to a search rectangle per icon name. Names
	// without an entry are searched on the full frame.
	ROIs map[string]image.Rectangle

	mu    sync.Mutex
	cache map[string]*image.Gray
}

var _ Locator = (*TemplateLocator)(nil)

// ErrTemplateMissing is returned when no file exists for an icon name.
var ErrTemplateMissing = errors.New("template file missing")

// NewTemplateLocator creates a locator reading icons from dir.
func NewTemplateLocator(c Capturer, dir string) *TemplateLocator {
	return &TemplateLocator{Capturer: c, Dir: dir, cache: map[string]*image.Gray{}}
}

// Template returns the cached grayscale icon for name, loading it on first use.
func (l *TemplateLocator) Template(name string) (*image.Gray, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache == nil {
		l.cache = map[string]*image.Gray{}
	}
	if g, ok := l.cache[name]; ok {
		return g, nil
	}

	path := filepath.Join(l.Dir, name)
	if filepath.Ext(path) == "" {
		path += ".png"
	}
	g, err := vision.LoadGray(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, path)
		}
		return nil, err
	}
	l.cache[name] = g
	return g, nil
}

// Locate implements Locator.
func (l *TemplateLocator) Locate(ctx context.Context, name string, threshold float64) (image.Point, bool, error) {
	tmpl, err := l.Template(name)
	if err != nil {
		return image.Point{}, false, err
	}
	frame, err := l.capture(ctx, name)
	if err != nil {
		return image.Point{}, false, err
	}
	gray := vision.ToGray(frame)
	score, at, ok := vision.BestMatch(gray, tmpl)
	log.Debug().
		Str("template", name).
		Stringer("frame", frame.Bounds()).
		Float64("score", score).
		Float64("threshold", threshold).
		Msg("[Locator] best match")
	if !ok || score < threshold {
		return image.Point{}, false, nil
	}
	tb := tmpl.Bounds()
	return vision.Center(at, tb.Dx(), tb.Dy(), frame.Bounds().Min), true, nil
}

func (l *TemplateLocator) capture(ctx context.Context, name string) (image.Image, error) {
	if roi, ok := l.ROIs[name]; ok && !roi.Empty() {
		img, err := l.Capturer.CaptureRect(ctx, roi)
		if err != nil {
			return nil, fmt.Errorf("capture %s search region: %w", name, err)
		}
		return img, nil
	}
	img, err := l.Capturer.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return img, nil
}

// FindAll implements Locator.
func (l *TemplateLocator) FindAll(ctx context.Context, name string, region image.Rectangle, threshold, minDist float64) ([]image.Point, error) {
	tmpl, err := l.Template(name)
	if err != nil {
		return nil, err
	}
	shot, err := l.Capturer.CaptureRect(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("capture region: %w", err)
	}
	hits := vision.FindAll(vision.ToGray(shot), tmpl, threshold, minDist)

	// The shot is in screen coordinates and may be clipped to the frame.
	origin := shot.Bounds().Min
	tb := tmpl.Bounds()
	centers := make([]image.Point, 0, len(hits))
	for _, h := range hits {
		centers = append(centers, vision.Center(h, tb.Dx(), tb.Dy(), origin))
	}
	log.Info().
		Str("template", name).
		Int("count", len(centers)).
		Msg("[Locator] inventory matches")
	return centers, nil
}
