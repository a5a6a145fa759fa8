package maactl

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"sort"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/bytedance/sonic"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/rs/zerolog/log"
)

var (
	_ screen.Locator = (*Locator)(nil)

	// ErrNilContext indicates the locator was built without a task context.
	ErrNilContext = errors.New("maa context is nil")
)

// Locator finds icons with the framework's TemplateMatch recognition on
// frames captured through Capturer. Template names resolve against the
// resource image directory, with ".png" appended when missing.
type Locator struct {
	ctx      *maa.Context
	Capturer screen.Capturer
	// ROIs narrows Locate to a search rectangle per icon name.
	ROIs map[string]image.Rectangle
}

// NewLocator runs recognitions on ctx over frames from c.
func NewLocator(ctx *maa.Context, c screen.Capturer) (*Locator, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if c == nil {
		return nil, errors.New("capturer is nil")
	}
	return &Locator{ctx: ctx, Capturer: c}, nil
}

// Locate implements screen.Locator.
func (l *Locator) Locate(ctx context.Context, name string, threshold float64) (image.Point, bool, error) {
	frame, err := l.Capturer.Capture(ctx)
	if err != nil {
		return image.Point{}, false, fmt.Errorf("capture: %w", err)
	}
	roi := searchRegion(frame.Bounds(), l.ROIs[name])
	if roi.Empty() {
		return image.Point{}, false, nil
	}
	detail, err := l.run(name, frame, roi, threshold)
	if err != nil {
		return image.Point{}, false, err
	}
	log.Debug().
		Str("template", name).
		Bool("hit", detail.Hit).
		Ints("box", detail.Box[:]).
		Msg("[Locator] template match")
	if !detail.Hit {
		return image.Point{}, false, nil
	}
	return boxCenter(detail.Box, frame.Bounds().Min), true, nil
}

// FindAll implements screen.Locator. The framework's filtered hits are
// already de-duplicated; minDist is applied on top so both paths agree.
func (l *Locator) FindAll(ctx context.Context, name string, region image.Rectangle, threshold, minDist float64) ([]image.Point, error) {
	frame, err := l.Capturer.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	roi := region.Intersect(frame.Bounds())
	if roi.Empty() {
		return nil, nil
	}
	detail, err := l.run(name, frame, roi, threshold)
	if err != nil {
		return nil, err
	}
	if !detail.Hit {
		return nil, nil
	}
	boxes, err := filteredBoxes(detail.DetailJson, threshold)
	if err != nil {
		return nil, err
	}
	centers := spread(boxes, frame.Bounds().Min, minDist)
	log.Info().
		Str("template", name).
		Int("count", len(centers)).
		Msg("[Locator] inventory matches")
	return centers, nil
}

func (l *Locator) run(name string, frame image.Image, roi image.Rectangle, threshold float64) (*maa.RecognitionDetail, error) {
	detail, err := l.ctx.RunRecognitionDirect(maa.RecognitionTypeTemplateMatch, maa.TemplateMatchParam{
		ROI:       maa.NewTargetRect(toRect(roi.Sub(frame.Bounds().Min))),
		Template:  []string{templatePath(name)},
		Threshold: []float64{threshold},
		OrderBy:   maa.TemplateMatchOrderByScore,
	}, frame)
	if err != nil {
		return nil, fmt.Errorf("template match %s: %w", name, err)
	}
	if detail == nil {
		return nil, fmt.Errorf("template match %s: no detail", name)
	}
	return detail, nil
}

func templatePath(name string) string {
	if path.Ext(name) == "" {
		return name + ".png"
	}
	return name
}

// searchRegion is roi clipped to the frame, or the whole frame when roi is
// unset.
func searchRegion(frame, roi image.Rectangle) image.Rectangle {
	if roi.Empty() {
		return frame
	}
	return roi.Intersect(frame)
}

func toRect(r image.Rectangle) maa.Rect {
	return maa.Rect{r.Min.X, r.Min.Y, r.Dx(), r.Dy()}
}

func boxCenter(b maa.Rect, origin image.Point) image.Point {
	return image.Pt(origin.X+b[0]+b[2]/2, origin.Y+b[1]+b[3]/2)
}

type matchResult struct {
	Box   [4]int  `json:"box"`
	Score float64 `json:"score"`
}

type matchDetail struct {
	All      []matchResult `json:"all"`
	Filtered []matchResult `json:"filtered"`
}

// filteredBoxes reads the filtered hits of a TemplateMatch detail, falling
// back to every result scoring at least threshold.
func filteredBoxes(raw string, threshold float64) ([]maa.Rect, error) {
	if raw == "" {
		return nil, nil
	}
	var d matchDetail
	if err := sonic.UnmarshalString(raw, &d); err != nil {
		return nil, fmt.Errorf("parse template match detail: %w", err)
	}
	src := d.Filtered
	if len(src) == 0 {
		for _, r := range d.All {
			if r.Score >= threshold {
				src = append(src, r)
			}
		}
	}
	boxes := make([]maa.Rect, 0, len(src))
	for _, r := range src {
		boxes = append(boxes, maa.Rect(r.Box))
	}
	return boxes, nil
}

// spread converts boxes to centers in row-major order, dropping any center
// closer than minDist to one already kept.
func spread(boxes []maa.Rect, origin image.Point, minDist float64) []image.Point {
	sorted := append([]maa.Rect(nil), boxes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i][1] != sorted[j][1] {
			return sorted[i][1] < sorted[j][1]
		}
		return sorted[i][0] < sorted[j][0]
	})
	var kept []image.Point
	for _, b := range sorted {
		c := boxCenter(b, origin)
		if farFromAll(c, kept, minDist) {
			kept = append(kept, c)
		}
	}
	return kept
}

func farFromAll(p image.Point, kept []image.Point, minDist float64) bool {
	for _, k := range kept {
		dx, dy := p.X-k.X, p.Y-k.Y
		if float64(dx*dx+dy*dy) < minDist*minDist {
			return false
		}
	}
	return true
}
