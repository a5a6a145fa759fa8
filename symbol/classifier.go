package symbol

import (
	"image"
	"math"

	"github.com/originbots/tradebot/pkg/vision"
)

// Match is the outcome of classifying one region.
type Match struct {
	Label Label
	Score float64
	// Blank is set when the exact blank comparison decided the result.
	Blank bool
}

// Quantity maps the match to a slot count. NoMatch and LabelEmpty are 0.
func (m Match) Quantity() int {
	if d, ok := m.Label.Digit(); ok {
		return d
	}
	return 0
}

// Scorer returns the best score of ref over every alignment inside region.
// Callers only pass references that fit inside region.
type Scorer func(region, ref *image.Gray) float64

// CorrelationScorer scores with TM_CCOEFF_NORMED.
func CorrelationScorer(region, ref *image.Gray) float64 {
	score, _, _ := vision.BestMatch(region, ref)
	return score
}

// Classify picks the best scoring reference of set for region using
// normalized cross-correlation.
func Classify(region image.Image, set *Set) Match {
	return classify(vision.ToGray(region), set, CorrelationScorer)
}

func classify(region *image.Gray, set *Set, score Scorer) Match {
	best := Match{Label: NoMatch, Score: math.Inf(-1)}
	if set == nil {
		return best
	}
	rb := region.Bounds()
	for _, ref := range set.refs {
		if ref.Image == nil || !vision.Fits(rb, ref.Image.Bounds()) {
			symLog.Debug().
				Str("label", string(ref.Label)).
				Msg("[Symbol] reference larger than region, skipped")
			continue
		}
		if s := score(region, ref.Image); s > best.Score {
			best = Match{Label: ref.Label, Score: s}
		}
	}
	return best
}

// Reader reads slot quantities: an exact blank comparison first, then
// classification.
type Reader struct {
	// Blank is the blank slot reference. nil disables the fast path.
	Blank *image.Gray
	// Score defaults to CorrelationScorer.
	Score Scorer
}

// NewReader returns a reader with the catalog's blank reference.
func NewReader(c *Catalog) *Reader {
	r := &Reader{Score: CorrelationScorer}
	if c != nil {
		r.Blank = c.Blank
	}
	return r
}

// IsBlank reports whether region equals the blank reference exactly,
// after resizing the reference to the region's size when they differ.
func (r *Reader) IsBlank(region image.Image) bool {
	if r.Blank == nil {
		return false
	}
	return r.isBlank(vision.ToGray(region))
}

func (r *Reader) isBlank(g *image.Gray) bool {
	if r.Blank == nil {
		return false
	}
	blank := r.Blank
	gb, bb := g.Bounds(), blank.Bounds()
	if gb.Dx() != bb.Dx() || gb.Dy() != bb.Dy() {
		if gb.Empty() {
			return false
		}
		blank = vision.Resize(blank, gb.Dx(), gb.Dy())
	}
	return vision.Equal(g, blank)
}

// Classify implements the probabilistic step alone.
func (r *Reader) Classify(region image.Image, set *Set) Match {
	return classify(vision.ToGray(region), set, r.scorer())
}

// Quantity returns the count shown in region. A blank region is 0 without
// running the matcher.
func (r *Reader) Quantity(region image.Image, set *Set) (int, Match) {
	g := vision.ToGray(region)
	if r.isBlank(g) {
		symLog.Debug().Str("side", sideOf(set)).Msg("[Symbol] blank slot")
		return 0, Match{Label: LabelEmpty, Score: 1, Blank: true}
	}
	m := classify(g, set, r.scorer())
	symLog.Info().
		Str("side", sideOf(set)).
		Str("label", string(m.Label)).
		Float64("score", m.Score).
		Msg("[Symbol] best match")
	return m.Quantity(), m
}

func (r *Reader) scorer() Scorer {
	if r.Score == nil {
		return CorrelationScorer
	}
	return r.Score
}

func sideOf(s *Set) string {
	if s == nil {
		return "none"
	}
	return s.Side.String()
}
