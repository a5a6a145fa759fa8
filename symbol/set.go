package symbol

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/originbots/tradebot/pkg/vision"
)

// Label identifies a reference bitmap: a digit "0".."9" or LabelEmpty.
type Label string

const (
	// NoMatch is returned when no reference could be compared.
	NoMatch Label = ""
	// LabelEmpty is the reference for a slot showing no quantity.
	LabelEmpty Label = "empty"
)

// DigitLabel returns the label for digit d.
func DigitLabel(d int) Label { return Label(strconv.Itoa(d)) }

// Digit returns the numeric value of a digit label.
func (l Label) Digit() (int, bool) {
	if len(l) != 1 || l[0] < '0' || l[0] > '9' {
		return 0, false
	}
	return int(l[0] - '0'), true
}

// Side is the party whose slot glyphs a set describes.
type Side int

const (
	Mine Side = iota
	Theirs
)

func (s Side) String() string {
	switch s {
	case Mine:
		return "mine"
	case Theirs:
		return "theirs"
	default:
		return "unknown"
	}
}

// Reference is one labeled bitmap.
type Reference struct {
	Label Label
	Image *image.Gray
}

// Set is the per-side reference catalog. It is built once and only read
// afterwards; iteration order is insertion order.
type Set struct {
	Side Side
	refs []Reference
}

// NewSet returns an empty set for side.
func NewSet(side Side) *Set { return &Set{Side: side} }

// Add inserts or replaces the reference for label.
func (s *Set) Add(label Label, img *image.Gray) {
	for i := range s.refs {
		if s.refs[i].Label == label {
			s.refs[i].Image = img
			return
		}
	}
	s.refs = append(s.refs, Reference{Label: label, Image: img})
}

// Len returns the number of references.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.refs)
}

// Labels lists the labels in insertion order.
func (s *Set) Labels() []Label {
	if s == nil {
		return nil
	}
	out := make([]Label, 0, len(s.refs))
	for _, r := range s.refs {
		out = append(out, r.Label)
	}
	return out
}

// References returns a copy of the references.
func (s *Set) References() []Reference {
	if s == nil {
		return nil
	}
	return append([]Reference(nil), s.refs...)
}

// LoadSet reads digit references from fmt.Sprintf(pattern, d) for d in 0..9
// and the empty reference from emptyPath. A file that is missing or cannot
// be decoded leaves its label out of the set.
func LoadSet(side Side, pattern, emptyPath string) *Set {
	s := NewSet(side)
	for d := 0; d <= 9; d++ {
		loadInto(s, DigitLabel(d), fmt.Sprintf(pattern, d))
	}
	if emptyPath != "" {
		loadInto(s, LabelEmpty, emptyPath)
	}
	symLog.Info().
		Str("side", side.String()).
		Int("count", s.Len()).
		Msg("[Symbol] reference set loaded")
	return s
}

func loadInto(s *Set, label Label, path string) {
	img, err := vision.LoadGray(path)
	if err != nil {
		ev := symLog.Warn()
		if errors.Is(err, os.ErrNotExist) {
			ev = symLog.Debug()
		}
		ev.Err(err).Str("label", string(label)).Str("path", path).Msg("[Symbol] reference skipped")
		return
	}
	s.Add(label, img)
}

// Layout names the reference files relative to a catalog directory.
type Layout struct {
	MinePattern   string
	TheirsPattern string
	Empty         string
	Blank         string
}

// DefaultLayout is the on-disk layout of a reference catalog.
var DefaultLayout = Layout{
	MinePattern:   filepath.Join("Me", "%d.png"),
	TheirsPattern: filepath.Join("Other", "Other_%d.png"),
	Empty:         "Empty.png",
	Blank:         "Blank.png",
}

// Catalog bundles both sides plus the blank slot reference.
type Catalog struct {
	Mine   *Set
	Theirs *Set
	// Blank may be nil when the file is absent; the fast path is then skipped.
	Blank *image.Gray
}

// For returns the set of side.
func (c *Catalog) For(side Side) *Set {
	if side == Theirs {
		return c.Theirs
	}
	return c.Mine
}

// LoadCatalog loads a catalog from dir. Gaps are tolerated everywhere.
func LoadCatalog(dir string, layout Layout) *Catalog {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c := &Catalog{
		Mine:   LoadSet(Mine, join(layout.MinePattern), join(layout.Empty)),
		Theirs: LoadSet(Theirs, join(layout.TheirsPattern), join(layout.Empty)),
	}
	if layout.Blank != "" {
		blank, err := vision.LoadGray(join(layout.Blank))
		if err != nil {
			symLog.Warn().Err(err).Msg("[Symbol] blank reference unavailable, fast path disabled")
		} else {
			c.Blank = blank
		}
	}
	return c
}
