package vision

import (
	"image"
	"math"
	"sort"
)

// plane is a zero-origin float copy of a grayscale image.
type plane struct {
	w, h int
	pix  []float64
}

func toPlane(g *image.Gray) plane {
	b := g.Bounds()
	p := plane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < p.w; x++ {
			p.pix[y*p.w+x] = float64(row[x])
		}
	}
	return p
}

// halve averages 2x2 blocks; an odd trailing row or column is dropped.
func halve(p plane) plane {
	h := plane{w: p.w / 2, h: p.h / 2}
	h.pix = make([]float64, h.w*h.h)
	for y := 0; y < h.h; y++ {
		r0 := 2 * y * p.w
		r1 := r0 + p.w
		for x := 0; x < h.w; x++ {
			h.pix[y*h.w+x] = (p.pix[r0+2*x] + p.pix[r0+2*x+1] + p.pix[r1+2*x] + p.pix[r1+2*x+1]) / 4
		}
	}
	return h
}

// integral holds summed-area tables of a plane and of its squares, one row
// and one column larger than the plane.
type integral struct {
	stride    int
	sum, sum2 []float64
}

func newIntegral(p plane) integral {
	it := integral{stride: p.w + 1}
	it.sum = make([]float64, (p.w+1)*(p.h+1))
	it.sum2 = make([]float64, (p.w+1)*(p.h+1))
	for y := 0; y < p.h; y++ {
		var rs, rs2 float64
		for x := 0; x < p.w; x++ {
			v := p.pix[y*p.w+x]
			rs += v
			rs2 += v * v
			i := (y+1)*it.stride + x + 1
			it.sum[i] = it.sum[i-it.stride] + rs
			it.sum2[i] = it.sum2[i-it.stride] + rs2
		}
	}
	return it
}

// window returns Σv and Σv² over the w×h window at (x, y).
func (it integral) window(x, y, w, h int) (s, s2 float64) {
	a := y*it.stride + x
	b := a + w
	c := (y+h)*it.stride + x
	d := c + w
	return it.sum[d] - it.sum[b] - it.sum[c] + it.sum[a],
		it.sum2[d] - it.sum2[b] - it.sum2[c] + it.sum2[a]
}

// kernel is a template with its mean removed.
type kernel struct {
	w, h int
	n    float64
	tc   []float64
	norm float64
}

func newKernel(t plane) kernel {
	k := kernel{w: t.w, h: t.h, n: float64(t.w * t.h), tc: make([]float64, len(t.pix))}
	var mean float64
	for _, v := range t.pix {
		mean += v
	}
	mean /= k.n
	for i, v := range t.pix {
		k.tc[i] = v - mean
		k.norm += k.tc[i] * k.tc[i]
	}
	return k
}

// score is the TM_CCOEFF_NORMED value of k aligned at (ox, oy) in s.
func score(s plane, it integral, k kernel, ox, oy int) float64 {
	var cross float64
	for y := 0; y < k.h; y++ {
		row := s.pix[(oy+y)*s.w+ox : (oy+y)*s.w+ox+k.w]
		trow := k.tc[y*k.w : (y+1)*k.w]
		for x, v := range row {
			cross += v * trow[x]
		}
	}
	// Σ(T'·I') == Σ(T'·I) because Σ T' == 0.
	sum, sum2 := it.window(ox, oy, k.w, k.h)
	wVar := sum2 - sum*sum/k.n
	denom := math.Sqrt(math.Max(wVar, 0) * k.norm)
	if denom <= 1e-9 {
		return 0
	}
	return cross / denom
}

// ScoreMap holds TM_CCOEFF_NORMED scores for every valid alignment of a
// template inside a source image. Score(x, y) is the alignment whose top-left
// corner sits at (x, y) in source coordinates (zero-origin).
type ScoreMap struct {
	W, H   int
	Scores []float64
}

// At returns the score at alignment (x, y).
func (m ScoreMap) At(x, y int) float64 { return m.Scores[y*m.W+x] }

// Fits reports whether tmpl can be aligned inside src at least once.
func Fits(src, tmpl image.Rectangle) bool {
	return tmpl.Dx() <= src.Dx() && tmpl.Dy() <= src.Dy() && tmpl.Dx() > 0 && tmpl.Dy() > 0
}

// MatchTemplate computes the normalized cross-correlation (mean-subtracted)
// between tmpl and every same-sized window of src. ok is false when tmpl does
// not fit inside src.
func MatchTemplate(src, tmpl *image.Gray) (m ScoreMap, ok bool) {
	if !Fits(src.Bounds(), tmpl.Bounds()) {
		return ScoreMap{}, false
	}
	return matchPlanes(toPlane(src), toPlane(tmpl)), true
}

func matchPlanes(s, t plane) ScoreMap {
	it := newIntegral(s)
	k := newKernel(t)
	m := ScoreMap{W: s.w - t.w + 1, H: s.h - t.h + 1}
	m.Scores = make([]float64, m.W*m.H)
	for oy := 0; oy < m.H; oy++ {
		for ox := 0; ox < m.W; ox++ {
			m.Scores[oy*m.W+ox] = score(s, it, k, ox, oy)
		}
	}
	return m
}

const (
	// pyramidArea is the source area above which BestMatch searches a
	// downscaled copy first.
	pyramidArea = 320 * 240

	// pyramidMinSide is the smallest template side kept at a coarse level.
	pyramidMinSide = 4

	maxPyramidLevels = 3

	// coarseCandidates is how many coarse peaks are refined at full size.
	coarseCandidates = 8
)

// pyramidLevels returns how many times src and tmpl can be halved before
// the search runs.
func pyramidLevels(src, tmpl image.Rectangle) int {
	n := 0
	for n < maxPyramidLevels {
		next := n + 1
		if tmpl.Dx()>>next < pyramidMinSide || tmpl.Dy()>>next < pyramidMinSide {
			break
		}
		if (src.Dx()>>n)*(src.Dy()>>n) <= pyramidArea {
			break
		}
		n = next
	}
	return n
}

// BestMatch returns the highest score over all alignments and where it was
// found. ok is false when tmpl does not fit inside src.
//
// Large sources are searched coarse to fine: the best peaks of a halved
// copy are rescored exactly at full resolution around their positions.
func BestMatch(src, tmpl *image.Gray) (best float64, at image.Point, ok bool) {
	if !Fits(src.Bounds(), tmpl.Bounds()) {
		return math.Inf(-1), image.Point{}, false
	}
	s, t := toPlane(src), toPlane(tmpl)
	levels := pyramidLevels(src.Bounds(), tmpl.Bounds())
	if levels == 0 {
		m := matchPlanes(s, t)
		best, at = m.argmax()
		return best, at, true
	}

	cs, ct := s, t
	for i := 0; i < levels; i++ {
		cs, ct = halve(cs), halve(ct)
	}
	coarse := matchPlanes(cs, ct)
	peaks := coarse.peaks(coarseCandidates, 2)

	it := newIntegral(s)
	k := newKernel(t)
	maxX, maxY := s.w-t.w, s.h-t.h
	f := 1 << levels
	best = math.Inf(-1)
	for _, p := range peaks {
		x0, x1 := clamp(p.X*f-f, 0, maxX), clamp(p.X*f+f, 0, maxX)
		y0, y1 := clamp(p.Y*f-f, 0, maxY), clamp(p.Y*f+f, 0, maxY)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				if v := score(s, it, k, x, y); v > best {
					best, at = v, image.Pt(x, y)
				}
			}
		}
	}
	return best, at, true
}

func (m ScoreMap) argmax() (best float64, at image.Point) {
	best = math.Inf(-1)
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if v := m.At(x, y); v > best {
				best, at = v, image.Pt(x, y)
			}
		}
	}
	return best, at
}

// peaks returns up to n alignments in descending score order, each at least
// sep away from the ones before it.
func (m ScoreMap) peaks(n int, sep float64) []image.Point {
	idx := make([]int, len(m.Scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return m.Scores[idx[a]] > m.Scores[idx[b]] })
	var kept []image.Point
	for _, i := range idx {
		if len(kept) == n {
			break
		}
		p := image.Pt(i%m.W, i/m.W)
		if farFromAll(p, kept, sep) {
			kept = append(kept, p)
		}
	}
	return kept
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// FindAll returns the top-left corners of every alignment scoring at least
// threshold, scanned row by row, keeping a point only when it is at least
// minDist pixels away from every point already kept. Adjacent alignments of
// the same icon therefore collapse into one hit.
func FindAll(src, tmpl *image.Gray, threshold float64, minDist float64) []image.Point {
	m, ok := MatchTemplate(src, tmpl)
	if !ok {
		return nil
	}
	var kept []image.Point
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(x, y) < threshold {
				continue
			}
			p := image.Pt(x, y)
			if farFromAll(p, kept, minDist) {
				kept = append(kept, p)
			}
		}
	}
	return kept
}

func farFromAll(p image.Point, kept []image.Point, minDist float64) bool {
	for _, k := range kept {
		dx, dy := float64(p.X-k.X), float64(p.Y-k.Y)
		if math.Hypot(dx, dy) < minDist {
			return false
		}
	}
	return true
}

// Center returns the center of a w×h box whose top-left corner is p,
// translated by offset.
func Center(p image.Point, w, h int, offset image.Point) image.Point {
	return image.Pt(p.X+offset.X+w/2, p.Y+offset.Y+h/2)
}
