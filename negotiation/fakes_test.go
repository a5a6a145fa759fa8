package negotiation

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/originbots/tradebot/activity"
	"github.com/originbots/tradebot/obsstore"
	"github.com/originbots/tradebot/symbol"
)

type clickEvent struct {
	kind string // move|click|current|type
	at   image.Point
	text string
}

type fakeDriver struct {
	mu      sync.Mutex
	events  []clickEvent
	slot    image.Image
	onClick func(p image.Point)
	typeErr error
}

func (d *fakeDriver) record(ev clickEvent) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
}

func (d *fakeDriver) Capture(context.Context) (image.Image, error) { return d.slot, nil }

func (d *fakeDriver) CaptureRect(context.Context, image.Rectangle) (image.Image, error) {
	return d.slot, nil
}

func (d *fakeDriver) MoveTo(_ context.Context, p image.Point) error {
	d.record(clickEvent{kind: "move", at: p})
	return nil
}

func (d *fakeDriver) Click(_ context.Context, p image.Point) error {
	d.record(clickEvent{kind: "click", at: p})
	if d.onClick != nil {
		d.onClick(p)
	}
	return nil
}

func (d *fakeDriver) ClickCurrent(context.Context) error {
	d.record(clickEvent{kind: "current"})
	return nil
}

func (d *fakeDriver) TypeLine(_ context.Context, text string) error {
	d.record(clickEvent{kind: "type", text: text})
	return d.typeErr
}

func (d *fakeDriver) count(kind string, at image.Point) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, ev := range d.events {
		if ev.kind == kind && (kind == "current" || kind == "type" || ev.at == at) {
			n++
		}
	}
	return n
}

func (d *fakeDriver) typed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, ev := range d.events {
		if ev.kind == "type" {
			out = append(out, ev.text)
		}
	}
	return out
}

type fakeLocator struct {
	mu       sync.Mutex
	controls map[string]image.Point
	items    map[string][]image.Point
	searches int
}

func (l *fakeLocator) Locate(_ context.Context, name string, _ float64) (image.Point, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.controls[name]
	return p, ok, nil
}

func (l *fakeLocator) FindAll(_ context.Context, name string, _ image.Rectangle, _, _ float64) ([]image.Point, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.searches++
	return append([]image.Point(nil), l.items[name]...), nil
}

type countingNotifier struct {
	messages []string
}

func (n *countingNotifier) Notify(_ context.Context, msg string) error {
	n.messages = append(n.messages, msg)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

type recordingSaver struct {
	saved []Proposal
}

func (s *recordingSaver) SaveActive(_ context.Context, p Proposal) error {
	s.saved = append(s.saved, p)
	return nil
}

var (
	ptWindow   = image.Pt(100, 100)
	ptAccept   = image.Pt(200, 900)
	ptCancel   = image.Pt(300, 900)
	ptItemBox  = image.Pt(400, 500)
	ptNextPage = image.Pt(2300, 460)
	ptEggIcon  = image.Pt(1500, 520)
	ptChair    = image.Pt(1520, 520)
)

func grayFill(v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 61, 60))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

type harness struct {
	driver   *fakeDriver
	locator  *fakeLocator
	store    *obsstore.MemStore
	notifier *countingNotifier
	clock    *fakeClock
	saver    *recordingSaver
	engine   *Engine
}

var eggForChair = Proposal{Offered: "dino_egg", OfferedQty: 3, Wanted: "majestic_chair", WantedQty: 1}

// newHarness builds an engine whose screen shows a filled trade window with
// every control visible and three dino eggs plus three chairs in inventory.
// opts adjust the engine dependencies before it is built.
func newHarness(base Proposal, opts ...func(*Deps)) *harness {
	cat := DefaultCatalog()
	h := &harness{
		driver: &fakeDriver{slot: grayFill(200)},
		locator: &fakeLocator{
			controls: map[string]image.Point{
				ControlTradeWindow: ptWindow,
				ControlAccept:      ptAccept,
				ControlCancel:      ptCancel,
				ControlMyItemBox:   ptItemBox,
				ControlNextPage:    ptNextPage,
			},
			items: map[string][]image.Point{},
		},
		store:    obsstore.NewMemStore(),
		notifier: &countingNotifier{},
		clock:    &fakeClock{now: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)},
		saver:    &recordingSaver{},
	}
	h.locator.controls[cat["majestic_chair"].Window] = ptChair
	h.locator.controls[cat["dino_egg"].Window] = ptEggIcon
	h.locator.items[cat["dino_egg"].Inventory] = []image.Point{{2050, 240}, {2110, 240}, {2170, 240}}
	h.locator.items[cat["majestic_chair"].Inventory] = []image.Point{{2050, 300}, {2110, 300}, {2170, 300}}
	_, _ = h.store.Save(context.Background(), 3, 3)

	deps := Deps{
		Input:    h.driver,
		Capture:  h.driver,
		Locator:  h.locator,
		Reader:   &symbol.Reader{Blank: grayFill(10)},
		Store:    h.store,
		Notifier: h.notifier,
		Saver:    h.saver,
		Catalog:  cat,
		Sleep:    h.clock.Sleep,
		Now:      h.clock.Now,
		Jitter:   func(lo, _ time.Duration) time.Duration { return lo },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e, err := NewEngine(DefaultConfig(), NewPair(base, nil), deps)
	if err != nil {
		panic(err)
	}
	h.engine = e
	return h
}

var (
	slotEmpty = flatSlot(10)
	slotThree = flatSlot(200)
)

func flatSlot(v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, 50, 20))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// activityFeed serves the activity grid. The counterparty's first slot
// shows three items while active is set.
type activityFeed struct {
	mu       sync.Mutex
	active   bool
	samples  int
	onSample func(n int)
}

func (f *activityFeed) Capture(context.Context) (image.Image, error) { return slotEmpty, nil }

func (f *activityFeed) CaptureRect(_ context.Context, r image.Rectangle) (image.Image, error) {
	if r != activity.DefaultGrid[0] {
		return slotEmpty, nil
	}
	f.mu.Lock()
	f.samples++
	n, active, hook := f.samples, f.active, f.onSample
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if active {
		return slotThree, nil
	}
	return slotEmpty, nil
}

func (f *activityFeed) sampled() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.samples
}

// withMonitor wires an activity monitor reading feed.
func withMonitor(feed *activityFeed) func(*Deps) {
	return func(d *Deps) {
		theirs := symbol.NewSet(symbol.Theirs)
		theirs.Add("3", slotThree)
		theirs.Add(symbol.LabelEmpty, slotEmpty)
		mine := symbol.NewSet(symbol.Mine)
		mine.Add(symbol.LabelEmpty, slotEmpty)
		// identity scorer: 1 for the same bitmap, 0 otherwise
		same := func(region, ref *image.Gray) float64 {
			if region.Pix[0] == ref.Pix[0] {
				return 1
			}
			return 0
		}
		d.Monitor = &activity.Monitor{
			Capturer: feed,
			Reader:   &symbol.Reader{Score: same},
			Catalog:  &symbol.Catalog{Mine: mine, Theirs: theirs},
			Grid:     activity.DefaultGrid,
		}
	}
}
