package activity

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/originbots/tradebot/pkg/screen"
	"github.com/originbots/tradebot/symbol"
	"github.com/rs/zerolog/log"
)

// SlotCount is the size of the sampled grid: six counterparty slots followed
// by six of the operator's.
const SlotCount = 12

// DefaultGrid is the slot layout of the trade window at 2560x1440.
var DefaultGrid = [SlotCount]image.Rectangle{
	image.Rect(377, 173, 377+50, 173+20),
	image.Rect(488, 173, 488+50, 173+20),
	image.Rect(600, 173, 600+50, 173+20),
	image.Rect(377, 278, 377+50, 278+20),
	image.Rect(488, 278, 488+50, 278+20),
	image.Rect(600, 278, 600+50, 278+20),
	image.Rect(813, 173, 813+50, 173+20),
	image.Rect(925, 173, 925+50, 173+20),
	image.Rect(1037, 173, 1037+50, 173+20),
	image.Rect(813, 278, 813+50, 278+20),
	image.Rect(925, 278, 925+50, 278+20),
	image.Rect(1037, 278, 1037+50, 278+20),
}

// Monitor samples the slot grid and feeds the tracker.
type Monitor struct {
	Capturer screen.Capturer
	Reader   *symbol.Reader
	Catalog  *symbol.Catalog
	Grid     [SlotCount]image.Rectangle
	Tracker  *Tracker
	// Now defaults to time.Now.
	Now func() time.Time
}

// Sample classifies every slot of the grid, the counterparty's with their
// reference set and the rest with the operator's. A slot that cannot be
// captured reads as 0; the first capture error is returned alongside the
// counts.
func (m *Monitor) Sample(ctx context.Context) ([SlotCount]int, error) {
	var counts [SlotCount]int
	var firstErr error
	for i, r := range m.Grid {
		if err := ctx.Err(); err != nil {
			return counts, err
		}
		side := symbol.Mine
		if i < CounterpartySlots {
			side = symbol.Theirs
		}
		img, err := m.Capturer.CaptureRect(ctx, r)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("capture slot %d: %w", i, err)
			}
			continue
		}
		match := m.Reader.Classify(img, m.Catalog.For(side))
		counts[i] = match.Quantity()
		log.Debug().
			Int("slot", i).
			Str("side", side.String()).
			Str("label", string(match.Label)).
			Float64("score", match.Score).
			Int("count", counts[i]).
			Msg("[Activity] slot sampled")
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	if m.Tracker != nil {
		active := m.Tracker.Observe(counts[:], now())
		log.Info().
			Ints("counterparty", counts[:CounterpartySlots]).
			Bool("active", active).
			Msg("[Activity] sample")
	}
	return counts, firstErr
}
