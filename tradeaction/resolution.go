package tradeaction

import (
	"fmt"
	"image"
	"sync"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/originbots/tradebot/maactl"
	"github.com/rs/zerolog/log"
)

// ExpectedResolution is the screenshot size the scaled regions assume.
var ExpectedResolution = maactl.WorkSize

// ResolutionChecker warns once per session when the captured frame does not
// match ExpectedResolution.
type ResolutionChecker struct {
	once sync.Once
}

// OnTaskerTask handles tasker task events
func (c *ResolutionChecker) OnTaskerTask(tasker *maa.Tasker, event maa.EventStatus, detail maa.TaskerTaskDetail) {
	if event != maa.EventStatusStarting || tasker == nil {
		return
	}
	c.once.Do(func() {
		ctrl := tasker.GetController()
		if ctrl == nil {
			return
		}
		ctrl.PostScreencap().Wait()
		img, err := ctrl.CacheImage()
		if err != nil || img == nil {
			log.Warn().Err(err).Msg("[TradeBot]Resolution check skipped, no screenshot")
			return
		}
		if err := checkResolution(img.Bounds()); err != nil {
			log.Warn().Err(err).Str("entry", detail.Entry).Msg("[TradeBot]Screenshot size mismatch, regions will be off")
			return
		}
		log.Debug().Msg("[TradeBot]Resolution check passed")
	})
}

func checkResolution(b image.Rectangle) error {
	if b.Size() != ExpectedResolution {
		return fmt.Errorf("client is %dx%d, expected %dx%d", b.Dx(), b.Dy(), ExpectedResolution.X, ExpectedResolution.Y)
	}
	return nil
}
