// Package maafocus shows progress lines in the MaaFramework client UI by
// running a throwaway node whose focus text is the message.
package maafocus

import (
	"errors"
	"fmt"
	"html"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/rs/zerolog/log"
)

const nodeName = "_TRADEBOT_FOCUS_"

// ErrNilContext indicates the provided context is nil.
var ErrNilContext = errors.New("context is nil")

// NodeActionStarting displays content as the starting event of a node action.
func NodeActionStarting(ctx *maa.Context, content string) error {
	if ctx == nil {
		return ErrNilContext
	}

	pp := maa.NewPipeline()
	pp.AddNode(maa.NewNode(nodeName).
		SetFocus(map[string]any{
			maa.EventNodeAction.Starting(): content,
		}).
		SetPreDelay(0).
		SetPostDelay(0))
	_, err := ctx.RunTask(nodeName, pp)
	return err
}

// Narrator returns a function that displays each message as an info span and
// only logs failures, for callers that cannot act on them.
func Narrator(ctx *maa.Context) func(msg string) {
	return func(msg string) {
		if err := Span(ctx, msg, ColorInfo); err != nil {
			log.Debug().Err(err).Str("message", msg).Msg("[Focus]update failed")
		}
	}
}

// Colors used by Span.
const (
	ColorInfo    = "#00bfff"
	ColorSuccess = "#3cb371"
	ColorWarning = "#f54927"
)

// Span displays text as a colored span. text is escaped.
func Span(ctx *maa.Context, text, color string) error {
	if color == "" {
		color = ColorInfo
	}
	return NodeActionStarting(ctx, fmt.Sprintf(`<span style="color: %s; font-weight: 500;">%s</span>`, color, html.EscapeString(text)))
}
