package cli

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/originbots/tradebot/pkg/vision"
	"github.com/originbots/tradebot/symbol"
	"github.com/spf13/cobra"
)

func newClassifyCmd(a *app) *cobra.Command {
	var (
		side    string
		rect    []int
		live    bool
		display int
	)
	cmd := &cobra.Command{
		Use:   "classify [image]",
		Short: "Read the quantity shown in a saved slot image or on screen",
		Long: "classify runs the quantity reader on a PNG, or with --live on a fresh capture of the display. " +
			"Without --rect a live capture reads the slot of the chosen side from the configuration.",
		Args: func(cmd *cobra.Command, args []string) error {
			if live {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var s symbol.Side
			switch strings.ToLower(side) {
			case "mine", "own":
				s = symbol.Mine
			case "theirs", "counterparty":
				s = symbol.Theirs
			default:
				return fmt.Errorf("unknown side %q (mine|theirs)", side)
			}

			var crop image.Rectangle
			switch {
			case len(rect) == 4:
				crop = image.Rect(rect[0], rect[1], rect[0]+rect[2], rect[1]+rect[3])
			case len(rect) > 0:
				return errors.New("--rect takes x,y,w,h")
			case live && s == symbol.Mine:
				crop = a.cfg.Counter().OwnSlot
			case live:
				crop = a.cfg.Counter().TheirSlot
			}

			var region image.Image
			if live {
				drv, err := a.driver(display)
				if err != nil {
					return err
				}
				if region, err = drv.CaptureRect(cmd.Context(), crop); err != nil {
					return err
				}
			} else {
				img, err := vision.LoadGray(args[0])
				if err != nil {
					return err
				}
				region = img
				if !crop.Empty() {
					region = vision.Crop(img, crop)
				}
			}

			cat := symbol.LoadCatalog(a.cfg.Paths.ImageDir, a.cfg.Layout())
			qty, m := symbol.NewReader(cat).Quantity(region, cat.For(s))
			label := string(m.Label)
			if m.Label == symbol.NoMatch {
				label = "-"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "quantity=%d label=%s score=%.4f blank=%t\n", qty, label, m.Score, m.Blank)
			return err
		},
	}
	cmd.Flags().StringVar(&side, "side", "mine", "reference set to use (mine|theirs)")
	cmd.Flags().IntSliceVar(&rect, "rect", nil, "crop x,y,w,h before classifying")
	cmd.Flags().BoolVar(&live, "live", false, "capture the display instead of reading a file")
	cmd.Flags().IntVar(&display, "display", 0, "display index for --live")
	return cmd
}
