// Command tradectl runs the trade bot against the local display.
package main

import (
	"os"

	"github.com/originbots/tradebot/desktop"
	"github.com/originbots/tradebot/internal/cli"
	"github.com/originbots/tradebot/pkg/screen"
)

func main() {
	if err := cli.Execute(func(display int) (screen.Driver, error) {
		return desktop.New(display)
	}); err != nil {
		os.Exit(1)
	}
}
