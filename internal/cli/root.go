// Package cli implements the tradectl command tree.
package cli

import (
	"errors"
	"io"

	"github.com/originbots/tradebot/config"
	"github.com/originbots/tradebot/pkg/logging"
	"github.com/originbots/tradebot/pkg/screen"
	"github.com/spf13/cobra"
)

// DriverFactory opens the screen backend for a display.
type DriverFactory func(display int) (screen.Driver, error)

var errNoDriver = errors.New("no screen driver available in this build")

// Execute runs the command tree.
func Execute(newDriver DriverFactory) error {
	return newRootCmd(newDriver).Execute()
}

type app struct {
	configPath string
	logLevel   string
	newDriver  DriverFactory

	cfg     *config.Config
	logFile io.Closer
}

func (a *app) driver(display int) (screen.Driver, error) {
	if a.newDriver == nil {
		return nil, errNoDriver
	}
	return a.newDriver(display)
}

func newRootCmd(newDriver DriverFactory) *cobra.Command {
	a := &app{newDriver: newDriver}

	rootCmd := &cobra.Command{
		Use:           "tradectl",
		Short:         "Trade bot: recognize item counts and negotiate trades",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			a.cfg = cfg
			a.logFile, err = logging.Init(cfg.LogLevel, cfg.StatePath(cfg.Paths.LogFile))
			return err
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.logFile != nil {
				return a.logFile.Close()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./tradebot.toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log_level")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(a),
		newCountCmd(a),
		newWatchCmd(a),
		newClassifyCmd(a),
		newSelectCmd(a),
		newJournalCmd(a),
		newPricesCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}
