// Package cli implements the journal command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"threeStopJournal/config"
	"threeStopJournal/internal/app"
	"threeStopJournal/internal/bootstrap"

	"github.com/spf13/cobra"
)

// RootConfig is shared by every command.
type RootConfig struct {
	ConfigFile string

	// Open builds the application. Defaults to loading configuration and bootstrapping.
	Open func(rc *RootConfig) (*bootstrap.App, error)

	app *bootstrap.App
}

// Journal opens the application on first use.
func (rc *RootConfig) Journal() (*app.JournalService, error) {
	a, err := rc.App()
	if err != nil {
		return nil, err
	}
	return a.Journal, nil
}

// App opens the application on first use.
func (rc *RootConfig) App() (*bootstrap.App, error) {
	if rc.app != nil {
		return rc.app, nil
	}
	open := rc.Open
	if open == nil {
		open = openFromConfig
	}
	a, err := open(rc)
	if err != nil {
		return nil, err
	}
	rc.app = a
	return a, nil
}

// Close releases the application if it was opened.
func (rc *RootConfig) Close() error {
	if rc.app == nil {
		return nil
	}
	err := rc.app.Close()
	rc.app = nil
	return err
}

func openFromConfig(rc *RootConfig) (*bootstrap.App, error) {
	if rc.ConfigFile != "" {
		if err := os.Setenv("CONFIG_FILE", rc.ConfigFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cfg)
}

// NewRootCmd builds the command tree.
func NewRootCmd(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "3-stop equity trade journal",
		Long: `journal records equity trades and their partial exits and keeps every
derived figure current: three stop tiers, 1R/2R/3R targets, realized and
unrealized P&L, portfolio allocation, ATR/SMA distances and the R-multiple.

Configuration comes from the environment (.env is read when present) and an
optional YAML file given with --config.`,
		SilenceUsage: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rc.Close()
		},
	}
	cmd.PersistentFlags().StringVar(&rc.ConfigFile, "config", "", "YAML configuration file (env vars override it)")

	cmd.AddCommand(
		newTradeCmd(rc),
		newTxnCmd(rc),
		newSummaryCmd(rc),
	)
	return cmd
}

// Execute runs the command tree against os.Args.
func Execute() error {
	rc := &RootConfig{}
	defer rc.Close()
	return NewRootCmd(rc).Execute()
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(out(cmd), format, args...)
}
