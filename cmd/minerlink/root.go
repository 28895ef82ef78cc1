package main

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/spf13/cobra"

	"minerlink/pkg/config"
	"minerlink/pkg/logging"
)

var logger = loggo.GetLogger("minerlink.cli")

var (
	cfg      config.EngineConfig
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "minerlink",
	Short: "Keep a compute node reachable over SSH",
	Long: `minerlink provisions the local SSH server, exposes it through a public
TCP tunnel, publishes how to reach the node and keeps its background
units (system, api, heartbeat) running.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return errors.Annotate(err, "loading configuration")
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		if err := logging.Setup(loaded.LogLevel, os.Stderr); err != nil {
			return errors.Trace(err)
		}
		cfg = loaded
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (DEBUG, INFO, WARNING, ERROR)")
}
