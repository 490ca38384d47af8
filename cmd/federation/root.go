package main

import (
	"github.com/spf13/cobra"

	"github.com/federatedforum/fedcore/internal/log"
)

var (
	cfgSearchPath string
	logLevel      string
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "federation",
		Short: "Federation core: shared inbox, dispatcher, and outbound send manager",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyLogLevel(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&cfgSearchPath, "config-dir", ".", "directory to search for fedcore.yaml")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "one of: error, warn, info, debug, trace")

	cmd.AddCommand(startCmd())
	cmd.AddCommand(sendManagerCmd())

	return cmd
}

func applyLogLevel(name string) {
	switch name {
	case "error":
		log.SetLevel(log.ERROR)
	case "warn":
		log.SetLevel(log.WARN)
	case "debug":
		log.SetLevel(log.DEBUG)
	case "trace":
		log.SetLevel(log.TRACE)
	default:
		log.SetLevel(log.INFO)
	}
}
