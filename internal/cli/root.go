// Package cli holds the recordsvc commands.
package cli

import (
	"os"

	"github.com/gogotex/records/pkg/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
}

// NewRootCommand creates the root command for the recordsvc CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "recordsvc",
		Short: "Per-owner record store",
		Long:  "Stores records keyed by owner and a server-assigned, globally increasing id.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := opts.LogLevel
			if level == "" {
				level = os.Getenv("LOG_LEVEL")
			}
			logger.Init(level)
			logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), defaults to LOG_LEVEL")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))

	return cmd
}
