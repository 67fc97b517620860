package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "swiftcheck",
	Short: "Event check-in service with signed QR ticket tokens",
	Long: `SwiftCheck validates signed ticket tokens and admits attendees
exactly once per event. It serves the check-in API and can mint
tokens from the command line for ops and demo use.`,
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			log.Error().Err(err).Msg("Failed to display help")
		}
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize()
}
