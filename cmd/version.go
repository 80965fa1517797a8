package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print the version number of historian",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "historian v%s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Streaming history enrichment tool")
		fmt.Fprintln(cmd.OutOrStdout(), "Adds audio features, genres, podcast, playlist and location data to Spotify exports")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
