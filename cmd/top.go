// cmd/top.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/cerberussg/historian/pkg/enricher/spotify"
	"github.com/cerberussg/historian/pkg/jobs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoUserToken = errors.New("top items need a Spotify user token granted user-top-read (set spotify.token)")

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Save the token owner's top tracks and artists",
	Long: `Fetch the most played tracks and artists of the account behind the
Spotify user token and write them to <output>/<subject>/top_tracks.csv and
top_artists.csv. Client credentials cannot read top items, so spotify.token
must hold a user token granted the user-top-read scope.

Examples:
  historian top
  historian top --time-range long_term --limit 100 --subject 001`,
	Args: cobra.NoArgs,
	RunE: runTop,
}

var (
	topSubject   string
	topTimeRange string
	topLimit     int
	topForce     bool
)

func init() {
	rootCmd.AddCommand(topCmd)

	topCmd.Flags().StringVarP(&topSubject, "subject", "s", "me", "output folder the listings are written to")
	topCmd.Flags().StringVar(&topTimeRange, "time-range", spotify.TimeRangeMedium, "short_term, medium_term or long_term")
	topCmd.Flags().IntVar(&topLimit, "limit", 50, "number of tracks and artists to fetch")
	topCmd.Flags().BoolVarP(&topForce, "force", "f", false, "rerun even when the output already exists")
}

func runTop(cmd *cobra.Command, args []string) error {
	if err := validTimeRange(topTimeRange); err != nil {
		return err
	}
	if topLimit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", topLimit)
	}
	if viper.GetString("spotify.token") == "" {
		return errNoUserToken
	}

	runner, err := newRunner()
	if err != nil {
		return err
	}
	runner.Force = topForce

	top := jobs.Top{
		Source:    newSpotifyClient(apiTimeout()),
		TimeRange: topTimeRange,
		Limit:     topLimit,
	}
	reports, err := top.Run(cmd.Context(), runner, topSubject)
	if len(reports) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), summaryTable(reports))
	}
	return err
}

func validTimeRange(r string) error {
	switch r {
	case spotify.TimeRangeShort, spotify.TimeRangeMedium, spotify.TimeRangeLong:
		return nil
	}
	return fmt.Errorf("unknown time range %q (want %s, %s or %s)", r,
		spotify.TimeRangeShort, spotify.TimeRangeMedium, spotify.TimeRangeLong)
}
