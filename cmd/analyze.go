// cmd/analyze.go
package cmd

import (
	"fmt"
	"strconv"

	"github.com/cerberussg/historian/pkg/analysis"
	"github.com/cerberussg/historian/pkg/output"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate enriched records",
	Long: `Aggregate the CSVs written by 'historian enrich'.

Examples:
  historian analyze genres --subject 001
  historian analyze mood --subject 001
  historian analyze playlist-mood --subject 001
  historian analyze playlists --subject 001
  historian analyze locations --precision 2`,
}

var analyzeGenresCmd = &cobra.Command{
	Use:   "genres",
	Short: "Count streams per genre (reads genres.csv)",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzeGenres,
}

var analyzeMoodCmd = &cobra.Command{
	Use:   "mood",
	Short: "Average feature z-scores per month (reads features.csv)",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzeMood,
}

var analyzePlaylistMoodCmd = &cobra.Command{
	Use:   "playlist-mood",
	Short: "Average feature z-scores per playlist against the history (reads features.csv and playlist_tracks.csv)",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzePlaylistMood,
}

var analyzePlaylistsCmd = &cobra.Command{
	Use:   "playlists",
	Short: "Count playlist plays per weekday and hour (reads playlists.csv)",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzePlaylists,
}

var analyzeLocationsCmd = &cobra.Command{
	Use:   "locations",
	Short: "Count streams per rounded coordinate cell (reads locations.csv)",
	Args:  cobra.NoArgs,
	RunE:  runAnalyzeLocations,
}

var (
	analyzeSubject string
	topGenres      int
	precision      int
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.AddCommand(analyzeGenresCmd)
	analyzeCmd.AddCommand(analyzeMoodCmd)
	analyzeCmd.AddCommand(analyzePlaylistMoodCmd)
	analyzeCmd.AddCommand(analyzePlaylistsCmd)
	analyzeCmd.AddCommand(analyzeLocationsCmd)

	analyzeCmd.PersistentFlags().StringVarP(&analyzeSubject, "subject", "s", "001", "subject to analyse")
	analyzeGenresCmd.Flags().IntVar(&topGenres, "top", 15, "number of genres to print")
	analyzeLocationsCmd.Flags().IntVar(&precision, "precision", analysis.DefaultPrecision, "decimals coordinates are rounded to")
}

func runAnalyzeGenres(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	layout := output.Layout{Root: viper.GetString("paths.output")}

	header, rows, err := output.ReadCSV(fs, layout.CSV(analyzeSubject, "genres"))
	if err != nil {
		return fmt.Errorf("read genres (run 'historian enrich genres' first): %w", err)
	}

	counts, err := analysis.GenreCounts(header, rows)
	if err != nil {
		return err
	}

	path := layout.CSV(analyzeSubject, "genre_counts")
	if err := output.WriteCSV(fs, path, analysis.GenreCountHeader, analysis.GenreCountRows(counts)); err != nil {
		return err
	}
	zerolog.Ctx(cmd.Context()).Info().Str("output", path).Int("genres", len(counts)).Msg("saved genre counts")

	top := counts
	if topGenres > 0 && len(top) > topGenres {
		top = top[:topGenres]
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(analysis.GenreCountHeader, analysis.GenreCountRows(top), []columnAlignment{alignLeft, alignRight}))
	return nil
}

func runAnalyzeMood(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	layout := output.Layout{Root: viper.GetString("paths.output")}

	header, rows, err := output.ReadCSV(fs, layout.CSV(analyzeSubject, "features"))
	if err != nil {
		return fmt.Errorf("read features (run 'historian enrich features' first): %w", err)
	}

	moods, err := analysis.MonthlyMood(header, rows)
	if err != nil {
		return err
	}

	path := layout.CSV(analyzeSubject, "monthly_mood")
	moodRows := analysis.MonthlyMoodRows(moods)
	if err := output.WriteCSV(fs, path, analysis.MonthlyMoodHeader(), moodRows); err != nil {
		return err
	}
	zerolog.Ctx(cmd.Context()).Info().Str("output", path).Int("months", len(moods)).Msg("saved monthly mood")

	// energy and valence carry most of the mood; print those
	energy, valence := featureIndex("energy"), featureIndex("valence")
	printed := make([][]string, len(moods))
	for i, m := range moods {
		printed[i] = []string{m.Month, strconv.Itoa(m.Streams), moodRows[i][2+energy], moodRows[i][2+valence]}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Month", "Streams", "Energy z", "Valence z"},
		printed,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
	return nil
}

func runAnalyzePlaylistMood(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	layout := output.Layout{Root: viper.GetString("paths.output")}

	historyHeader, historyRows, err := output.ReadCSV(fs, layout.CSV(analyzeSubject, "features"))
	if err != nil {
		return fmt.Errorf("read features (run 'historian enrich features' first): %w", err)
	}
	playlistHeader, playlistRows, err := output.ReadCSV(fs, layout.CSV(analyzeSubject, "playlist_tracks"))
	if err != nil {
		return fmt.Errorf("read playlist tracks (run 'historian enrich playlist_tracks' first): %w", err)
	}

	moods, err := analysis.PlaylistMoods(historyHeader, historyRows, playlistHeader, playlistRows)
	if err != nil {
		return err
	}

	path := layout.CSV(analyzeSubject, "playlist_mood")
	moodRows := analysis.PlaylistMoodRows(moods)
	if err := output.WriteCSV(fs, path, analysis.PlaylistMoodHeader(), moodRows); err != nil {
		return err
	}
	zerolog.Ctx(cmd.Context()).Info().Str("output", path).Int("playlists", len(moods)).Msg("saved playlist mood")

	energy, valence := featureIndex("energy"), featureIndex("valence")
	printed := make([][]string, len(moods))
	for i, m := range moods {
		printed[i] = []string{m.Name, strconv.Itoa(m.Tracks), moodRows[i][3+energy], moodRows[i][3+valence]}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Playlist", "Tracks", "Energy z", "Valence z"},
		printed,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	))
	return nil
}

func runAnalyzePlaylists(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	layout := output.Layout{Root: viper.GetString("paths.output")}

	header, rows, err := output.ReadCSV(fs, layout.CSV(analyzeSubject, "playlists"))
	if err != nil {
		return fmt.Errorf("read playlists (run 'historian enrich playlists' first): %w", err)
	}

	usage, err := analysis.PlaylistUsages(header, rows)
	if err != nil {
		return err
	}

	path := layout.CSV(analyzeSubject, "playlist_usage")
	usageRows := analysis.PlaylistUsageRows(usage)
	if err := output.WriteCSV(fs, path, analysis.PlaylistUsageHeader(), usageRows); err != nil {
		return err
	}
	zerolog.Ctx(cmd.Context()).Info().Str("output", path).Int("playlists", len(usage)).Msg("saved playlist usage")

	// the hourly columns are too wide for a terminal
	printed := make([][]string, len(usageRows))
	for i, row := range usageRows {
		printed[i] = row[:9]
	}
	aligns := []columnAlignment{alignLeft}
	for i := 1; i < 9; i++ {
		aligns = append(aligns, alignRight)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(analysis.PlaylistUsageHeader()[:9], printed, aligns))
	return nil
}

func runAnalyzeLocations(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	layout := output.Layout{Root: viper.GetString("paths.output")}

	header, rows, err := output.ReadCSV(fs, layout.CSV(analyzeSubject, "locations"))
	if err != nil {
		return fmt.Errorf("read locations (run 'historian enrich locations' first): %w", err)
	}

	cells, err := analysis.LocationCells(header, rows, precision)
	if err != nil {
		return err
	}

	path := layout.CSV(analyzeSubject, "location_cells")
	cellRows := analysis.LocationCellRows(cells, precision)
	if err := output.WriteCSV(fs, path, analysis.LocationCellHeader, cellRows); err != nil {
		return err
	}
	zerolog.Ctx(cmd.Context()).Info().Str("output", path).Int("cells", len(cells)).Msg("saved location cells")

	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		analysis.LocationCellHeader,
		cellRows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
	return nil
}

func featureIndex(name string) int {
	for i, f := range analysis.MoodFeatures {
		if f == name {
			return i
		}
	}
	return 0
}
