// cmd/enrich.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cerberussg/historian/pkg/auth"
	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/cerberussg/historian/pkg/enricher/ipinfo"
	"github.com/cerberussg/historian/pkg/enricher/musicbrainz"
	"github.com/cerberussg/historian/pkg/enricher/spotify"
	"github.com/cerberussg/historian/pkg/jobs"
	"github.com/cerberussg/historian/pkg/output"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <kind>",
	Short: "Enrich a subject's export with one kind of remote metadata",
	Long: `Look up every distinct identifier of one kind in a subject's export and
write the enriched records to <output>/<subject>/<kind>.csv.

Kinds:
  features         - audio features per track (streaming history)
  genres           - artist genres, Spotify first, MusicBrainz as fallback
  episodes         - podcast episode and show details
  locations        - coordinates of the IP addresses streams were played from
  playlists        - details of playlists playback was started from (KmInteraction.json)
  playlist_tracks  - audio features of the tracks in the account's playlists
                     (username from Identity.json; --prior reuses features)
  all              - every kind above, one after another

An existing output file is never recomputed unless --force is given.
Interrupting a run writes nothing.

Examples:
  historian enrich features --subject 001
  historian enrich genres --subject 001,002
  historian enrich locations --force --prior`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: append(jobs.DefaultCatalog().Names(), "all"),
	RunE:      runEnrich,
}

var (
	subjects []string
	force    bool
	usePrior bool
)

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().StringSliceVarP(&subjects, "subject", "s", []string{"001"}, "subject folder(s) under the data directory")
	enrichCmd.Flags().BoolVarP(&force, "force", "f", false, "rerun even when the output already exists")
	enrichCmd.Flags().BoolVar(&usePrior, "prior", false, "reuse found lookups from the last snapshot")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := zerolog.Ctx(ctx)

	catalog := jobs.DefaultCatalog()
	names := []string{strings.ToLower(args[0])}
	if names[0] == "all" {
		names = catalog.Names()
	}
	selected := make([]jobs.Runnable, 0, len(names))
	for _, name := range names {
		job, err := catalog.Lookup(name)
		if err != nil {
			return err
		}
		selected = append(selected, job)
	}

	runner, err := newRunner()
	if err != nil {
		return err
	}
	runner.Force = force
	runner.UsePrior = usePrior

	var reports []jobs.Report
	for _, subject := range subjects {
		for _, job := range selected {
			report, err := job.Run(ctx, runner, subject)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn().Str("subject", subject).Str("job", job.JobName()).Msg("interrupted, nothing was written")
				}
				return err
			}
			reports = append(reports, report)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n=== SUMMARY ===\n")
	fmt.Fprintln(cmd.OutOrStdout(), summaryTable(reports))
	return nil
}

// newRunner wires providers, credentials and paths from configuration
func newRunner() (jobs.Runner, error) {
	timeout := apiTimeout()
	sp := newSpotifyClient(timeout)
	registry := enricher.Registry{}
	for kind, f := range sp.Registry() {
		registry[kind] = enricher.WithTimeout(f, timeout)
	}
	if viper.GetBool("api.musicbrainz.enabled") {
		mb := musicbrainz.NewProvider("", viper.GetString("api.musicbrainz.user_agent"))
		registry[enricher.KindArtist] = enricher.NewChain(registry[enricher.KindArtist], enricher.WithTimeout(mb, timeout))
	}
	registry[enricher.KindIP] = enricher.WithTimeout(ipinfo.NewClient("", timeout), timeout)

	var spotifyTokens enricher.TokenProvider
	if token := viper.GetString("spotify.token"); token != "" {
		spotifyTokens = auth.Static{Token: token, Required: true}
	} else {
		spotifyTokens = &auth.ClientCredentials{
			ClientID:     viper.GetString("spotify.client_id"),
			ClientSecret: viper.GetString("spotify.client_secret"),
		}
	}

	fs := afero.NewOsFs()
	outputRoot := viper.GetString("paths.output")
	if outputRoot == "" {
		return jobs.Runner{}, errors.New("paths.output must not be empty")
	}

	return jobs.Runner{
		Fs:       fs,
		DataRoot: viper.GetString("paths.data"),
		Layout:   output.Layout{Root: outputRoot},
		Gate:     output.Gate{Fs: fs, LockDir: filepath.Join(outputRoot, ".locks")},
		Pipeline: enricher.Pipeline{
			Fetcher:       registry,
			Tokens:        spotifyTokens,
			ProgressEvery: viper.GetInt("pipeline.progress_every"),
			RefreshEvery:  viper.GetInt("pipeline.refresh_every"),
			RefreshAfter:  viper.GetDuration("pipeline.refresh_after"),
		},
		Tokens: map[enricher.Kind]enricher.TokenProvider{
			enricher.KindIP: auth.Static{Token: viper.GetString("api.ipinfo.token")},
		},
		Playlists: sp,
	}, nil
}

func apiTimeout() time.Duration {
	if timeout := viper.GetDuration("api.timeout"); timeout > 0 {
		return timeout
	}
	return enricher.DefaultTimeout
}

func newSpotifyClient(timeout time.Duration) *spotify.Client {
	return spotify.NewClient(
		spotify.WithTimeout(timeout),
		spotify.WithRateLimit(viper.GetFloat64("api.spotify.requests_per_second")),
	)
}

func summaryTable(reports []jobs.Report) string {
	headers := []string{"Subject", "Kind", "Status", "Records", "Identifiers", "Found", "Missing", "Throttled", "Reused", "Matched", "Took", "Run ID"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		if r.Skipped {
			rows = append(rows, []string{r.Subject, r.Job, "skipped (output exists)", "", "", "", "", "", "", "", "", r.RunID})
			continue
		}
		rows = append(rows, []string{
			r.Subject,
			r.Job,
			"done",
			strconv.Itoa(r.Records),
			strconv.Itoa(r.Stats.Identifiers),
			strconv.Itoa(r.Stats.Found),
			strconv.Itoa(r.Stats.Missing),
			strconv.Itoa(r.Stats.RateLimited),
			strconv.Itoa(r.Stats.Reused),
			fmt.Sprintf("%d (%.1f%%)", r.Matched, percent(r.Matched, r.Records)),
			r.Stats.Elapsed.Round(time.Second).String(),
			r.RunID,
		})
	}
	return renderTable(headers, rows, aligns)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
