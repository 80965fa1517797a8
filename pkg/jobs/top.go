// pkg/jobs/top.go - the token owner's top tracks and artists

package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/cerberussg/historian/pkg/enricher/spotify"
	"github.com/cerberussg/historian/pkg/output"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNoTopSource = errors.New("no top items source configured")
)

// TopSource returns the most played items of the account behind a user token
type TopSource interface {
	TopTracks(ctx context.Context, cred enricher.Credential, timeRange string, limit int) ([]spotify.Track, error)
	TopArtists(ctx context.Context, cred enricher.Credential, timeRange string, limit int) ([]spotify.Artist, error)
}

// TopTrackHeader lists the columns of top_tracks.csv
var TopTrackHeader = []string{"rank", "track_id", "track_name", "artist_name", "popularity"}

// TopArtistHeader lists the columns of top_artists.csv
var TopArtistHeader = []string{"rank", "artist_id", "artist_name", "genres", "followers", "popularity"}

// Top writes top_tracks.csv and top_artists.csv for the account that
// granted the Spotify user token. The rows describe that account, not an
// export, so the subject only names the output directory.
type Top struct {
	Source    TopSource
	TimeRange string
	Limit     int
}

// Run writes both listings, each behind the same gate and lock as jobs
func (t Top) Run(ctx context.Context, r Runner, subject string) ([]Report, error) {
	if t.Source == nil {
		return nil, ErrNoTopSource
	}

	listings := []struct {
		name   string
		header []string
		fetch  func(context.Context, enricher.Credential) ([][]string, error)
	}{
		{"top_tracks", TopTrackHeader, t.trackRows},
		{"top_artists", TopArtistHeader, t.artistRows},
	}

	var reports []Report
	for _, l := range listings {
		report, err := t.write(ctx, r, subject, l.name, l.header, l.fetch)
		reports = append(reports, report)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (t Top) write(ctx context.Context, r Runner, subject, name string, header []string,
	fetch func(context.Context, enricher.Credential) ([][]string, error)) (Report, error) {
	report := Report{
		RunID:   uuid.NewString(),
		Job:     name,
		Subject: subject,
		Output:  r.Layout.CSV(subject, name),
	}
	logger := zerolog.Ctx(ctx).With().
		Str("run_id", report.RunID).
		Str("subject", subject).
		Str("job", name).
		Str("time_range", t.TimeRange).
		Logger()

	release, skip, err := claim(r, report.Output)
	if err != nil {
		return report, err
	}
	if skip {
		return skipped(logger, report), nil
	}
	defer releaseLogged(logger, release)

	cred, err := credential(ctx, r.Pipeline.Tokens, spotify.ScopeTopRead)
	if err != nil {
		return report, err
	}
	rows, err := fetch(ctx, cred)
	if err != nil {
		return report, fmt.Errorf("%s: %w", name, err)
	}
	report.Records = len(rows)
	report.Matched = len(rows)

	if err := output.WriteCSV(r.Fs, report.Output, header, rows); err != nil {
		return report, err
	}
	report.Finished = time.Now()
	logger.Info().Str("output", report.Output).Int("records", len(rows)).Msg("saved top items")
	return report, nil
}

func (t Top) trackRows(ctx context.Context, cred enricher.Credential) ([][]string, error) {
	tracks, err := t.Source.TopTracks(ctx, cred, t.TimeRange, t.Limit)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(tracks))
	for i, tr := range tracks {
		artist := ""
		if len(tr.Artists) > 0 {
			artist = tr.Artists[0].Name
		}
		rows[i] = []string{strconv.Itoa(i + 1), tr.ID, tr.Name, artist, strconv.Itoa(tr.Popularity)}
	}
	return rows, nil
}

func (t Top) artistRows(ctx context.Context, cred enricher.Credential) ([][]string, error) {
	artists, err := t.Source.TopArtists(ctx, cred, t.TimeRange, t.Limit)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(artists))
	for i, a := range artists {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			a.ID,
			a.Name,
			strings.Join(a.Genres, ";"),
			strconv.Itoa(a.Followers.Total),
			strconv.Itoa(a.Popularity),
		}
	}
	return rows, nil
}
