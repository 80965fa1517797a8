// pkg/jobs/jobs.go - per-kind enrichment jobs: export -> pipeline -> CSV

package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/cerberussg/historian/pkg/enricher/spotify"
	"github.com/cerberussg/historian/pkg/export"
	"github.com/cerberussg/historian/pkg/output"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var (
	ErrUnknownJob = errors.New("unknown job")
)

// Runner carries everything a job needs besides its own definition
type Runner struct {
	Fs       afero.Fs
	DataRoot string
	Layout   output.Layout
	Gate     output.Gate

	// Pipeline is a template; Prior and Scope are set per job
	Pipeline enricher.Pipeline
	// Tokens supplies credentials per kind, falling back to Pipeline.Tokens
	Tokens map[enricher.Kind]enricher.TokenProvider

	// Playlists lists the account's playlists for the playlist_tracks job
	Playlists PlaylistSource

	// Force reruns a job even when its output exists
	Force bool
	// UsePrior reuses found entries from the job's last lookup snapshot
	UsePrior bool
}

// TokensFor returns the credential source for kind
func (r Runner) TokensFor(kind enricher.Kind) enricher.TokenProvider {
	if tp, ok := r.Tokens[kind]; ok {
		return tp
	}
	return r.Pipeline.Tokens
}

// Report describes one job run
type Report struct {
	RunID    string
	Job      string
	Subject  string
	Output   string
	Skipped  bool
	Records  int
	Matched  int
	Stats    enricher.Stats
	Finished time.Time
}

// Job enriches records of type R with one kind of lookup
type Job[R any] struct {
	Name  string
	Kind  enricher.Kind
	Scope string
	// Load reads the subject's records from dir
	Load func(ctx context.Context, r Runner, dir string) ([]R, error)
	Key  enricher.KeyFunc[R]
	// Fallback is consulted for records whose Key lookup missed
	Fallback enricher.KeyFunc[R]
	// PriorFrom names other jobs whose snapshots seed the prior with UsePrior
	PriorFrom []string
	Header    []string
	Row       func(R) []string
}

// Runnable is a Job with its record type erased
type Runnable interface {
	JobName() string
	Run(ctx context.Context, r Runner, subject string) (Report, error)
}

// JobName returns the output stem of the job
func (j Job[R]) JobName() string {
	return j.Name
}

// Run executes the job for one subject. An existing output short-circuits
// the run before any credential is requested.
func (j Job[R]) Run(ctx context.Context, r Runner, subject string) (Report, error) {
	report := Report{
		RunID:   uuid.NewString(),
		Job:     j.Name,
		Subject: subject,
		Output:  r.Layout.CSV(subject, j.Name),
	}

	logger := zerolog.Ctx(ctx).With().
		Str("run_id", report.RunID).
		Str("subject", subject).
		Str("job", j.Name).
		Logger()
	ctx = logger.WithContext(ctx)

	release, skip, err := claim(r, report.Output)
	if err != nil {
		return report, err
	}
	if skip {
		return skipped(logger, report), nil
	}
	defer releaseLogged(logger, release)

	records, err := j.Load(ctx, r, filepath.Join(r.DataRoot, subject))
	if err != nil {
		return report, fmt.Errorf("load %s records: %w", j.Name, err)
	}
	report.Records = len(records)

	keys := j.keys()
	ids := enricher.ExtractAll(records, keys...)
	logger.Info().
		Int("records", len(records)).
		Int("identifiers", len(ids)).
		Msg("discovered identifiers")

	p := r.Pipeline
	p.Scope = j.Scope
	p.Tokens = r.TokensFor(j.Kind)
	snapshotPath := r.Layout.Snapshot(subject, j.Name)
	if r.UsePrior {
		prior, err := j.loadPrior(r, subject)
		if err != nil {
			return report, err
		}
		p.Prior = prior
	}

	table, stats, err := p.Run(ctx, ids)
	report.Stats = stats
	if err != nil {
		return report, fmt.Errorf("enrich %s: %w", j.Name, err)
	}

	joined := enricher.JoinFirst(records, table, keys...)
	header := append(append([]string{}, j.Header...), enricher.Columns(j.Kind)...)
	rows := make([][]string, len(joined))
	for i, e := range joined {
		if e.Matched {
			report.Matched++
		}
		rows[i] = append(j.Row(e.Record), e.Values(j.Kind)...)
	}

	if err := output.WriteCSV(r.Fs, report.Output, header, rows); err != nil {
		return report, err
	}
	if err := output.SaveSnapshot(r.Fs, snapshotPath, table); err != nil {
		return report, err
	}

	report.Finished = time.Now()
	logger.Info().
		Str("output", report.Output).
		Int("matched", report.Matched).
		Int("records", report.Records).
		Msg("saved enriched records")
	return report, nil
}

func (j Job[R]) keys() []enricher.KeyFunc[R] {
	if j.Fallback == nil {
		return []enricher.KeyFunc[R]{j.Key}
	}
	return []enricher.KeyFunc[R]{j.Key, j.Fallback}
}

// loadPrior merges the job's own snapshot with those named in PriorFrom.
// Only found entries are kept; the job's own snapshot wins on conflicts.
func (j Job[R]) loadPrior(r Runner, subject string) (*enricher.LookupTable, error) {
	prior := enricher.NewLookupTable()
	for _, name := range append([]string{j.Name}, j.PriorFrom...) {
		snap, err := output.LoadSnapshot(r.Fs, r.Layout.Snapshot(subject, name))
		if err != nil {
			return nil, err
		}
		for _, k := range snap.Keys() {
			out, _ := snap.Get(k)
			if _, seen := prior.Get(k); seen || !out.Found() || k.Kind != j.Kind {
				continue
			}
			prior.Put(enricher.Identifier{Kind: k.Kind, Value: k.Value}, out)
		}
	}
	return prior, nil
}

// claim checks the gate, takes the output lock and checks the gate again,
// since another run may have written the output in between. skip is true
// when the output exists; no lock is held then.
func claim(r Runner, path string) (release func() error, skip bool, err error) {
	if !r.Force && !r.Gate.ShouldRun(path) {
		return nil, true, nil
	}
	release, err = r.Gate.Acquire(path)
	if err != nil {
		return nil, false, err
	}
	if !r.Force && !r.Gate.ShouldRun(path) {
		return nil, true, release()
	}
	return release, false, nil
}

func releaseLogged(logger zerolog.Logger, release func() error) {
	if err := release(); err != nil {
		logger.Warn().Err(err).Msg("failed to release output lock")
	}
}

func skipped(logger zerolog.Logger, report Report) Report {
	logger.Info().Str("output", report.Output).Msg("output exists, skipping")
	report.Skipped = true
	report.Finished = time.Now()
	return report
}

func streamsWith(keep func([]export.Stream) []export.Stream) func(context.Context, Runner, string) ([]export.Stream, error) {
	return func(ctx context.Context, r Runner, dir string) ([]export.Stream, error) {
		streams, err := export.ReadStreams(r.Fs, dir)
		if err != nil {
			return nil, err
		}
		if keep == nil {
			return streams, nil
		}
		return keep(streams), nil
	}
}

// Features adds audio features to every music stream
func Features(scope string) Job[export.Stream] {
	return Job[export.Stream]{
		Name:   "features",
		Kind:   enricher.KindTrack,
		Scope:  scope,
		Load:   streamsWith(export.Tracks),
		Key:    export.TrackKey,
		Header: export.StreamHeader,
		Row:    export.Stream.Row,
	}
}

// Genres adds artist genres to every music stream
func Genres(scope string) Job[export.Stream] {
	return Job[export.Stream]{
		Name:   "genres",
		Kind:   enricher.KindArtist,
		Scope:  scope,
		Load:   streamsWith(export.Tracks),
		Key:    export.ArtistKey,
		Header: export.StreamHeader,
		Row:    export.Stream.Row,
	}
}

// Episodes adds episode and show details to every podcast stream
func Episodes(scope string) Job[export.Stream] {
	return Job[export.Stream]{
		Name:   "episodes",
		Kind:   enricher.KindEpisode,
		Scope:  scope,
		Load:   streamsWith(export.Episodes),
		Key:    export.EpisodeKey,
		Header: export.StreamHeader,
		Row:    export.Stream.Row,
	}
}

// Locations adds coordinates to every stream with an IP address
func Locations(scope string) Job[export.Stream] {
	return Job[export.Stream]{
		Name:   "locations",
		Kind:   enricher.KindIP,
		Scope:  scope,
		Load:   streamsWith(nil),
		Key:    export.IPKey,
		Header: export.StreamHeader,
		Row:    export.Stream.Row,
	}
}

// Playlists adds playlist details to playback interactions started from a
// playlist. The targeted playlist is looked up first, the playlist view the
// interaction happened in fills in when it misses.
func Playlists(scope string) Job[export.Interaction] {
	return Job[export.Interaction]{
		Name:  "playlists",
		Kind:  enricher.KindPlaylist,
		Scope: scope,
		Load: func(ctx context.Context, r Runner, dir string) ([]export.Interaction, error) {
			in, err := export.ReadInteractions(r.Fs, dir)
			if err != nil {
				return nil, err
			}
			return export.PlaylistPlays(in), nil
		},
		Key:      export.TargetPlaylistKey,
		Fallback: export.ViewPlaylistKey,
		Header:   export.InteractionHeader,
		Row:      export.Interaction.Row,
	}
}

// Catalog maps job names to runnable jobs
type Catalog map[string]Runnable

// ScopeIP is the scope IP lookups request their credential under
const ScopeIP = "ipinfo"

// DefaultCatalog holds every job the CLI offers
func DefaultCatalog() Catalog {
	return Catalog{
		"features":        Features(spotify.ScopeRecentlyPlayed),
		"genres":          Genres(spotify.ScopeRecentlyPlayed),
		"episodes":        Episodes(spotify.ScopePlaybackPosition),
		"locations":       Locations(ScopeIP),
		"playlists":       Playlists(spotify.ScopePlaylistRead),
		"playlist_tracks": PlaylistTracks(spotify.ScopePlaylistRead),
	}
}

// Names lists the catalog's job names in order
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named job
func (c Catalog) Lookup(name string) (Runnable, error) {
	job, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w (have %v)", name, ErrUnknownJob, c.Names())
	}
	return job, nil
}
