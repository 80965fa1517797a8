// pkg/jobs/playlists.go - the account's own playlists, listed remotely

package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/cerberussg/historian/pkg/enricher/spotify"
	"github.com/cerberussg/historian/pkg/export"
	"github.com/rs/zerolog"
)

var (
	ErrNoPlaylistSource = errors.New("no playlist source configured")
)

// PlaylistSource lists an account's playlists and their tracks
type PlaylistSource interface {
	UserPlaylists(ctx context.Context, cred enricher.Credential, userID string) ([]spotify.Playlist, error)
	PlaylistTracks(ctx context.Context, cred enricher.Credential, playlistID string) ([]spotify.Track, error)
}

// PlaylistTracks adds audio features to every track of the playlists the
// export's account owns or follows. Features found by the features job are
// reused with UsePrior.
func PlaylistTracks(scope string) Job[export.PlaylistTrack] {
	return Job[export.PlaylistTrack]{
		Name:      "playlist_tracks",
		Kind:      enricher.KindTrack,
		Scope:     scope,
		Load:      loadPlaylistTracks(scope),
		Key:       export.PlaylistTrackKey,
		PriorFrom: []string{"features"},
		Header:    export.PlaylistTrackHeader,
		Row:       export.PlaylistTrack.Row,
	}
}

func loadPlaylistTracks(scope string) func(context.Context, Runner, string) ([]export.PlaylistTrack, error) {
	return func(ctx context.Context, r Runner, dir string) ([]export.PlaylistTrack, error) {
		if r.Playlists == nil {
			return nil, ErrNoPlaylistSource
		}
		user, err := export.ReadUsername(r.Fs, dir)
		if err != nil {
			return nil, err
		}
		cred, err := credential(ctx, r.TokensFor(enricher.KindPlaylist), scope)
		if err != nil {
			return nil, err
		}

		playlists, err := r.Playlists.UserPlaylists(ctx, cred, user)
		if err != nil {
			return nil, err
		}
		logger := zerolog.Ctx(ctx)
		logger.Info().Int("playlists", len(playlists)).Msg("listed account playlists")

		// the account's own name stays out of the output
		subject := filepath.Base(dir)

		var entries []export.PlaylistTrack
		for _, pl := range playlists {
			tracks, err := r.Playlists.PlaylistTracks(ctx, cred, pl.ID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn().Err(err).Str("playlist", pl.ID).Msg("skipping playlist")
				continue
			}

			owner := pl.Owner.DisplayName
			if owner == "" {
				owner = pl.Owner.ID
			}
			if pl.Owner.ID == user {
				owner = subject
			}
			for i, t := range tracks {
				entry := export.PlaylistTrack{
					PlaylistID:    pl.ID,
					PlaylistName:  pl.Name,
					PlaylistOwner: owner,
					Position:      i + 1,
					TrackID:       t.ID,
					TrackName:     t.Name,
				}
				if len(t.Artists) > 0 {
					entry.ArtistName = t.Artists[0].Name
				}
				entries = append(entries, entry)
			}
		}
		return entries, nil
	}
}

func credential(ctx context.Context, tokens enricher.TokenProvider, scope string) (enricher.Credential, error) {
	if tokens == nil {
		return enricher.Credential{}, fmt.Errorf("no token provider for scope %q: %w", scope, enricher.ErrAuthorization)
	}
	cred, err := tokens.Credential(ctx, scope)
	if err != nil {
		return enricher.Credential{}, fmt.Errorf("credential for scope %q: %w", scope, err)
	}
	return cred, nil
}
