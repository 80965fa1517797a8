// pkg/enricher/spotify/spotify.go

package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	baseURL = "https://api.spotify.com/v1"
	// Spotify limits over a rolling 30s window
	defaultRequestsPerSecond = 10
	providerName             = "spotify"
)

// Scopes each lookup kind is requested under
const (
	ScopeRecentlyPlayed   = "user-read-recently-played"
	ScopePlaybackPosition = "user-read-playback-position"
	ScopePlaylistRead     = "playlist-read-collaborative"
	ScopeTopRead          = "user-top-read"
)

// Client looks up Spotify Web API metadata. Every method is an
// enricher.Fetcher body: failures come back as misses.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root, e.g. a test server
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.http.SetBaseURL(u)
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithRateLimit paces requests to rps per second; zero or less disables pacing
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// NewClient creates a Spotify Web API client
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(enricher.DefaultTimeout).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider's display name
func (c *Client) Name() string {
	return providerName
}

// Registry returns the dispatch table for every kind Spotify can answer
func (c *Client) Registry() enricher.Registry {
	return enricher.Registry{
		enricher.KindTrack:    enricher.FetcherFunc(c.AudioFeatures),
		enricher.KindArtist:   enricher.FetcherFunc(c.ArtistGenres),
		enricher.KindPlaylist: enricher.FetcherFunc(c.Playlist),
		enricher.KindEpisode:  enricher.FetcherFunc(c.Episode),
	}
}

// AudioFeatures fetches the audio features of the track id.Value
func (c *Client) AudioFeatures(ctx context.Context, id enricher.Identifier, cred enricher.Credential) enricher.Outcome {
	var f AudioFeatures
	if err := c.get(ctx, cred, "/audio-features/{id}", id.Value, &f); err != nil {
		return enricher.NotFound(err)
	}
	if f.ID == "" {
		return enricher.NotFound(fmt.Errorf("audio features for %s: %w", id.Value, enricher.ErrNotFound))
	}

	return enricher.Found(enricher.TrackFeatures{
		Acousticness:     f.Acousticness,
		Danceability:     f.Danceability,
		Energy:           f.Energy,
		Instrumentalness: f.Instrumentalness,
		Key:              f.Key,
		Liveness:         f.Liveness,
		Loudness:         f.Loudness,
		Mode:             f.Mode,
		Speechiness:      f.Speechiness,
		Tempo:            f.Tempo,
		Valence:          f.Valence,
		DurationMs:       f.DurationMs,
		TimeSignature:    f.TimeSignature,
	})
}

// ArtistGenres fetches the genres of an artist. With a hint the hint is a
// track ID and the artist is its first credited artist; without one
// id.Value is the artist ID.
func (c *Client) ArtistGenres(ctx context.Context, id enricher.Identifier, cred enricher.Credential) enricher.Outcome {
	artistID := id.Value
	if id.Hint != "" {
		var t Track
		if err := c.get(ctx, cred, "/tracks/{id}", id.Hint, &t); err != nil {
			return enricher.NotFound(err)
		}
		if len(t.Artists) == 0 || t.Artists[0].ID == "" {
			return enricher.NotFound(fmt.Errorf("track %s has no artist: %w", id.Hint, enricher.ErrNotFound))
		}
		artistID = t.Artists[0].ID
	}

	var a Artist
	if err := c.get(ctx, cred, "/artists/{id}", artistID, &a); err != nil {
		return enricher.NotFound(err)
	}
	if len(a.Genres) == 0 {
		return enricher.NotFound(fmt.Errorf("artist %s has no genres: %w", artistID, enricher.ErrNotFound))
	}

	return enricher.Found(enricher.ArtistGenres{
		ArtistID: a.ID,
		Genres:   a.Genres,
		Source:   providerName,
	})
}

// Playlist fetches name, description and owner of a playlist
func (c *Client) Playlist(ctx context.Context, id enricher.Identifier, cred enricher.Credential) enricher.Outcome {
	var p Playlist
	if err := c.get(ctx, cred, "/playlists/{id}", id.Value, &p); err != nil {
		return enricher.NotFound(err)
	}
	if p.ID == "" && p.Name == "" {
		return enricher.NotFound(fmt.Errorf("playlist %s: %w", id.Value, enricher.ErrNotFound))
	}

	owner := p.Owner.DisplayName
	if owner == "" {
		owner = p.Owner.ID
	}
	return enricher.Found(enricher.PlaylistInfo{
		Name:          p.Name,
		Description:   p.Description,
		Owner:         owner,
		Collaborative: p.Collaborative,
		Public:        p.Public != nil && *p.Public,
		TracksTotal:   p.Tracks.Total,
	})
}

// Episode fetches podcast episode details together with its show
func (c *Client) Episode(ctx context.Context, id enricher.Identifier, cred enricher.Credential) enricher.Outcome {
	var e Episode
	if err := c.get(ctx, cred, "/episodes/{id}", id.Value, &e); err != nil {
		return enricher.NotFound(err)
	}
	if e.ID == "" {
		return enricher.NotFound(fmt.Errorf("episode %s: %w", id.Value, enricher.ErrNotFound))
	}

	return enricher.Found(enricher.EpisodeInfo{
		Description:     e.Description,
		DurationMs:      e.DurationMs,
		Language:        e.Language,
		Languages:       e.Languages,
		ReleaseDate:     e.ReleaseDate,
		ShowDescription: e.Show.Description,
		ShowPublisher:   e.Show.Publisher,
	})
}

// get performs one bearer-authenticated GET and decodes the JSON body into out
func (c *Client) get(ctx context.Context, cred enricher.Credential, path, id string, out interface{}) error {
	return c.getWithQuery(ctx, cred, path, id, nil, out)
}

func (c *Client) getWithQuery(ctx context.Context, cred enricher.Credential, path, id string, query map[string]string, out interface{}) error {
	if id == "" {
		return fmt.Errorf("empty id for %s: %w", path, enricher.ErrNotFound)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.Token).
		SetPathParam("id", id).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return fmt.Errorf("spotify request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return statusError(resp)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

func statusError(resp *resty.Response) error {
	var sentinel error
	switch resp.StatusCode() {
	case http.StatusTooManyRequests:
		sentinel = enricher.ErrRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = enricher.ErrAuthorization
	case http.StatusNotFound:
		sentinel = enricher.ErrNotFound
	default:
		sentinel = enricher.ErrAPIError
	}

	var body ErrorResponse
	if json.Unmarshal(resp.Body(), &body) == nil && body.Error.Message != "" {
		return fmt.Errorf("spotify API returned status %d (%s): %w", resp.StatusCode(), body.Error.Message, sentinel)
	}
	return fmt.Errorf("spotify API returned status %d: %w", resp.StatusCode(), sentinel)
}
