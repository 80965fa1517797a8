// pkg/enricher/musicbrainz/musicbrainz.go

package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	baseURL          = "https://musicbrainz.org/ws/2"
	defaultUserAgent = "historian/0.1.0 (https://github.com/cerberussg/historian)"
	rateLimit        = time.Second // 1 request per second
	searchLimit      = 5
	providerName     = "musicbrainz"
)

// Provider answers artist genre lookups from MusicBrainz. It needs no
// credential and is used behind Spotify in an enricher.Chain.
type Provider struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewProvider creates a MusicBrainz genre provider. Empty arguments keep
// the public API and the default user agent.
func NewProvider(base, userAgent string) *Provider {
	if base == "" {
		base = baseURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json"),
		limiter: rate.NewLimiter(rate.Every(rateLimit), 1),
	}
}

// Name returns the provider's display name
func (m *Provider) Name() string {
	return providerName
}

// Fetch looks up the genres of the artist named id.Value. The credential
// is ignored.
func (m *Provider) Fetch(ctx context.Context, id enricher.Identifier, _ enricher.Credential) enricher.Outcome {
	name := strings.TrimSpace(id.Value)
	if name == "" {
		return enricher.NotFound(fmt.Errorf("empty artist name: %w", enricher.ErrNotFound))
	}

	artists, err := m.searchArtists(ctx, name)
	if err != nil {
		return enricher.NotFound(fmt.Errorf("musicbrainz artist search failed: %w", err))
	}

	best := m.findBestArtistMatch(artists, name)
	if best == nil {
		return enricher.NotFound(fmt.Errorf("no artist matching %q: %w", name, enricher.ErrNotFound))
	}

	detail, err := m.getArtist(ctx, best.ID)
	if err != nil {
		return enricher.NotFound(fmt.Errorf("musicbrainz artist lookup failed: %w", err))
	}

	genres := genreNames(detail)
	if len(genres) == 0 {
		genres = tagNames(best.Tags)
	}
	if len(genres) == 0 {
		return enricher.NotFound(fmt.Errorf("artist %s has no genres: %w", best.ID, enricher.ErrNotFound))
	}

	return enricher.Found(enricher.ArtistGenres{
		ArtistID: best.ID,
		Genres:   genres,
		Source:   providerName,
	})
}

// searchArtists searches MusicBrainz for artists by name
func (m *Provider) searchArtists(ctx context.Context, name string) ([]Artist, error) {
	query := fmt.Sprintf(`artist:"%s"`, strings.ReplaceAll(name, `"`, `\"`))

	var result ArtistSearchResult
	err := m.get(ctx, "/artist", map[string]string{
		"query": query,
		"limit": strconv.Itoa(searchLimit),
		"fmt":   "json",
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Artists, nil
}

// getArtist fetches an artist with its genres and tags
func (m *Provider) getArtist(ctx context.Context, artistID string) (*Artist, error) {
	var artist Artist
	err := m.get(ctx, "/artist/"+artistID, map[string]string{
		"inc": "genres+tags",
		"fmt": "json",
	}, &artist)
	if err != nil {
		return nil, err
	}
	return &artist, nil
}

func (m *Provider) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := m.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		// MusicBrainz answers 503 when the rate limit is exceeded
		return fmt.Errorf("musicbrainz API returned status %d: %w", resp.StatusCode(), enricher.ErrRateLimit)
	case http.StatusNotFound:
		return fmt.Errorf("musicbrainz API returned status %d: %w", resp.StatusCode(), enricher.ErrNotFound)
	default:
		return fmt.Errorf("musicbrainz API returned status %d: %w", resp.StatusCode(), enricher.ErrAPIError)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// findBestArtistMatch prefers exact name matches, then search score
func (m *Provider) findBestArtistMatch(artists []Artist, targetName string) *Artist {
	if len(artists) == 0 {
		return nil
	}

	bestScore := 0
	var bestArtist *Artist

	for i, artist := range artists {
		score := artist.Score

		if strings.EqualFold(artist.Name, targetName) {
			score += 10
		} else {
			for _, alias := range artist.Aliases {
				if strings.EqualFold(alias.Name, targetName) {
					score += 5
					break
				}
			}
		}

		if score > bestScore {
			bestScore = score
			bestArtist = &artists[i]
		}
	}

	return bestArtist
}

// genreNames returns genre names ordered by vote count, most voted first
func genreNames(a *Artist) []string {
	if a == nil || len(a.Genres) == 0 {
		return nil
	}
	genres := make([]Genre, len(a.Genres))
	copy(genres, a.Genres)
	sort.SliceStable(genres, func(i, j int) bool {
		return genres[i].Count > genres[j].Count
	})

	names := make([]string, 0, len(genres))
	for _, g := range genres {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	return names
}

// tagNames keeps only tags with a positive vote count
func tagNames(tags []Tag) []string {
	sorted := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Count > 0 && t.Name != "" {
			sorted = append(sorted, t)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Count > sorted[j].Count
	})

	var names []string
	for _, t := range sorted {
		names = append(names, t.Name)
	}
	return names
}
