// pkg/enricher/spotify/library.go - listings: user playlists, playlist items, top items

package spotify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cerberussg/historian/pkg/enricher"
)

const (
	playlistPageSize = 50
	itemPageSize     = 100
	topPageSize      = 50
	// maxPages caps pagination against a server that keeps returning next
	maxPages = 200
)

// Top item time ranges
const (
	TimeRangeShort  = "short_term"
	TimeRangeMedium = "medium_term"
	TimeRangeLong   = "long_term"
)

// UserPlaylists lists the public playlists a user owns or follows
func (c *Client) UserPlaylists(ctx context.Context, cred enricher.Credential, userID string) ([]Playlist, error) {
	return paginate(0, func(offset int) ([]Playlist, bool, error) {
		var page PlaylistPage
		if err := c.getWithQuery(ctx, cred, "/users/{id}/playlists", userID, pageQuery(offset, playlistPageSize), &page); err != nil {
			return nil, false, fmt.Errorf("playlists of %s: %w", userID, err)
		}
		return page.Items, page.Next != "", nil
	})
}

// PlaylistTracks lists the tracks of a playlist in playlist order. Removed,
// local and podcast entries are left out.
func (c *Client) PlaylistTracks(ctx context.Context, cred enricher.Credential, playlistID string) ([]Track, error) {
	items, err := paginate(0, func(offset int) ([]PlaylistItem, bool, error) {
		var page PlaylistItemPage
		if err := c.getWithQuery(ctx, cred, "/playlists/{id}/tracks", playlistID, pageQuery(offset, itemPageSize), &page); err != nil {
			return nil, false, fmt.Errorf("tracks of playlist %s: %w", playlistID, err)
		}
		return page.Items, page.Next != "", nil
	})
	if err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(items))
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" || item.Track.Type == "episode" {
			continue
		}
		tracks = append(tracks, *item.Track)
	}
	return tracks, nil
}

// TopTracks returns up to limit of the current user's most played tracks.
// It needs a user token granted ScopeTopRead.
func (c *Client) TopTracks(ctx context.Context, cred enricher.Credential, timeRange string, limit int) ([]Track, error) {
	return paginate(limit, func(offset int) ([]Track, bool, error) {
		var page TopTrackPage
		if err := c.getWithQuery(ctx, cred, "/me/top/{id}", "tracks", topQuery(offset, timeRange), &page); err != nil {
			return nil, false, fmt.Errorf("top tracks: %w", err)
		}
		return page.Items, page.Next != "", nil
	})
}

// TopArtists returns up to limit of the current user's most played artists.
// It needs a user token granted ScopeTopRead.
func (c *Client) TopArtists(ctx context.Context, cred enricher.Credential, timeRange string, limit int) ([]Artist, error) {
	return paginate(limit, func(offset int) ([]Artist, bool, error) {
		var page TopArtistPage
		if err := c.getWithQuery(ctx, cred, "/me/top/{id}", "artists", topQuery(offset, timeRange), &page); err != nil {
			return nil, false, fmt.Errorf("top artists: %w", err)
		}
		return page.Items, page.Next != "", nil
	})
}

// paginate calls fetch with growing offsets until a page reports no next
// page or comes back empty, or until limit items were collected. A limit
// of zero collects everything.
func paginate[T any](limit int, fetch func(offset int) ([]T, bool, error)) ([]T, error) {
	var all []T
	for page := 0; page < maxPages; page++ {
		items, more, err := fetch(len(all))
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if !more || len(items) == 0 {
			break
		}
	}
	return all, nil
}

func pageQuery(offset, size int) map[string]string {
	return map[string]string{
		"offset": strconv.Itoa(offset),
		"limit":  strconv.Itoa(size),
	}
}

func topQuery(offset int, timeRange string) map[string]string {
	q := pageQuery(offset, topPageSize)
	if timeRange != "" {
		q["time_range"] = timeRange
	}
	return q
}
