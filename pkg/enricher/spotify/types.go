// pkg/enricher/spotify/types.go

package spotify

// AudioFeatures is the response of GET /audio-features/{id}
type AudioFeatures struct {
	ID               string  `json:"id"`
	Acousticness     float64 `json:"acousticness"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Instrumentalness float64 `json:"instrumentalness"`
	Key              int     `json:"key"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	DurationMs       int     `json:"duration_ms"`
	TimeSignature    int     `json:"time_signature"`
}

// Track is the subset of GET /tracks/{id} historian reads
type Track struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Popularity int            `json:"popularity"`
	Artists    []SimpleArtist `json:"artists"`
}

// SimpleArtist is an artist reference embedded in other objects
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Artist is the response of GET /artists/{id}
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Genres     []string  `json:"genres"`
	Popularity int       `json:"popularity"`
	Followers  Followers `json:"followers"`
}

// Followers wraps a follower count
type Followers struct {
	Total int `json:"total"`
}

// Playlist is the response of GET /playlists/{id}
type Playlist struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Collaborative bool        `json:"collaborative"`
	Public        *bool       `json:"public"`
	Owner         User        `json:"owner"`
	Tracks        TracksPaged `json:"tracks"`
}

// User is a playlist owner
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// TracksPaged carries the total of a paged track listing
type TracksPaged struct {
	Href  string `json:"href"`
	Total int    `json:"total"`
}

// Episode is the response of GET /episodes/{id}
type Episode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DurationMs  int      `json:"duration_ms"`
	Language    string   `json:"language"`
	Languages   []string `json:"languages"`
	ReleaseDate string   `json:"release_date"`
	Show        Show     `json:"show"`
}

// Show is the podcast an episode belongs to
type Show struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Publisher   string `json:"publisher"`
}

// PlaylistPage is one page of GET /users/{id}/playlists
type PlaylistPage struct {
	Items []Playlist `json:"items"`
	Next  string     `json:"next"`
	Total int        `json:"total"`
}

// PlaylistItem is one entry of a playlist; Track is nil for removed or local items
type PlaylistItem struct {
	Track *Track `json:"track"`
}

// PlaylistItemPage is one page of GET /playlists/{id}/tracks
type PlaylistItemPage struct {
	Items []PlaylistItem `json:"items"`
	Next  string         `json:"next"`
	Total int            `json:"total"`
}

// TopTrackPage is one page of GET /me/top/tracks
type TopTrackPage struct {
	Items []Track `json:"items"`
	Next  string  `json:"next"`
}

// TopArtistPage is one page of GET /me/top/artists
type TopArtistPage struct {
	Items []Artist `json:"items"`
	Next  string   `json:"next"`
}

// ErrorResponse is the body Spotify returns with 4xx/5xx statuses
type ErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
