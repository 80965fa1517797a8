package enricher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Outcome is the result of one lookup: either a payload, or a miss with
// the cause kept for diagnostics.
type Outcome struct {
	Payload Payload
	Reason  error
}

// Found wraps a payload. A nil payload is a miss.
func Found(p Payload) Outcome {
	if p == nil {
		return NotFound(ErrNotFound)
	}
	return Outcome{Payload: p}
}

// NotFound records a miss. A nil reason defaults to ErrNotFound.
func NotFound(reason error) Outcome {
	if reason == nil {
		reason = ErrNotFound
	}
	return Outcome{Reason: reason}
}

// Found reports whether the lookup produced a payload.
func (o Outcome) Found() bool {
	return o.Payload != nil
}

// RateLimited reports whether a miss was caused by the provider throttling
func (o Outcome) RateLimited() bool {
	return !o.Found() && errors.Is(o.Reason, ErrRateLimit)
}

// Payload is the closed set of per-kind enrichment shapes.
type Payload interface {
	Kind() Kind
	// Values renders the payload in the column order of Columns(Kind()).
	Values() []string
	payload()
}

// ListSeparator joins multi-valued fields inside a single CSV cell.
const ListSeparator = ";"

var columns = map[Kind][]string{
	KindTrack: {
		"acousticness", "danceability", "energy", "instrumentalness", "key",
		"liveness", "loudness", "mode", "speechiness", "tempo", "valence",
		"duration_ms", "time_signature",
	},
	KindArtist:   {"artist_id", "genres", "genre_source"},
	KindPlaylist: {"playlist_name", "playlist_description", "playlist_owner", "collaborative", "public", "tracks_total"},
	KindIP:       {"lat", "lon", "city", "region", "country"},
	KindEpisode: {
		"description", "duration_ms", "language", "languages", "release_date",
		"show_description", "show_publisher",
	},
}

// Columns returns the enrichment columns contributed by kind.
func Columns(kind Kind) []string {
	return append([]string(nil), columns[kind]...)
}

// TrackFeatures are the audio features of one track.
type TrackFeatures struct {
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

func (TrackFeatures) Kind() Kind { return KindTrack }
func (TrackFeatures) payload()   {}

func (f TrackFeatures) Values() []string {
	return []string{
		formatFloat(f.Acousticness), formatFloat(f.Danceability), formatFloat(f.Energy),
		formatFloat(f.Instrumentalness), strconv.Itoa(f.Key), formatFloat(f.Liveness),
		formatFloat(f.Loudness), strconv.Itoa(f.Mode), formatFloat(f.Speechiness),
		formatFloat(f.Tempo), formatFloat(f.Valence), strconv.Itoa(f.DurationMs),
		strconv.Itoa(f.TimeSignature),
	}
}

// ArtistGenres are the genres attributed to one artist.
type ArtistGenres struct {
	ArtistID string   `json:"artist_id"`
	Genres   []string `json:"genres"`
	// Source names the provider that answered, e.g. "spotify".
	Source string `json:"source"`
}

func (ArtistGenres) Kind() Kind { return KindArtist }
func (ArtistGenres) payload()   {}

func (a ArtistGenres) Values() []string {
	return []string{a.ArtistID, strings.Join(a.Genres, ListSeparator), a.Source}
}

// PlaylistInfo describes one playlist.
type PlaylistInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Owner         string `json:"owner"`
	Collaborative bool   `json:"collaborative"`
	Public        bool   `json:"public"`
	TracksTotal   int    `json:"tracks_total"`
}

func (PlaylistInfo) Kind() Kind { return KindPlaylist }
func (PlaylistInfo) payload()   {}

func (p PlaylistInfo) Values() []string {
	return []string{
		p.Name, p.Description, p.Owner, strconv.FormatBool(p.Collaborative),
		strconv.FormatBool(p.Public), strconv.Itoa(p.TracksTotal),
	}
}

// GeoInfo is the approximate location of an IP address.
type GeoInfo struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Region  string  `json:"region"`
	Country string  `json:"country"`
}

func (GeoInfo) Kind() Kind { return KindIP }
func (GeoInfo) payload()   {}

func (g GeoInfo) Values() []string {
	return []string{formatFloat(g.Lat), formatFloat(g.Lon), g.City, g.Region, g.Country}
}

// EpisodeInfo describes one podcast episode and its show.
type EpisodeInfo struct {
	Description     string   `json:"description"`
	DurationMs      int      `json:"duration_ms"`
	Language        string   `json:"language"`
	Languages       []string `json:"languages"`
	ReleaseDate     string   `json:"release_date"`
	ShowDescription string   `json:"show_description"`
	ShowPublisher   string   `json:"show_publisher"`
}

func (EpisodeInfo) Kind() Kind { return KindEpisode }
func (EpisodeInfo) payload()   {}

func (e EpisodeInfo) Values() []string {
	return []string{
		e.Description, strconv.Itoa(e.DurationMs), e.Language,
		strings.Join(e.Languages, ListSeparator), e.ReleaseDate,
		e.ShowDescription, e.ShowPublisher,
	}
}

// DecodePayload decodes the JSON form of a payload of the given kind.
func DecodePayload(kind Kind, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindTrack:
		var v TrackFeatures
		err = json.Unmarshal(data, &v)
		p = v
	case KindArtist:
		var v ArtistGenres
		err = json.Unmarshal(data, &v)
		p = v
	case KindPlaylist:
		var v PlaylistInfo
		err = json.Unmarshal(data, &v)
		p = v
	case KindIP:
		var v GeoInfo
		err = json.Unmarshal(data, &v)
		p = v
	case KindEpisode:
		var v EpisodeInfo
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("decode payload: unknown kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
