// pkg/export/stream.go - extended streaming history records

package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/spf13/afero"
)

var (
	ErrNoHistory = errors.New("no streaming history files found")
)

// History file patterns, legacy export first
var historyPatterns = []string{
	"endsong_*.json",
	"Streaming_History_Audio_*.json",
}

const (
	trackURIPrefix   = "spotify:track:"
	episodeURIPrefix = "spotify:episode:"
)

// Stream is one playback entry of the extended streaming history
type Stream struct {
	Timestamp       time.Time
	Platform        string
	MsPlayed        int64
	ConnCountry     string
	IPAddr          string
	TrackName       string
	ArtistName      string
	AlbumName       string
	TrackURI        string
	EpisodeName     string
	EpisodeShowName string
	EpisodeURI      string
	ReasonStart     string
	ReasonEnd       string
	Shuffle         bool
	Skipped         bool
	Offline         bool
	PrivateSession  bool
}

// rawStream mirrors the export's field names. Older exports call the
// address ip_addr_decrypted, newer ones ip_addr.
type rawStream struct {
	TS              string `json:"ts"`
	Platform        string `json:"platform"`
	MsPlayed        int64  `json:"ms_played"`
	ConnCountry     string `json:"conn_country"`
	IPAddrDecrypted string `json:"ip_addr_decrypted"`
	IPAddr          string `json:"ip_addr"`
	TrackName       string `json:"master_metadata_track_name"`
	ArtistName      string `json:"master_metadata_album_artist_name"`
	AlbumName       string `json:"master_metadata_album_album_name"`
	TrackURI        string `json:"spotify_track_uri"`
	EpisodeName     string `json:"episode_name"`
	EpisodeShowName string `json:"episode_show_name"`
	EpisodeURI      string `json:"spotify_episode_uri"`
	ReasonStart     string `json:"reason_start"`
	ReasonEnd       string `json:"reason_end"`
	Shuffle         bool   `json:"shuffle"`
	Skipped         bool   `json:"skipped"`
	Offline         bool   `json:"offline"`
	IncognitoMode   bool   `json:"incognito_mode"`
}

func (r rawStream) stream() (Stream, error) {
	ts, err := time.Parse(time.RFC3339, r.TS)
	if err != nil {
		return Stream{}, fmt.Errorf("invalid timestamp %q: %w", r.TS, err)
	}
	ip := r.IPAddr
	if ip == "" {
		ip = r.IPAddrDecrypted
	}
	return Stream{
		Timestamp:       ts.UTC(),
		Platform:        r.Platform,
		MsPlayed:        r.MsPlayed,
		ConnCountry:     r.ConnCountry,
		IPAddr:          ip,
		TrackName:       r.TrackName,
		ArtistName:      r.ArtistName,
		AlbumName:       r.AlbumName,
		TrackURI:        r.TrackURI,
		EpisodeName:     r.EpisodeName,
		EpisodeShowName: r.EpisodeShowName,
		EpisodeURI:      r.EpisodeURI,
		ReasonStart:     r.ReasonStart,
		ReasonEnd:       r.ReasonEnd,
		Shuffle:         r.Shuffle,
		Skipped:         r.Skipped,
		Offline:         r.Offline,
		PrivateSession:  r.IncognitoMode,
	}, nil
}

// TrackID returns the bare track ID, empty for non-track entries
func (s Stream) TrackID() string {
	if !strings.HasPrefix(s.TrackURI, trackURIPrefix) {
		return ""
	}
	return strings.TrimPrefix(s.TrackURI, trackURIPrefix)
}

// EpisodeID returns the bare episode ID, empty for non-episode entries
func (s Stream) EpisodeID() string {
	if !strings.HasPrefix(s.EpisodeURI, episodeURIPrefix) {
		return ""
	}
	return strings.TrimPrefix(s.EpisodeURI, episodeURIPrefix)
}

// IsTrack reports whether the entry is a music track
func (s Stream) IsTrack() bool {
	return s.TrackID() != ""
}

// IsEpisode reports whether the entry is a podcast episode
func (s Stream) IsEpisode() bool {
	return s.EpisodeID() != ""
}

// StreamHeader lists the CSV columns of Stream.Row
var StreamHeader = []string{
	"timestamp", "platform", "ms_played", "conn_country", "ip_addr",
	"track_name", "artist_name", "album_name", "track_uri", "track_id",
	"episode_name", "episode_show_name", "episode_uri",
	"reason_start", "reason_end", "shuffle", "skipped", "offline", "private_session",
}

// Row renders the entry in StreamHeader order
func (s Stream) Row() []string {
	return []string{
		s.Timestamp.Format(time.RFC3339),
		s.Platform,
		strconv.FormatInt(s.MsPlayed, 10),
		s.ConnCountry,
		s.IPAddr,
		s.TrackName,
		s.ArtistName,
		s.AlbumName,
		s.TrackURI,
		s.TrackID(),
		s.EpisodeName,
		s.EpisodeShowName,
		s.EpisodeURI,
		s.ReasonStart,
		s.ReasonEnd,
		strconv.FormatBool(s.Shuffle),
		strconv.FormatBool(s.Skipped),
		strconv.FormatBool(s.Offline),
		strconv.FormatBool(s.PrivateSession),
	}
}

// ReadStreams loads every history file in dir, ordered by timestamp
func ReadStreams(fs afero.Fs, dir string) ([]Stream, error) {
	files, err := historyFiles(fs, dir)
	if err != nil {
		return nil, err
	}

	var streams []Stream
	for _, file := range files {
		data, err := afero.ReadFile(fs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		var raw []rawStream
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}

		for i, r := range raw {
			s, err := r.stream()
			if err != nil {
				return nil, fmt.Errorf("%s entry %d: %w", file, i, err)
			}
			streams = append(streams, s)
		}
	}

	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].Timestamp.Before(streams[j].Timestamp)
	})
	return streams, nil
}

// historyFiles finds the history files of the first pattern that matches
func historyFiles(fs afero.Fs, dir string) ([]string, error) {
	for _, pattern := range historyPatterns {
		files, err := afero.Glob(fs, filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			sortNumbered(files)
			return files, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", dir, ErrNoHistory)
}

var trailingNumber = regexp.MustCompile(`_(\d+)\.json$`)

// sortNumbered orders endsong_2.json before endsong_10.json
func sortNumbered(files []string) {
	index := func(name string) int {
		m := trailingNumber.FindStringSubmatch(name)
		if m == nil {
			return -1
		}
		n, _ := strconv.Atoi(m[1])
		return n
	}
	sort.SliceStable(files, func(i, j int) bool {
		a, b := trailingNumber.ReplaceAllString(files[i], ""), trailingNumber.ReplaceAllString(files[j], "")
		if a != b {
			return a < b
		}
		return index(files[i]) < index(files[j])
	})
}

// Tracks keeps only music entries
func Tracks(streams []Stream) []Stream {
	return filter(streams, Stream.IsTrack)
}

// Episodes keeps only podcast entries
func Episodes(streams []Stream) []Stream {
	return filter(streams, Stream.IsEpisode)
}

func filter(streams []Stream, keep func(Stream) bool) []Stream {
	out := make([]Stream, 0, len(streams))
	for _, s := range streams {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// TrackKey identifies a stream by its track ID
func TrackKey(s Stream) (enricher.Identifier, bool) {
	return enricher.Identifier{Kind: enricher.KindTrack, Value: s.TrackID()}, s.IsTrack()
}

// ArtistKey identifies a stream by artist name, hinting the track so the
// artist can be resolved from it
func ArtistKey(s Stream) (enricher.Identifier, bool) {
	hint := ""
	if s.IsTrack() {
		hint = s.TrackID()
	}
	return enricher.Identifier{Kind: enricher.KindArtist, Value: s.ArtistName, Hint: hint}, s.ArtistName != ""
}

// EpisodeKey identifies a stream by its episode ID
func EpisodeKey(s Stream) (enricher.Identifier, bool) {
	return enricher.Identifier{Kind: enricher.KindEpisode, Value: s.EpisodeID()}, s.IsEpisode()
}

// IPKey identifies a stream by the address it was played from
func IPKey(s Stream) (enricher.Identifier, bool) {
	return enricher.Identifier{Kind: enricher.KindIP, Value: s.IPAddr}, s.IPAddr != ""
}
