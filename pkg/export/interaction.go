// pkg/export/interaction.go - UI interaction events from the technical log

package export

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/spf13/afero"
)

// InteractionFile is the technical log file holding UI interactions
const InteractionFile = "KmInteraction.json"

// playbackIntents are the action intents that start or queue playback
var playbackIntents = map[string]bool{
	"play":         true,
	"go-to-radio":  true,
	"add-to-queue": true,
}

// Interaction is one UI interaction on the web player or desktop client
type Interaction struct {
	Timestamp    time.Time
	Page         string
	ViewURI      string
	TargetURI    string
	ItemLocation string
	ActionType   string
	ActionIntent string
}

type rawInteraction struct {
	TimestampUTC string      `json:"timestamp_utc"`
	ContextTime  json.Number `json:"context_time"`
	Page         string      `json:"message_page"`
	ViewURI      string      `json:"message_view_uri"`
	TargetURI    string      `json:"message_target_uri"`
	ItemID       string      `json:"message_item_id"`
	ActionType   string      `json:"message_action_type"`
	ActionIntent string      `json:"message_action_intent"`
}

func (r rawInteraction) interaction() (Interaction, error) {
	ts, err := r.timestamp()
	if err != nil {
		return Interaction{}, err
	}
	return Interaction{
		Timestamp:    ts,
		Page:         r.Page,
		ViewURI:      r.ViewURI,
		TargetURI:    r.TargetURI,
		ItemLocation: r.ItemID,
		ActionType:   r.ActionType,
		ActionIntent: r.ActionIntent,
	}, nil
}

// timestamp prefers context_time, which is epoch milliseconds in current
// exports and epoch seconds in some older ones
func (r rawInteraction) timestamp() (time.Time, error) {
	if r.ContextTime != "" {
		n, err := r.ContextTime.Int64()
		if err != nil {
			f, ferr := r.ContextTime.Float64()
			if ferr != nil {
				return time.Time{}, fmt.Errorf("invalid context_time %q: %w", r.ContextTime, err)
			}
			n = int64(f)
		}
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if r.TimestampUTC == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, r.TimestampUTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp_utc %q: %w", r.TimestampUTC, err)
	}
	return ts.UTC(), nil
}

// InvolvesPlaylist reports whether any part of the interaction points at a playlist
func (i Interaction) InvolvesPlaylist() bool {
	return i.Page == "playlist" ||
		strings.Contains(i.ViewURI, "playlist") ||
		strings.Contains(i.TargetURI, "playlist") ||
		strings.Contains(i.ItemLocation, "playlist")
}

// PlaylistID returns the playlist the interaction acted on, preferring the
// target over the view it happened in
func (i Interaction) PlaylistID() string {
	if id := i.TargetPlaylistID(); id != "" {
		return id
	}
	return i.ViewPlaylistID()
}

// TargetPlaylistID is the playlist the interaction targeted, if any
func (i Interaction) TargetPlaylistID() string {
	return playlistSegment(i.TargetURI)
}

// ViewPlaylistID is the playlist view the interaction happened in, if any
func (i Interaction) ViewPlaylistID() string {
	return playlistSegment(i.ViewURI)
}

func playlistSegment(uri string) string {
	if !strings.Contains(uri, "playlist") {
		return ""
	}
	return lastSegment(uri)
}

// lastSegment extracts the ID from spotify:playlist:ID, spotify:user:x:playlist:ID
// and https://open.spotify.com/playlist/ID?si=... forms
func lastSegment(uri string) string {
	if q := strings.IndexAny(uri, "?#"); q >= 0 {
		uri = uri[:q]
	}
	uri = strings.TrimRight(uri, "/:")
	if idx := strings.LastIndexAny(uri, "/:"); idx >= 0 {
		uri = uri[idx+1:]
	}
	if uri == "playlist" {
		return ""
	}
	return uri
}

// InteractionHeader lists the CSV columns of Interaction.Row
var InteractionHeader = []string{
	"timestamp", "page", "view_uri", "target_uri", "item_location",
	"action_type", "action_intent", "playlist_id",
}

// Row renders the interaction in InteractionHeader order
func (i Interaction) Row() []string {
	ts := ""
	if !i.Timestamp.IsZero() {
		ts = i.Timestamp.Format(time.RFC3339)
	}
	return []string{
		ts,
		i.Page,
		i.ViewURI,
		i.TargetURI,
		i.ItemLocation,
		i.ActionType,
		i.ActionIntent,
		i.PlaylistID(),
	}
}

// ReadInteractions loads KmInteraction.json from dir, ordered by time
func ReadInteractions(fs afero.Fs, dir string) ([]Interaction, error) {
	path := filepath.Join(dir, InteractionFile)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var raw []rawInteraction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	out := make([]Interaction, 0, len(raw))
	for n, r := range raw {
		i, err := r.interaction()
		if err != nil {
			return nil, fmt.Errorf("%s entry %d: %w", path, n, err)
		}
		out = append(out, i)
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Timestamp.Before(out[b].Timestamp)
	})
	return out, nil
}

// PlaylistPlays keeps interactions that started or queued playback from a playlist
func PlaylistPlays(in []Interaction) []Interaction {
	out := make([]Interaction, 0, len(in))
	for _, i := range in {
		if i.InvolvesPlaylist() && playbackIntents[i.ActionIntent] {
			out = append(out, i)
		}
	}
	return out
}

// PlaylistKey identifies an interaction by the playlist it acted on
func PlaylistKey(i Interaction) (enricher.Identifier, bool) {
	return playlistIdentifier(i.PlaylistID())
}

// TargetPlaylistKey identifies an interaction by its target playlist only
func TargetPlaylistKey(i Interaction) (enricher.Identifier, bool) {
	return playlistIdentifier(i.TargetPlaylistID())
}

// ViewPlaylistKey identifies an interaction by the playlist view it happened in.
// Joined after TargetPlaylistKey it supplies details when the target lookup misses.
func ViewPlaylistKey(i Interaction) (enricher.Identifier, bool) {
	return playlistIdentifier(i.ViewPlaylistID())
}

func playlistIdentifier(id string) (enricher.Identifier, bool) {
	return enricher.Identifier{Kind: enricher.KindPlaylist, Value: id}, id != ""
}
