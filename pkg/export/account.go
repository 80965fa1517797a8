// pkg/export/account.go - account identity and the account's own playlists

package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/spf13/afero"
)

var (
	ErrNoUsername = errors.New("no username in export")
)

// Account files carrying the username, most specific first
var accountFiles = []string{"Identity.json", "Userdata.json"}

// ReadUsername returns the Spotify username of the account that requested
// the export in dir
func ReadUsername(fs afero.Fs, dir string) (string, error) {
	for _, name := range accountFiles {
		path := filepath.Join(dir, name)
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}

		var account struct {
			Username string `json:"username"`
		}
		if err := json.Unmarshal(data, &account); err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if account.Username != "" {
			return account.Username, nil
		}
	}
	return "", fmt.Errorf("%s: %w", dir, ErrNoUsername)
}

// PlaylistTrack is one track of one of the account's playlists
type PlaylistTrack struct {
	PlaylistID    string
	PlaylistName  string
	PlaylistOwner string
	Position      int
	TrackID       string
	TrackName     string
	ArtistName    string
}

// PlaylistTrackHeader lists the CSV columns of PlaylistTrack.Row
var PlaylistTrackHeader = []string{
	"playlist_id", "playlist_name", "playlist_owner", "position",
	"track_id", "track_name", "artist_name",
}

// Row renders the entry in PlaylistTrackHeader order
func (p PlaylistTrack) Row() []string {
	return []string{
		p.PlaylistID,
		p.PlaylistName,
		p.PlaylistOwner,
		strconv.Itoa(p.Position),
		p.TrackID,
		p.TrackName,
		p.ArtistName,
	}
}

// PlaylistTrackKey identifies a playlist entry by its track
func PlaylistTrackKey(p PlaylistTrack) (enricher.Identifier, bool) {
	return enricher.Identifier{Kind: enricher.KindTrack, Value: p.TrackID}, p.TrackID != ""
}
