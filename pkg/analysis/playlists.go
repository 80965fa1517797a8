// pkg/analysis/playlists.go - playlist mood and playlist usage over time

package analysis

import (
	"sort"
	"strconv"
	"time"
)

// PlaylistMood holds the mean z-score of every mood feature over a
// playlist's tracks, measured against the listening history
type PlaylistMood struct {
	PlaylistID string
	Name       string
	Tracks     int
	ZScores    []float64
}

// PlaylistMoodHeader lists the CSV columns of PlaylistMood rows
func PlaylistMoodHeader() []string {
	return zscoreHeader("playlist_id", "playlist_name", "tracks")
}

// PlaylistMoods standardizes the tracks of every playlist in a
// playlist_tracks.csv against the feature means and spreads of a
// features.csv. Every history row with features counts towards the
// baseline regardless of playtime. Playlists sort by name.
func PlaylistMoods(historyHeader []string, historyRows [][]string, playlistHeader []string, playlistRows [][]string) ([]PlaylistMood, error) {
	historyCols, err := featureColumns(historyHeader)
	if err != nil {
		return nil, err
	}
	var history [][]float64
	for _, row := range historyRows {
		if len(row) != len(historyHeader) {
			continue
		}
		history = append(history, parseFeatures(row, historyCols))
	}
	means, stds := baseline(history)

	idCol, err := column(playlistHeader, "playlist_id")
	if err != nil {
		return nil, err
	}
	nameCol, err := column(playlistHeader, "playlist_name")
	if err != nil {
		return nil, err
	}
	playlistCols, err := featureColumns(playlistHeader)
	if err != nil {
		return nil, err
	}

	type playlist struct {
		name    string
		samples [][]float64
	}
	playlists := make(map[string]*playlist)
	for _, row := range playlistRows {
		if len(row) != len(playlistHeader) || row[idCol] == "" {
			continue
		}
		p, ok := playlists[row[idCol]]
		if !ok {
			p = &playlist{name: row[nameCol]}
			playlists[row[idCol]] = p
		}
		p.samples = append(p.samples, parseFeatures(row, playlistCols))
	}

	out := make([]PlaylistMood, 0, len(playlists))
	for id, p := range playlists {
		out = append(out, PlaylistMood{
			PlaylistID: id,
			Name:       p.name,
			Tracks:     len(p.samples),
			ZScores:    meanZScores(p.samples, means, stds),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].PlaylistID < out[j].PlaylistID
	})
	return out, nil
}

// PlaylistMoodRows renders moods in PlaylistMoodHeader order
func PlaylistMoodRows(moods []PlaylistMood) [][]string {
	rows := make([][]string, len(moods))
	for i, m := range moods {
		lead := []string{m.PlaylistID, m.Name, strconv.Itoa(m.Tracks)}
		rows[i] = append(lead, formatZScores(m.ZScores)...)
	}
	return rows
}

// PlaylistUsage counts playback interactions started from a playlist per
// weekday (Monday first) and per hour of day, in UTC
type PlaylistUsage struct {
	Playlist string
	Plays    int
	Weekdays [7]int
	Hours    [24]int
}

var weekdayColumns = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// PlaylistUsageHeader lists the CSV columns of PlaylistUsage rows
func PlaylistUsageHeader() []string {
	header := append([]string{"playlist", "plays"}, weekdayColumns...)
	for h := 0; h < 24; h++ {
		header = append(header, "h"+twoDigits(h))
	}
	return header
}

// PlaylistUsages groups a playlists.csv by playlist name, or by playlist
// id where the lookup missed. Rows without a usable timestamp or playlist
// are left out. Most played playlists come first.
func PlaylistUsages(header []string, rows [][]string) ([]PlaylistUsage, error) {
	tsCol, err := column(header, "timestamp")
	if err != nil {
		return nil, err
	}
	idCol, err := column(header, "playlist_id")
	if err != nil {
		return nil, err
	}
	nameCol, err := column(header, "playlist_name")
	if err != nil {
		return nil, err
	}

	usage := make(map[string]*PlaylistUsage)
	for _, row := range rows {
		if len(row) != len(header) {
			continue
		}
		key := row[nameCol]
		if key == "" {
			key = row[idCol]
		}
		if key == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, row[tsCol])
		if err != nil {
			continue
		}
		ts = ts.UTC()

		u, ok := usage[key]
		if !ok {
			u = &PlaylistUsage{Playlist: key}
			usage[key] = u
		}
		u.Plays++
		u.Weekdays[(int(ts.Weekday())+6)%7]++
		u.Hours[ts.Hour()]++
	}

	out := make([]PlaylistUsage, 0, len(usage))
	for _, u := range usage {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plays != out[j].Plays {
			return out[i].Plays > out[j].Plays
		}
		return out[i].Playlist < out[j].Playlist
	})
	return out, nil
}

// PlaylistUsageRows renders usage in PlaylistUsageHeader order
func PlaylistUsageRows(usage []PlaylistUsage) [][]string {
	rows := make([][]string, len(usage))
	for i, u := range usage {
		row := []string{u.Playlist, strconv.Itoa(u.Plays)}
		for _, n := range u.Weekdays {
			row = append(row, strconv.Itoa(n))
		}
		for _, n := range u.Hours {
			row = append(row, strconv.Itoa(n))
		}
		rows[i] = row
	}
	return rows
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
