// pkg/enricher/musicbrainz/types.go

package musicbrainz

// ArtistSearchResult represents the response from MusicBrainz artist search
type ArtistSearchResult struct {
	Created string   `json:"created"`
	Count   int      `json:"count"`
	Offset  int      `json:"offset"`
	Artists []Artist `json:"artists"`
}

// Artist represents a MusicBrainz artist. Search results carry Score and
// Tags; lookups with inc=genres also carry Genres.
type Artist struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	SortName       string   `json:"sort-name"`
	Score          int      `json:"score,omitempty"` // Search relevance score
	Type           string   `json:"type,omitempty"`
	Country        string   `json:"country,omitempty"`
	Disambiguation string   `json:"disambiguation,omitempty"`
	Aliases        []Alias  `json:"aliases,omitempty"`
	Tags           []Tag    `json:"tags,omitempty"`
	Genres         []Genre  `json:"genres,omitempty"`
	LifeSpan       LifeSpan `json:"life-span,omitempty"`
}

// Alias represents an artist alias
type Alias struct {
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
	Type     string `json:"type,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

// Genre represents a MusicBrainz genre with its vote count
type Genre struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Count          int    `json:"count"`
	Disambiguation string `json:"disambiguation,omitempty"`
}

// Tag represents a user-generated tag
type Tag struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// LifeSpan represents the active period of an entity
type LifeSpan struct {
	Begin string `json:"begin,omitempty"`
	End   string `json:"end,omitempty"`
	Ended bool   `json:"ended,omitempty"`
}

// Error represents a MusicBrainz API error response
type Error struct {
	Error string `json:"error"`
	Help  string `json:"help,omitempty"`
}
