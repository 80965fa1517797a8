package enricher

import (
	"fmt"
	"strings"
)

// Kind names the lookup namespace an identifier belongs to.
type Kind string

const (
	KindTrack    Kind = "track"
	KindArtist   Kind = "artist"
	KindPlaylist Kind = "playlist"
	KindEpisode  Kind = "episode"
	KindIP       Kind = "ip"
)

// Kinds lists every supported kind in a stable order.
var Kinds = []Kind{KindTrack, KindArtist, KindPlaylist, KindEpisode, KindIP}

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown identifier kind %q", s)
}

// Key is the identity of an Identifier.
type Key struct {
	Kind  Kind
	Value string
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.Value
}

// Identifier names one remote entity to look up.
type Identifier struct {
	Kind  Kind
	Value string
	// Hint is an auxiliary lookup reference, e.g. a track ID used to
	// resolve an artist known only by name. It is not part of identity.
	Hint string
}

// Key returns the identity of id.
func (id Identifier) Key() Key {
	return Key{Kind: id.Kind, Value: id.Value}
}

func (id Identifier) String() string {
	return id.Key().String()
}

// KeyFunc derives the identifier referenced by a record. ok is false when
// the record carries none.
type KeyFunc[R any] func(record R) (id Identifier, ok bool)

// Extract returns the distinct identifiers referenced by records, in order
// of first occurrence. Records without an identifier, or with an empty
// value, are skipped.
func Extract[R any](records []R, key KeyFunc[R]) []Identifier {
	return ExtractAll(records, key)
}

// ExtractAll is Extract over several key functions per record, e.g. a
// preferred identifier and its fallback. Identifiers are ordered by record,
// then by key function.
func ExtractAll[R any](records []R, keys ...KeyFunc[R]) []Identifier {
	seen := make(map[Key]struct{})
	var ids []Identifier
	for _, r := range records {
		for _, key := range keys {
			id, ok := key(r)
			if !ok || strings.TrimSpace(id.Value) == "" {
				continue
			}
			if _, dup := seen[id.Key()]; dup {
				continue
			}
			seen[id.Key()] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
