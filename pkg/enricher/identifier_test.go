package enricher

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type play struct {
	track string
}

func playTrack(p play) (Identifier, bool) {
	if p.track == "" {
		return Identifier{}, false
	}
	return Identifier{Kind: KindTrack, Value: p.track}, true
}

func TestExtract(t *testing.T) {
	records := []play{{"a"}, {"b"}, {""}, {"a"}, {"c"}, {"b"}, {"   "}}

	ids := Extract(records, playTrack)

	require.Len(t, ids, 3)
	assert.Equal(t, "a", ids[0].Value)
	assert.Equal(t, "b", ids[1].Value)
	assert.Equal(t, "c", ids[2].Value)
}

func TestExtractHintIsNotIdentity(t *testing.T) {
	type stream struct{ artist, track string }
	records := []stream{{"Burial", "t1"}, {"Burial", "t2"}, {"Goldie", "t3"}}

	ids := Extract(records, func(s stream) (Identifier, bool) {
		return Identifier{Kind: KindArtist, Value: s.artist, Hint: s.track}, true
	})

	require.Len(t, ids, 2)
	assert.Equal(t, "t1", ids[0].Hint, "first occurrence keeps its hint")
}

func TestExtractKindsAreSeparateNamespaces(t *testing.T) {
	records := []Identifier{
		{Kind: KindTrack, Value: "x"},
		{Kind: KindArtist, Value: "x"},
		{Kind: KindTrack, Value: "x"},
	}

	ids := Extract(records, func(id Identifier) (Identifier, bool) { return id, true })

	assert.Len(t, ids, 2)
}

func TestExtractProperties(t *testing.T) {
	p := gopter.NewProperties(nil)

	p.Property("distinct and never larger than input", prop.ForAll(func(values []string) bool {
		records := make([]play, len(values))
		for i, v := range values {
			records[i] = play{v}
		}
		ids := Extract(records, playTrack)
		seen := map[Key]bool{}
		for _, id := range ids {
			if seen[id.Key()] {
				return false
			}
			seen[id.Key()] = true
		}
		return len(ids) <= len(records)
	}, gen.SliceOf(smallTrackGen())))

	p.Property("pure", prop.ForAll(func(values []string) bool {
		records := make([]play, len(values))
		for i, v := range values {
			records[i] = play{v}
		}
		a, b := Extract(records, playTrack), Extract(records, playTrack)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}, gen.SliceOf(gen.AlphaString())))

	p.TestingRun(t)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Track ")
	require.NoError(t, err)
	assert.Equal(t, KindTrack, k)

	_, err = ParseKind("album")
	assert.Error(t, err)
}

// smallTrackGen draws from a tiny alphabet so duplicates and blanks are common.
func smallTrackGen() gopter.Gen {
	values := []string{"", "a", "b", "c", "d", "e"}
	return gen.IntRange(0, len(values)-1).Map(func(i int) string {
		return values[i]
	})
}
