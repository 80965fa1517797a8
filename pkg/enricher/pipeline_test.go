package enricher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTokens struct {
	calls  int
	scopes []string
	failAt int // 1-based call number that fails, 0 never
}

func (c *countingTokens) Credential(ctx context.Context, scope string) (Credential, error) {
	c.calls++
	c.scopes = append(c.scopes, scope)
	if c.failAt == c.calls {
		return Credential{}, fmt.Errorf("token endpoint said no: %w", ErrAuthorization)
	}
	return Credential{Token: fmt.Sprintf("token-%d", c.calls), Scope: scope}, nil
}

type recordingFetcher struct {
	calls  []Identifier
	tokens []string
	miss   map[string]bool
}

func (f *recordingFetcher) Fetch(ctx context.Context, id Identifier, cred Credential) Outcome {
	f.calls = append(f.calls, id)
	f.tokens = append(f.tokens, cred.Token)
	if f.miss[id.Value] {
		return NotFound(fmt.Errorf("%s: %w", id.Value, ErrAPIError))
	}
	return Found(TrackFeatures{Tempo: float64(len(id.Value)), Key: int(id.Value[0])})
}

func trackIDs(n int) []Identifier {
	ids := make([]Identifier, n)
	for i := range ids {
		ids[i] = Identifier{Kind: KindTrack, Value: fmt.Sprintf("track%02d", i)}
	}
	return ids
}

func TestPipelineRefreshesEveryThreshold(t *testing.T) {
	tokens := &countingTokens{}
	fetcher := &recordingFetcher{}
	p := &Pipeline{Fetcher: fetcher, Tokens: tokens, Scope: "user-read-recently-played", RefreshEvery: 5}

	table, stats, err := p.Run(context.Background(), trackIDs(12))
	require.NoError(t, err)

	assert.Equal(t, 12, table.Len())
	assert.Equal(t, 3, tokens.calls, "initial credential plus one per 5 successes")
	assert.Equal(t, 2, stats.Refreshes)
	for _, s := range tokens.scopes {
		assert.Equal(t, "user-read-recently-played", s)
	}
	// lookups 1-5 use the first token, 6-10 the second, 11-12 the third
	assert.Equal(t, "token-1", fetcher.tokens[4])
	assert.Equal(t, "token-2", fetcher.tokens[5])
	assert.Equal(t, "token-3", fetcher.tokens[11])
}

func TestPipelineRefreshCountsOnlySuccesses(t *testing.T) {
	tokens := &countingTokens{}
	ids := trackIDs(6)
	fetcher := &recordingFetcher{miss: map[string]bool{
		ids[1].Value: true, ids[3].Value: true, ids[5].Value: true,
	}}
	p := &Pipeline{Fetcher: fetcher, Tokens: tokens, RefreshEvery: 2}

	table, stats, err := p.Run(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 6, table.Len())
	assert.Equal(t, 3, table.FoundCount())
	assert.Equal(t, 3, stats.Found)
	assert.Equal(t, 3, stats.Missing)
	assert.Equal(t, 2, tokens.calls, "one refresh at the second success, none while missing")
}

func TestPipelineProgressSignals(t *testing.T) {
	var signals []int
	p := &Pipeline{
		Fetcher:       &recordingFetcher{},
		Tokens:        &countingTokens{},
		ProgressEvery: 3,
		Progress: func(ctx context.Context, acquired int) {
			signals = append(signals, acquired)
		},
	}

	_, _, err := p.Run(context.Background(), trackIDs(10))
	require.NoError(t, err)

	assert.Equal(t, []int{3, 6, 9}, signals)
}

func TestPipelineProgressNotRepeatedOnMisses(t *testing.T) {
	ids := trackIDs(5)
	var signals []int
	p := &Pipeline{
		Fetcher:       &recordingFetcher{miss: map[string]bool{ids[2].Value: true, ids[3].Value: true}},
		Tokens:        &countingTokens{},
		ProgressEvery: 2,
		Progress: func(ctx context.Context, acquired int) {
			signals = append(signals, acquired)
		},
	}

	_, _, err := p.Run(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, []int{2}, signals)
}

func TestPipelineEmptyInput(t *testing.T) {
	tokens := &countingTokens{}
	fetcher := &recordingFetcher{}
	p := &Pipeline{Fetcher: fetcher, Tokens: tokens}

	table, stats, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 0, stats.Attempted)
	assert.Zero(t, tokens.calls)
	assert.Empty(t, fetcher.calls)
}

func TestPipelineAuthorizationDenied(t *testing.T) {
	tokens := &countingTokens{failAt: 1}
	fetcher := &recordingFetcher{}
	p := &Pipeline{Fetcher: fetcher, Tokens: tokens}

	table, _, err := p.Run(context.Background(), trackIDs(3))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthorization))
	assert.Nil(t, table)
	assert.Empty(t, fetcher.calls, "no lookup may happen without a credential")
}

func TestPipelineRefreshFailureAbortsRun(t *testing.T) {
	tokens := &countingTokens{failAt: 2}
	p := &Pipeline{Fetcher: &recordingFetcher{}, Tokens: tokens, RefreshEvery: 2}

	table, stats, err := p.Run(context.Background(), trackIDs(5))

	require.ErrorIs(t, err, ErrAuthorization)
	assert.Nil(t, table)
	assert.Equal(t, 2, stats.Attempted)
}

func TestPipelineDuplicatesLastWins(t *testing.T) {
	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, id Identifier, cred Credential) Outcome {
		calls++
		return Found(TrackFeatures{Tempo: float64(calls)})
	})
	p := &Pipeline{Fetcher: fetcher, Tokens: &countingTokens{}}
	ids := []Identifier{
		{Kind: KindTrack, Value: "a"},
		{Kind: KindTrack, Value: "b"},
		{Kind: KindTrack, Value: "a"},
	}

	table, _, err := p.Run(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	out, ok := table.Get(Key{Kind: KindTrack, Value: "a"})
	require.True(t, ok)
	assert.Equal(t, 3.0, out.Payload.(TrackFeatures).Tempo)
	assert.Equal(t, 2, table.FoundCount())
}

func TestPipelineReusesPrior(t *testing.T) {
	ids := trackIDs(4)
	prior := NewLookupTable()
	prior.Put(ids[0], Found(TrackFeatures{Tempo: 120}))
	prior.Put(ids[1], NotFound(nil))

	tokens := &countingTokens{}
	fetcher := &recordingFetcher{}
	p := &Pipeline{Fetcher: fetcher, Tokens: tokens, Prior: prior}

	table, stats, err := p.Run(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, 1, stats.Reused)
	require.Len(t, fetcher.calls, 3, "prior misses are retried")
	assert.Equal(t, ids[1], fetcher.calls[0])
	assert.Equal(t, ids, identifiersOf(table.Keys()), "table keeps extraction order")

	out, _ := table.Get(ids[0].Key())
	assert.Equal(t, 120.0, out.Payload.(TrackFeatures).Tempo)
}

func TestPipelinePriorCoversEverything(t *testing.T) {
	ids := trackIDs(2)
	prior := NewLookupTable()
	for _, id := range ids {
		prior.Put(id, Found(TrackFeatures{}))
	}
	tokens := &countingTokens{}
	p := &Pipeline{Fetcher: &recordingFetcher{}, Tokens: tokens, Prior: prior}

	table, _, err := p.Run(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Zero(t, tokens.calls)
}

func TestPipelineRefreshAfterElapsed(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := trackIDs(6)
	miss := map[string]bool{}
	for _, id := range ids {
		miss[id.Value] = true
	}
	inner := &recordingFetcher{miss: miss}
	fetcher := FetcherFunc(func(ctx context.Context, id Identifier, cred Credential) Outcome {
		now = now.Add(4 * time.Minute)
		return inner.Fetch(ctx, id, cred)
	})
	tokens := &countingTokens{}
	p := &Pipeline{
		Fetcher:      fetcher,
		Tokens:       tokens,
		RefreshAfter: 10 * time.Minute,
		Now:          func() time.Time { return now },
	}

	_, stats, err := p.Run(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, 2, tokens.calls, "a streak of misses still refreshes by age")
	assert.Equal(t, 1, stats.Refreshes)
	assert.Equal(t, "token-1", inner.tokens[2])
	assert.Equal(t, "token-2", inner.tokens[3])
}

func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	fetcher := FetcherFunc(func(ctx context.Context, id Identifier, cred Credential) Outcome {
		calls++
		if calls == 2 {
			cancel()
		}
		return Found(TrackFeatures{})
	})
	p := &Pipeline{Fetcher: fetcher, Tokens: &countingTokens{}}

	table, _, err := p.Run(ctx, trackIDs(5))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, table)
	assert.Equal(t, 2, calls)
}

func TestPipelineProperties(t *testing.T) {
	p := gopter.NewProperties(nil)

	p.Property("one outcome per identifier", prop.ForAll(func(n int, missEvery int) bool {
		ids := trackIDs(n)
		miss := map[string]bool{}
		for i, id := range ids {
			if i%missEvery == 0 {
				miss[id.Value] = true
			}
		}
		pl := &Pipeline{Fetcher: &recordingFetcher{miss: miss}, Tokens: &countingTokens{}, RefreshEvery: 3}
		table, _, err := pl.Run(context.Background(), ids)
		return err == nil && table.Len() == n
	}, gen.IntRange(0, 60), gen.IntRange(1, 7)))

	p.Property("refresh calls follow successes", prop.ForAll(func(n int, every int) bool {
		tokens := &countingTokens{}
		pl := &Pipeline{Fetcher: &recordingFetcher{}, Tokens: tokens, RefreshEvery: every}
		_, _, err := pl.Run(context.Background(), trackIDs(n))
		return err == nil && tokens.calls == 1+n/every
	}, gen.IntRange(1, 60), gen.IntRange(1, 10)))

	p.Property("order does not change the mapping", prop.ForAll(func(n int, seed int64) bool {
		ids := trackIDs(n)
		shuffled := append([]Identifier(nil), ids...)
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		miss := map[string]bool{}
		if n > 0 {
			miss[ids[0].Value] = true
		}

		run := func(in []Identifier) *LookupTable {
			pl := &Pipeline{Fetcher: &recordingFetcher{miss: miss}, Tokens: &countingTokens{}}
			table, _, err := pl.Run(context.Background(), in)
			if err != nil {
				return nil
			}
			return table
		}
		a, b := run(ids), run(shuffled)
		return a != nil && b != nil && a.Equal(b) && b.Equal(a)
	}, gen.IntRange(0, 40), gen.Int64()))

	p.TestingRun(t)
}

func identifiersOf(keys []Key) []Identifier {
	ids := make([]Identifier, len(keys))
	for i, k := range keys {
		ids[i] = Identifier{Kind: k.Kind, Value: k.Value}
	}
	return ids
}

func TestPipelineCountsRateLimitedMisses(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, id Identifier, cred Credential) Outcome {
		switch id.Value {
		case "track00":
			return NotFound(fmt.Errorf("status 429: %w", ErrRateLimit))
		case "track01":
			return NotFound(fmt.Errorf("status 404: %w", ErrNotFound))
		}
		return Found(TrackFeatures{Tempo: 120})
	})
	p := &Pipeline{Fetcher: fetcher, Tokens: &countingTokens{}}

	_, stats, err := p.Run(context.Background(), trackIDs(3))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Missing)
	assert.Equal(t, 1, stats.RateLimited)
	assert.Equal(t, 1, stats.Found)
}
