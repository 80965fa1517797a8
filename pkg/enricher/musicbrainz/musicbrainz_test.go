// pkg/enricher/musicbrainz/musicbrainz_test.go

package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cerberussg/historian/pkg/enricher"
)

func TestProvider_Interface(t *testing.T) {
	// Ensure Provider implements the Fetcher interface
	var _ enricher.Fetcher = (*Provider)(nil)
}

func TestNewProvider(t *testing.T) {
	provider := NewProvider("", "")

	if provider == nil {
		t.Fatal("NewProvider returned nil")
	}

	if provider.Name() != "musicbrainz" {
		t.Errorf("Expected name 'musicbrainz', got '%s'", provider.Name())
	}
}

func TestProvider_RateLimit(t *testing.T) {
	provider := NewProvider("", "")

	start := time.Now()

	ctx := context.Background()
	if err := provider.limiter.Wait(ctx); err != nil {
		t.Fatalf("First rate limit wait failed: %v", err)
	}
	if err := provider.limiter.Wait(ctx); err != nil {
		t.Fatalf("Second rate limit wait failed: %v", err)
	}

	elapsed := time.Since(start)
	if elapsed < 900*time.Millisecond {
		t.Errorf("Rate limiting not working: elapsed time %v is less than 1 second", elapsed)
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := provider.limiter.Wait(cancelCtx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestProvider_SearchResultParsing(t *testing.T) {
	mockJSON := `{
		"created": "2024-01-01T00:00:00Z",
		"count": 1,
		"offset": 0,
		"artists": [
			{
				"id": "a7f2b5b2-8b5b-4d4d-9c4a-2b0a1a2e3f4d",
				"name": "LTJ Bukem",
				"sort-name": "Bukem, LTJ",
				"score": 100,
				"type": "Person",
				"country": "GB",
				"tags": [{"count": 3, "name": "drum and bass"}, {"count": 1, "name": "jungle"}]
			}
		]
	}`

	var result ArtistSearchResult
	if err := json.Unmarshal([]byte(mockJSON), &result); err != nil {
		t.Fatalf("Failed to parse mock JSON: %v", err)
	}

	if len(result.Artists) != 1 {
		t.Fatalf("Expected 1 artist, got %d", len(result.Artists))
	}

	artist := result.Artists[0]
	if artist.SortName != "Bukem, LTJ" {
		t.Errorf("Expected sort name 'Bukem, LTJ', got '%s'", artist.SortName)
	}
	if artist.Score != 100 {
		t.Errorf("Expected score 100, got %d", artist.Score)
	}
	if len(artist.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %d", len(artist.Tags))
	}
}

func TestProvider_Fetch(t *testing.T) {
	var requests []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)

		if userAgent := r.Header.Get("User-Agent"); !strings.Contains(userAgent, "historian") {
			t.Errorf("Expected User-Agent to contain 'historian', got '%s'", userAgent)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("Expected Accept header 'application/json', got '%s'", accept)
		}
		if r.URL.Query().Get("fmt") != "json" {
			t.Errorf("Expected fmt=json parameter")
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/artist":
			if q := r.URL.Query().Get("query"); q != `artist:"Goldie"` {
				t.Errorf("Unexpected query %q", q)
			}
			fmt.Fprint(w, `{"count": 2, "artists": [
				{"id": "wrong", "name": "Goldie Hawn", "score": 95},
				{"id": "goldie", "name": "Goldie", "score": 90}
			]}`)
		case "/artist/goldie":
			if inc := r.URL.Query().Get("inc"); inc != "genres+tags" {
				t.Errorf("Expected inc=genres+tags, got %q", inc)
			}
			fmt.Fprint(w, `{"id": "goldie", "name": "Goldie", "genres": [
				{"id": "g1", "name": "jungle", "count": 2},
				{"id": "g2", "name": "drum and bass", "count": 7}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := NewProvider(server.URL, "")
	provider.limiter.SetLimit(1000)

	out := provider.Fetch(context.Background(), enricher.Identifier{Kind: enricher.KindArtist, Value: "Goldie", Hint: "ignored"}, enricher.Credential{})
	if !out.Found() {
		t.Fatalf("Expected found, got reason %v", out.Reason)
	}

	g := out.Payload.(enricher.ArtistGenres)
	if g.ArtistID != "goldie" {
		t.Errorf("Expected the exact name match, got '%s'", g.ArtistID)
	}
	if strings.Join(g.Genres, ";") != "drum and bass;jungle" {
		t.Errorf("Expected genres ordered by votes, got %v", g.Genres)
	}
	if g.Source != "musicbrainz" {
		t.Errorf("Expected source 'musicbrainz', got '%s'", g.Source)
	}
	if len(requests) != 2 {
		t.Errorf("Expected 2 requests, got %v", requests)
	}
}

func TestProvider_FallsBackToTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/artist" {
			fmt.Fprint(w, `{"artists": [{"id": "x", "name": "Photek", "score": 100,
				"tags": [{"count": 0, "name": "seen live"}, {"count": 4, "name": "techstep"}]}]}`)
			return
		}
		fmt.Fprint(w, `{"id": "x", "name": "Photek"}`)
	}))
	defer server.Close()

	provider := NewProvider(server.URL, "")
	provider.limiter.SetLimit(1000)

	out := provider.Fetch(context.Background(), enricher.Identifier{Kind: enricher.KindArtist, Value: "Photek"}, enricher.Credential{})
	if !out.Found() {
		t.Fatalf("Expected found, got reason %v", out.Reason)
	}
	if got := out.Payload.(enricher.ArtistGenres).Genres; len(got) != 1 || got[0] != "techstep" {
		t.Errorf("Expected only voted tags, got %v", got)
	}
}

func TestProvider_ErrorHandling(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"server error", http.StatusInternalServerError, "Internal Server Error", enricher.ErrAPIError},
		{"throttled", http.StatusServiceUnavailable, "", enricher.ErrRateLimit},
		{"no artists", http.StatusOK, `{"count": 0, "artists": []}`, enricher.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			provider := NewProvider(server.URL, "")
			provider.limiter.SetLimit(1000)

			out := provider.Fetch(context.Background(), enricher.Identifier{Kind: enricher.KindArtist, Value: "Artist"}, enricher.Credential{})
			if out.Found() {
				t.Fatal("Expected a miss")
			}
			if !errors.Is(out.Reason, tc.sentinel) {
				t.Errorf("Expected %v, got %v", tc.sentinel, out.Reason)
			}
		})
	}

	// Empty inputs never reach the network
	provider := NewProvider("http://127.0.0.1:0", "")
	if out := provider.Fetch(context.Background(), enricher.Identifier{Kind: enricher.KindArtist, Value: "  "}, enricher.Credential{}); out.Found() {
		t.Error("Expected a miss for an empty name")
	}
	if best := provider.findBestArtistMatch([]Artist{}, "Artist"); best != nil {
		t.Error("Expected nil for empty artists slice")
	}
}

func TestProvider_FindBestArtistMatch(t *testing.T) {
	provider := NewProvider("", "")

	artists := []Artist{
		{ID: "low-score", Name: "Different Artist", Score: 50},
		{ID: "exact-match", Name: "LTJ Bukem", Score: 85},
		{ID: "high-score-wrong-match", Name: "LTJ Bukem & MC Conrad", Score: 90},
		{ID: "alias-match", Name: "Danny Williamson", Score: 70, Aliases: []Alias{{Name: "LTJ Bukem"}}},
	}

	best := provider.findBestArtistMatch(artists, "ltj bukem")

	if best == nil {
		t.Fatal("findBestArtistMatch returned nil")
	}

	if best.ID != "exact-match" {
		t.Errorf("Expected best match ID 'exact-match', got '%s'", best.ID)
	}
}

func BenchmarkProvider_FindBestArtistMatch(b *testing.B) {
	provider := NewProvider("", "")

	artists := make([]Artist, 100)
	for i := 0; i < 100; i++ {
		artists[i] = Artist{
			ID:    fmt.Sprintf("artist-%d", i),
			Name:  fmt.Sprintf("Artist %d", i),
			Score: i,
		}
	}
	artists[99] = Artist{ID: "target", Name: "LTJ Bukem", Score: 90}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		provider.findBestArtistMatch(artists, "LTJ Bukem")
	}
}
