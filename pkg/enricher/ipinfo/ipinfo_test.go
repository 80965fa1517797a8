package ipinfo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Interface(t *testing.T) {
	var _ enricher.Fetcher = (*Client)(nil)
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/8.8.8.8/json", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ip":"8.8.8.8","city":"Mountain View","region":"California","country":"US","loc":"37.4056,-122.0775"}`)
	}))
	defer server.Close()

	out := NewClient(server.URL, 0).Fetch(context.Background(), enricher.Identifier{Kind: enricher.KindIP, Value: "8.8.8.8"}, enricher.Credential{Token: "tok"})

	require.True(t, out.Found(), "reason: %v", out.Reason)
	geo := out.Payload.(enricher.GeoInfo)
	assert.InDelta(t, 37.4056, geo.Lat, 1e-9)
	assert.InDelta(t, -122.0775, geo.Lon, 1e-9)
	assert.Equal(t, "Mountain View", geo.City)
	assert.Equal(t, "US", geo.Country)
}

func TestFetchWithoutTokenSendsNoAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"ip":"1.1.1.1","loc":"-33.8688,151.2093","country":"AU"}`)
	}))
	defer server.Close()

	out := NewClient(server.URL, 0).Fetch(context.Background(), enricher.Identifier{Kind: enricher.KindIP, Value: "1.1.1.1"}, enricher.Credential{})
	assert.True(t, out.Found())
}

func TestFetchMisses(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"bogon", http.StatusOK, `{"ip":"10.0.0.1","bogon":true}`, enricher.ErrNotFound},
		{"missing loc", http.StatusOK, `{"ip":"203.0.113.9"}`, enricher.ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, ``, enricher.ErrRateLimit},
		{"server error", http.StatusInternalServerError, `oops`, enricher.ErrAPIError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			out := NewClient(server.URL, 0).Fetch(context.Background(), enricher.Identifier{Kind: enricher.KindIP, Value: "203.0.113.9"}, enricher.Credential{})
			assert.False(t, out.Found())
			assert.ErrorIs(t, out.Reason, tt.sentinel)
		})
	}
}

func TestParseLoc(t *testing.T) {
	tests := []struct {
		loc     string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"51.5074,-0.1278", 51.5074, -0.1278, false},
		{" 40.7128 , -74.0060 ", 40.7128, -74.006, false},
		{"", 0, 0, true},
		{"51.5", 0, 0, true},
		{"north,west", 0, 0, true},
		{"91,0", 0, 0, true},
		{"1,2,3", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.loc, func(t *testing.T) {
			lat, lon, err := ParseLoc(tt.loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.lat, lat, 1e-9)
			assert.InDelta(t, tt.lon, lon, 1e-9)
		})
	}
}
