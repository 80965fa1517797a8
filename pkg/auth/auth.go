// pkg/auth/auth.go - credential providers for the enrichment pipeline

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cerberussg/historian/pkg/enricher"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyTokenURL is the Spotify accounts token endpoint
const SpotifyTokenURL = "https://accounts.spotify.com/api/token"

const (
	initialInterval    = 250 * time.Millisecond
	maxInterval        = 5 * time.Second
	defaultMaxElapsed  = 30 * time.Second
	defaultTokenExpiry = time.Hour
)

// ClientCredentials obtains app tokens through the OAuth2 client
// credentials flow. Transient failures are retried with exponential
// backoff; a rejected client fails immediately with ErrAuthorization.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// MaxElapsed bounds the total retry time; zero means 30s
	MaxElapsed time.Duration
	// HTTPClient overrides the client used against the token endpoint
	HTTPClient *http.Client
}

var _ enricher.TokenProvider = (*ClientCredentials)(nil)

// Credential fetches a fresh token for scope. Every call hits the token
// endpoint; callers decide when a refresh is due.
func (c *ClientCredentials) Credential(ctx context.Context, scope string) (enricher.Credential, error) {
	if c.ClientID == "" || c.ClientSecret == "" {
		return enricher.Credential{}, fmt.Errorf("missing client id or secret: %w", enricher.ErrAuthorization)
	}

	cfg := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     c.tokenURL(),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	if scope != "" {
		cfg.Scopes = []string{scope}
	}

	if c.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}

	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialInterval),
		backoff.WithMaxInterval(maxInterval),
		backoff.WithMaxElapsedTime(c.maxElapsed()),
	), ctx)

	var token *oauth2.Token
	err := backoff.RetryNotify(func() error {
		t, err := cfg.Token(ctx)
		if err != nil {
			if rejected(err) {
				return backoff.Permanent(fmt.Errorf("%w: %v", enricher.ErrAuthorization, err))
			}
			return err
		}
		token = t
		return nil
	}, bo, func(err error, d time.Duration) {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Dur("backoff", d).
			Str("scope", scope).
			Msg("token request failure")
	})
	if err != nil {
		if errors.Is(err, enricher.ErrAuthorization) {
			return enricher.Credential{}, err
		}
		return enricher.Credential{}, fmt.Errorf("token request failed: %w: %v", enricher.ErrAuthorization, err)
	}

	issued := time.Now()
	expiry := token.Expiry
	if expiry.IsZero() {
		expiry = issued.Add(defaultTokenExpiry)
	}
	return enricher.Credential{
		Token:    token.AccessToken,
		Scope:    scope,
		IssuedAt: issued,
		Expiry:   expiry,
	}, nil
}

func (c *ClientCredentials) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return SpotifyTokenURL
}

func (c *ClientCredentials) maxElapsed() time.Duration {
	if c.MaxElapsed > 0 {
		return c.MaxElapsed
	}
	return defaultMaxElapsed
}

// rejected reports whether the token endpoint refused the client itself,
// which no amount of retrying fixes
func rejected(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}
	code := re.Response.StatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// Static hands out a fixed token, e.g. a user token pasted from the
// developer console or an ipinfo API key. An empty token is allowed
// unless Required is set.
type Static struct {
	Token    string
	Required bool
}

var _ enricher.TokenProvider = Static{}

// Credential returns the fixed token under the requested scope
func (s Static) Credential(ctx context.Context, scope string) (enricher.Credential, error) {
	if err := ctx.Err(); err != nil {
		return enricher.Credential{}, err
	}
	if s.Required && s.Token == "" {
		return enricher.Credential{}, fmt.Errorf("no token configured for scope %q: %w", scope, enricher.ErrAuthorization)
	}
	return enricher.Credential{Token: s.Token, Scope: scope, IssuedAt: time.Now()}, nil
}
