// pkg/enricher/enricher.go - Core interfaces, dispatch and provider chains

package enricher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("no metadata found")
	ErrRateLimit     = errors.New("rate limit exceeded")
	ErrAPIError      = errors.New("API error")
	ErrNoProvider    = errors.New("no providers available")
	ErrAuthorization = errors.New("authorization denied")
)

// Credential is an opaque bearer credential issued for one scope.
type Credential struct {
	Token    string
	Scope    string
	IssuedAt time.Time
	Expiry   time.Time
}

// TokenProvider hands out credentials for a capability scope. Every call
// must produce a fresh credential; callers decide when to ask again.
//
// Implementations return an error wrapping ErrAuthorization when the
// identity cannot be authorized for scope.
type TokenProvider interface {
	Credential(ctx context.Context, scope string) (Credential, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context, scope string) (Credential, error)

// Credential implements TokenProvider.
func (f TokenProviderFunc) Credential(ctx context.Context, scope string) (Credential, error) {
	return f(ctx, scope)
}

// Fetcher performs one bounded remote lookup. It never fails: transport
// errors, rejected credentials, malformed or empty responses all come back
// as NotFound with the cause attached.
type Fetcher interface {
	Fetch(ctx context.Context, id Identifier, cred Credential) Outcome
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, id Identifier, cred Credential) Outcome

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, id Identifier, cred Credential) Outcome {
	return f(ctx, id, cred)
}

// WithTimeout bounds every call to f by d.
func WithTimeout(f Fetcher, d time.Duration) Fetcher {
	if d <= 0 {
		return f
	}
	return FetcherFunc(func(ctx context.Context, id Identifier, cred Credential) Outcome {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return f.Fetch(ctx, id, cred)
	})
}

// Registry is the dispatch table from identifier kind to the fetcher
// responsible for it.
type Registry map[Kind]Fetcher

// Fetch dispatches on id.Kind.
func (r Registry) Fetch(ctx context.Context, id Identifier, cred Credential) Outcome {
	f, ok := r[id.Kind]
	if !ok || f == nil {
		return NotFound(fmt.Errorf("%s: %w", id.Kind, ErrNoProvider))
	}
	return f.Fetch(ctx, id, cred)
}

// Chain tries several fetchers for the same kind in priority order and
// returns the first Found outcome. When every fetcher misses, the last
// reason is kept.
type Chain struct {
	fetchers []Fetcher
}

// NewChain creates a chain over fetchers, highest priority first
func NewChain(fetchers ...Fetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

// Fetch implements Fetcher.
func (c *Chain) Fetch(ctx context.Context, id Identifier, cred Credential) Outcome {
	if len(c.fetchers) == 0 {
		return NotFound(ErrNoProvider)
	}

	var last Outcome
	for _, f := range c.fetchers {
		if err := ctx.Err(); err != nil {
			return NotFound(err)
		}
		out := f.Fetch(ctx, id, cred)
		if out.Found() {
			return out
		}
		last = out
	}
	return last
}

// Add appends a fetcher with the lowest priority
func (c *Chain) Add(f Fetcher) {
	c.fetchers = append(c.fetchers, f)
}

// Len returns the number of fetchers in the chain
func (c *Chain) Len() int {
	return len(c.fetchers)
}
