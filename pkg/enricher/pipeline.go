// pkg/enricher/pipeline.go - Sequential enrichment with proactive credential refresh

package enricher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultProgressEvery is how many successful lookups pass between
	// progress signals.
	DefaultProgressEvery = 250
	// DefaultRefreshEvery is how many successful lookups pass between
	// credential refreshes.
	DefaultRefreshEvery = 5000
	// DefaultTimeout bounds a single remote lookup.
	DefaultTimeout = 5 * time.Second
)

// ProgressFunc receives the cumulative number of successful lookups.
type ProgressFunc func(ctx context.Context, acquired int)

// Pipeline looks up identifiers one at a time and collects the outcomes in
// a LookupTable.
//
// Credentials are replaced before they can expire rather than after a
// rejected call: a Fetcher turns a 401 into NotFound like any other miss,
// so a reactive refresh would never see it.
type Pipeline struct {
	Fetcher Fetcher
	Tokens  TokenProvider
	Scope   string

	// ProgressEvery and RefreshEvery count successful lookups only.
	ProgressEvery int
	RefreshEvery  int
	// RefreshAfter also refreshes once the credential is this old, so a
	// long streak of misses cannot outlive it. Zero disables it.
	RefreshAfter time.Duration

	// Prior holds outcomes from an earlier run. Identifiers found there
	// are reused without a remote call.
	Prior *LookupTable

	Progress ProgressFunc
	Now      func() time.Time
}

// Stats summarizes one run.
type Stats struct {
	Identifiers int
	Attempted   int
	Found       int
	Missing     int
	Reused      int
	Refreshes   int
	// RateLimited counts the misses caused by throttling
	RateLimited int
	Elapsed     time.Duration
}

// Run looks up every identifier and returns one outcome per distinct
// identity. An empty input returns an empty table without touching the
// token provider. The only errors are credential failures and context
// cancellation; lookup failures are recorded as misses.
func (p *Pipeline) Run(ctx context.Context, ids []Identifier) (*LookupTable, Stats, error) {
	stats := Stats{Identifiers: len(ids)}
	table := NewLookupTable()
	if len(ids) == 0 {
		return table, stats, nil
	}

	logger := zerolog.Ctx(ctx).With().Str("kind", string(ids[0].Kind)).Logger()
	ctx = logger.WithContext(ctx)
	start := p.now()

	pending := 0
	for _, id := range ids {
		if _, ok := p.reusable(id); !ok {
			pending++
		}
	}

	var (
		cred   Credential
		issued time.Time
		err    error
	)
	if pending > 0 {
		if p.Fetcher == nil {
			return nil, stats, ErrNoProvider
		}
		cred, issued, err = p.acquire(ctx)
		if err != nil {
			return nil, stats, err
		}
	}

	acquired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		if out, ok := p.reusable(id); ok {
			table.Put(id, out)
			stats.Reused++
			continue
		}

		if p.RefreshAfter > 0 && p.now().Sub(issued) >= p.RefreshAfter {
			if cred, issued, err = p.acquire(ctx); err != nil {
				return nil, stats, fmt.Errorf("refresh credential after %s: %w", p.RefreshAfter, err)
			}
			stats.Refreshes++
		}

		out := p.Fetcher.Fetch(ctx, id, cred)
		stats.Attempted++
		table.Put(id, out)
		if !out.Found() {
			stats.Missing++
			limited := out.RateLimited()
			if limited {
				stats.RateLimited++
			}
			logger.Debug().
				Str("id", id.Value).
				AnErr("reason", out.Reason).
				Bool("rate_limited", limited).
				Msg("lookup missed")
			continue
		}

		acquired++
		stats.Found = acquired
		if acquired%p.progressEvery() == 0 {
			p.progress(ctx, acquired)
		}
		if acquired%p.refreshEvery() == 0 {
			if cred, issued, err = p.acquire(ctx); err != nil {
				return nil, stats, fmt.Errorf("refresh credential after %d lookups: %w", acquired, err)
			}
			stats.Refreshes++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	stats.Elapsed = p.now().Sub(start)
	event := logger.Info().
		Int("identifiers", stats.Identifiers).
		Int("found", stats.Found).
		Int("missing", stats.Missing).
		Dur("took", stats.Elapsed)
	if stats.Reused > 0 {
		event = event.Int("reused", stats.Reused)
	}
	if stats.RateLimited > 0 {
		event = event.Int("rate_limited", stats.RateLimited)
	}
	event.Msg("enrichment finished")

	return table, stats, nil
}

func (p *Pipeline) reusable(id Identifier) (Outcome, bool) {
	out, ok := p.Prior.Get(id.Key())
	if !ok || !out.Found() {
		return Outcome{}, false
	}
	return out, true
}

func (p *Pipeline) acquire(ctx context.Context) (Credential, time.Time, error) {
	if p.Tokens == nil {
		return Credential{}, time.Time{}, fmt.Errorf("no token provider for scope %q: %w", p.Scope, ErrAuthorization)
	}
	cred, err := p.Tokens.Credential(ctx, p.Scope)
	if err != nil {
		return Credential{}, time.Time{}, fmt.Errorf("credential for scope %q: %w", p.Scope, err)
	}
	zerolog.Ctx(ctx).Debug().Str("scope", p.Scope).Msg("credential acquired")
	return cred, p.now(), nil
}

func (p *Pipeline) progress(ctx context.Context, acquired int) {
	if p.Progress != nil {
		p.Progress(ctx, acquired)
		return
	}
	zerolog.Ctx(ctx).Info().Int("acquired", acquired).Msg("enrichment progress")
}

func (p *Pipeline) progressEvery() int {
	if p.ProgressEvery > 0 {
		return p.ProgressEvery
	}
	return DefaultProgressEvery
}

func (p *Pipeline) refreshEvery() int {
	if p.RefreshEvery > 0 {
		return p.RefreshEvery
	}
	return DefaultRefreshEvery
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
