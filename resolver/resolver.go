// Package resolver decides whether a source needs extraction, consults the
// resolution cache, and walks the per-platform extractor chains.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/client"
	"github.com/steadycast/steadycast/errs"
	"github.com/steadycast/steadycast/extractor"
	"github.com/steadycast/steadycast/internal/urlutil"
	"github.com/steadycast/steadycast/store"
	"github.com/steadycast/steadycast/types"
)

// DefaultTimeout bounds one whole resolution: cache lookups, every strategy
// attempt, script downloads and descrambling included.
const DefaultTimeout = 45 * time.Second

// Resolver maps source references onto playable locators.
type Resolver struct {
	client  *client.Client
	store   *store.Store
	chains  map[types.Platform]*extractor.Chain
	timeout time.Duration
	log     zerolog.Logger
}

// New builds a resolver over the given per-platform strategy chains.
func New(c *client.Client, st *store.Store, chains map[types.Platform]*extractor.Chain, log zerolog.Logger) *Resolver {
	return &Resolver{
		client:  c,
		store:   st,
		chains:  chains,
		timeout: DefaultTimeout,
		log:     log.With().Str("component", "resolver").Logger(),
	}
}

// WithTimeout overrides the overall resolution deadline.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// NeedsExtraction reports whether the source must go through an extractor
// chain. Direct manifest URLs and sources matching no known platform marker
// play as-is.
func (r *Resolver) NeedsExtraction(rawURL string) bool {
	if urlutil.IsDirectManifest(rawURL) {
		return false
	}
	return urlutil.DetectPlatform(rawURL) != types.PlatformNone
}

// Resolve turns a source reference into a playable locator. Offline sessions
// degrade to the last cached locator for the source; a cache hit is honored
// only when its stored quality mode matches the request. The whole walk runs
// under a hard deadline that yields errs.ErrResolutionTimeout rather than
// blocking.
func (r *Resolver) Resolve(ctx context.Context, src types.SourceReference) types.ExtractionResult {
	if !r.NeedsExtraction(src.URL) {
		return types.ExtractionResult{OK: true, Locator: types.Locator{URL: src.URL}, QualityLabel: "direct"}
	}

	if !r.client.Reachable() {
		if entry, ok := r.store.GetResolution(src.URL); ok {
			r.log.Warn().Str("source", src.URL).Msg("offline, serving cached locator")
			return types.ExtractionResult{OK: true, Locator: entry.Locator, QualityLabel: entry.Label}
		}
		return types.Failure(errs.ErrNetworkUnavailable)
	}

	if entry, ok := r.store.GetResolution(src.URL); ok && entry.Quality == src.Quality.String() {
		r.log.Debug().Str("source", src.URL).Msg("cache hit")
		return types.ExtractionResult{OK: true, Locator: entry.Locator, QualityLabel: entry.Label}
	}

	chain, ok := r.chains[src.Platform]
	if !ok {
		return types.Failure(fmt.Errorf("no extractor chain for platform %s", src.Platform))
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res := chain.Attempt(rctx, src)

	// A cancelled resolution must not touch the cache or masquerade as a
	// strategy failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return types.Failure(ctxErr)
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return types.Failure(errs.ErrResolutionTimeout)
	}

	if res.OK {
		if err := r.store.PutResolution(src, res.Locator, res.QualityLabel); err != nil {
			r.log.Warn().Err(err).Msg("cache write failed")
		}
		return res
	}

	// Strategy exhaustion degrades to the last known locator, whatever its
	// stored quality mode, before surfacing a failure.
	if entry, ok := r.store.GetResolution(src.URL); ok {
		r.log.Warn().Err(res.Err).Str("source", src.URL).Msg("extraction failed, serving stale cached locator")
		return types.ExtractionResult{OK: true, Locator: entry.Locator, QualityLabel: entry.Label}
	}
	return res
}

// Invalidate drops the cached resolution for a source. The resilience
// controller calls this on the first stall retry.
func (r *Resolver) Invalidate(source string) {
	_ = r.store.InvalidateResolution(source)
}
