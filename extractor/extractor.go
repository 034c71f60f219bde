// Package extractor defines the extraction strategy capability and the
// ordered chain the resolver walks.
package extractor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/errs"
	"github.com/steadycast/steadycast/types"
)

// Strategy is one ordered attempt at turning a source reference into a
// playable locator. A failed attempt is local and non-fatal; the chain
// advances to the next strategy.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, src types.SourceReference) types.ExtractionResult
}

// Chain walks strategies in fixed priority order until one succeeds.
type Chain struct {
	strategies []Strategy
	log        zerolog.Logger
}

// NewChain builds a chain over the given strategies, kept in order.
func NewChain(log zerolog.Logger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		log:        log.With().Str("component", "extractor").Logger(),
	}
}

// Attempt runs the chain. Exhaustion returns a failure carrying the last
// diagnostic reason seen.
func (c *Chain) Attempt(ctx context.Context, src types.SourceReference) types.ExtractionResult {
	lastErr := error(errs.ErrAllExtractorsExhausted)
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			return types.Failure(ctx.Err())
		}
		res := s.Attempt(ctx, src)
		if res.OK {
			c.log.Info().Str("strategy", s.Name()).Str("quality", res.QualityLabel).Msg("extraction succeeded")
			return res
		}
		if res.Err != nil {
			lastErr = res.Err
		}
		c.log.Debug().Str("strategy", s.Name()).Err(res.Err).Msg("strategy failed, advancing")
	}
	return types.Failure(fmt.Errorf("%w: %w", errs.ErrAllExtractorsExhausted, lastErr))
}
