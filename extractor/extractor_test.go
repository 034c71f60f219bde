package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadycast/steadycast/errs"
	"github.com/steadycast/steadycast/types"
)

type fakeStrategy struct {
	name   string
	result types.ExtractionResult
	calls  int
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Attempt(ctx context.Context, src types.SourceReference) types.ExtractionResult {
	s.calls++
	return s.result
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &fakeStrategy{name: "a", result: types.Failure(errors.New("a failed"))}
	second := &fakeStrategy{name: "b", result: types.ExtractionResult{
		OK:           true,
		Locator:      types.Locator{URL: "https://cdn/v"},
		QualityLabel: "360p progressive",
	}}
	third := &fakeStrategy{name: "c"}

	c := NewChain(zerolog.Nop(), first, second, third)
	res := c.Attempt(context.Background(), types.SourceReference{URL: "https://x"})
	require.True(t, res.OK)
	assert.Equal(t, "https://cdn/v", res.Locator.URL)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Equal(t, 0, third.calls, "strategies after the first success must not run")
}

func TestChainExhaustionKeepsLastDiagnostic(t *testing.T) {
	first := &fakeStrategy{name: "a", result: types.Failure(errors.New("a failed"))}
	lastDiag := errors.New("b: region locked")
	second := &fakeStrategy{name: "b", result: types.Failure(lastDiag)}

	c := NewChain(zerolog.Nop(), first, second)
	res := c.Attempt(context.Background(), types.SourceReference{URL: "https://x"})
	require.False(t, res.OK)
	assert.ErrorIs(t, res.Err, errs.ErrAllExtractorsExhausted)
	assert.ErrorIs(t, res.Err, lastDiag)
}

func TestChainEmpty(t *testing.T) {
	c := NewChain(zerolog.Nop())
	res := c.Attempt(context.Background(), types.SourceReference{})
	require.False(t, res.OK)
	assert.ErrorIs(t, res.Err, errs.ErrAllExtractorsExhausted)
}

func TestChainHonoursContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &fakeStrategy{name: "a"}
	c := NewChain(zerolog.Nop(), s)
	res := c.Attempt(ctx, types.SourceReference{})
	require.False(t, res.OK)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 0, s.calls)
}

func TestFormatSelector(t *testing.T) {
	assert.Equal(t, "worst[vcodec!=none][acodec!=none]", formatSelector(types.QualityProgressive))
	assert.Equal(t, "bestvideo[height=720]", formatSelector(types.Quality720))
}

func TestDelegateMissingBinary(t *testing.T) {
	d := NewDelegate("definitely-not-installed-bin", zerolog.Nop())
	res := d.Attempt(context.Background(), types.SourceReference{URL: "https://x"})
	require.False(t, res.OK)
	assert.Error(t, res.Err)
}

func TestDelegateName(t *testing.T) {
	assert.Equal(t, "delegate:yt-dlp", NewDelegate("", zerolog.Nop()).Name())
	assert.Equal(t, "delegate:custom", NewDelegate("custom", zerolog.Nop()).Name())
}
