// Package youtube implements the primary-platform extraction strategy: an
// ordered walk over device personas against the internal player API.
package youtube

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/errs"
	"github.com/steadycast/steadycast/internal/urlutil"
	"github.com/steadycast/steadycast/types"
	"github.com/steadycast/steadycast/youtube/cipher"
	"github.com/steadycast/steadycast/youtube/formats"
	"github.com/steadycast/steadycast/youtube/innertube"
)

// Extractor attempts each persona in order until one yields an accepted
// format for the requested quality mode.
type Extractor struct {
	it          *innertube.Client
	descrambler *cipher.Descrambler
	personas    []innertube.Persona
	log         zerolog.Logger
}

// New builds the primary-platform extractor with the default persona order.
func New(httpClient *http.Client, descrambler *cipher.Descrambler, log zerolog.Logger) *Extractor {
	return &Extractor{
		it:          innertube.New(httpClient, log),
		descrambler: descrambler,
		personas:    innertube.DefaultPersonas(),
		log:         log.With().Str("component", "youtube").Logger(),
	}
}

// WithPersonas overrides the persona order, used by tests.
func (e *Extractor) WithPersonas(personas []innertube.Persona) *Extractor {
	if len(personas) > 0 {
		e.personas = personas
	}
	return e
}

// Innertube exposes the underlying API client for endpoint overrides.
func (e *Extractor) Innertube() *innertube.Client { return e.it }

func (e *Extractor) Name() string { return "youtube" }

// Attempt implements extractor.Strategy.
func (e *Extractor) Attempt(ctx context.Context, src types.SourceReference) types.ExtractionResult {
	videoID, err := urlutil.YouTubeVideoID(src.URL)
	if err != nil {
		return types.Failure(err)
	}

	var lastErr error = errs.ErrNoMatchingFormat
	for _, persona := range e.personas {
		if ctx.Err() != nil {
			return types.Failure(ctx.Err())
		}
		res, err := e.attemptPersona(ctx, src, videoID, persona)
		if err == nil {
			return res
		}
		lastErr = err
		e.log.Debug().Str("persona", persona.Name).Err(err).Msg("persona rejected")
	}
	return types.Failure(lastErr)
}

func (e *Extractor) attemptPersona(ctx context.Context, src types.SourceReference, videoID string, persona innertube.Persona) (types.ExtractionResult, error) {
	pr, err := e.it.GetPlayerResponse(ctx, videoID, persona)
	if err != nil {
		return types.ExtractionResult{}, err
	}
	if !pr.IsOK() {
		return types.ExtractionResult{}, &errs.NotPlayableError{
			Status: pr.PlayabilityStatus.Status,
			Reason: pr.PlayabilityStatus.Reason,
		}
	}

	muxed, adaptive := formats.FromPlayerResponse(pr)
	candidates := formats.Candidates(muxed, adaptive, src.Quality)
	for _, f := range candidates {
		mediaURL, err := e.resolveFormatURL(ctx, f, src.URL)
		if err != nil {
			// A format that cannot be descrambled disqualifies itself,
			// not the persona.
			e.log.Debug().Int("itag", f.Itag).Err(err).Msg("format disqualified")
			continue
		}
		loc := types.Locator{URL: mediaURL}
		if src.Quality != types.QualityProgressive {
			loc.VideoOnly = true
			loc.AudioURL = e.bestAudioURL(ctx, adaptive, src.URL)
		}
		return types.ExtractionResult{OK: true, Locator: loc, QualityLabel: formats.Label(f, src.Quality)}, nil
	}

	// Neither policy matched; a live manifest still beats nothing.
	if hls := pr.StreamingData.HLSManifestURL; hls != "" {
		return types.ExtractionResult{OK: true, Locator: types.Locator{URL: hls}, QualityLabel: "adaptive"}, nil
	}
	return types.ExtractionResult{}, fmt.Errorf("%w: mode %s, persona %s", errs.ErrNoMatchingFormat, src.Quality, persona.Name)
}

// resolveFormatURL returns the playable URL for a format, descrambling its
// signature cipher when the direct URL is withheld.
func (e *Extractor) resolveFormatURL(ctx context.Context, f types.Format, pageURL string) (string, error) {
	if strings.TrimSpace(f.URL) != "" {
		return f.URL, nil
	}
	if f.SignatureCipher == "" {
		return "", fmt.Errorf("%w: format %d has no url or cipher", errs.ErrCipherDecryptFailed, f.Itag)
	}
	jsURL, err := e.descrambler.FetchPlayerJSURL(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: locate player js: %v", errs.ErrCipherDecryptFailed, err)
	}
	return e.descrambler.Resolve(ctx, f.SignatureCipher, jsURL)
}

// bestAudioURL picks the highest-bitrate audio-only track to pair with a
// video-only locator. Best effort: an empty string just means the playback
// layer mutes the track.
func (e *Extractor) bestAudioURL(ctx context.Context, adaptive []types.Format, pageURL string) string {
	var best *types.Format
	for i := range adaptive {
		f := &adaptive[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best == nil {
		return ""
	}
	u, err := e.resolveFormatURL(ctx, *best, pageURL)
	if err != nil {
		return ""
	}
	return u
}
