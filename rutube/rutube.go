// Package rutube implements the secondary-platform extraction strategy
// against the public play-options API.
package rutube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/client"
	"github.com/steadycast/steadycast/errs"
	"github.com/steadycast/steadycast/internal/urlutil"
	"github.com/steadycast/steadycast/types"
)

const defaultAPIBase = "https://rutube.ru/api/play/options"

// Extractor resolves rutube.ru watch URLs through the play-options endpoint,
// then narrows the returned adaptive manifest to a single rendition by
// closest height.
type Extractor struct {
	client  *client.Client
	apiBase string
	log     zerolog.Logger
}

// New builds the secondary-platform extractor.
func New(hc *client.Client, log zerolog.Logger) *Extractor {
	if hc == nil {
		hc = client.New()
	}
	return &Extractor{
		client:  hc,
		apiBase: defaultAPIBase,
		log:     log.With().Str("component", "rutube").Logger(),
	}
}

// WithAPIBase overrides the play-options endpoint, used by tests.
func (e *Extractor) WithAPIBase(base string) *Extractor {
	if base != "" {
		e.apiBase = base
	}
	return e
}

func (e *Extractor) Name() string { return "rutube" }

// playOptions is the subset of the play-options response the extractor reads.
type playOptions struct {
	Title         string `json:"title"`
	VideoBalancer struct {
		M3U8    string `json:"m3u8"`
		Default string `json:"default"`
	} `json:"video_balancer"`
	Detail string `json:"detail"`
}

// Attempt implements extractor.Strategy.
func (e *Extractor) Attempt(ctx context.Context, src types.SourceReference) types.ExtractionResult {
	videoID, err := urlutil.RuTubeVideoID(src.URL)
	if err != nil {
		return types.Failure(err)
	}

	endpoint := e.apiBase + "/" + videoID + "/?no_404=true&format=json"
	resp, err := e.client.Get(ctx, endpoint)
	if err != nil {
		return types.Failure(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return types.Failure(&errs.HTTPError{Status: resp.StatusCode, URL: endpoint})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Failure(err)
	}
	var opts playOptions
	if err := json.Unmarshal(body, &opts); err != nil {
		return types.Failure(fmt.Errorf("%w: %v", errs.ErrEmptyResponse, err))
	}

	manifestURL := opts.VideoBalancer.M3U8
	if manifestURL == "" {
		manifestURL = opts.VideoBalancer.Default
	}
	if manifestURL == "" {
		if opts.Detail != "" {
			return types.Failure(&errs.NotPlayableError{Reason: opts.Detail})
		}
		return types.Failure(errs.ErrEmptyResponse)
	}

	// Best effort rendition pick; the master manifest itself is still a
	// valid locator when the fetch or parse fails.
	label := "adaptive"
	if url, h, err := e.selectRendition(ctx, manifestURL, src.Quality); err == nil {
		manifestURL = url
		label = fmt.Sprintf("%dp", h)
	} else {
		e.log.Debug().Err(err).Msg("rendition selection failed, using master manifest")
	}

	return types.ExtractionResult{
		OK:           true,
		Locator:      types.Locator{URL: manifestURL},
		QualityLabel: label,
	}
}
