package extractor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/types"
)

// DefaultDelegateBinary is the general-purpose extraction tool used as the
// last-resort strategy.
const DefaultDelegateBinary = "yt-dlp"

// Delegate shells out to an external general-purpose extractor. It sits last
// in every chain: slower and heavier than the native strategies, but it
// survives platform API changes the in-process extractors have not caught up
// with yet.
type Delegate struct {
	binary string
	log    zerolog.Logger
}

// NewDelegate builds the delegate strategy. An empty binary uses
// DefaultDelegateBinary from PATH.
func NewDelegate(binary string, log zerolog.Logger) *Delegate {
	if binary == "" {
		binary = DefaultDelegateBinary
	}
	return &Delegate{binary: binary, log: log.With().Str("component", "delegate").Logger()}
}

func (d *Delegate) Name() string { return "delegate:" + d.binary }

// formatSelector maps a quality mode onto the delegate's format language.
func formatSelector(mode types.QualityMode) string {
	if h := mode.Height(); h > 0 {
		return "bestvideo[height=" + strconv.Itoa(h) + "]"
	}
	return "worst[vcodec!=none][acodec!=none]"
}

// Attempt asks the delegate for a direct media URL. A missing binary or a
// non-zero exit is an ordinary strategy failure.
func (d *Delegate) Attempt(ctx context.Context, src types.SourceReference) types.ExtractionResult {
	if _, err := exec.LookPath(d.binary); err != nil {
		return types.Failure(fmt.Errorf("delegate %s not installed: %w", d.binary, err))
	}

	cmd := exec.CommandContext(ctx, d.binary, "--no-playlist", "-g", "-f", formatSelector(src.Quality), src.URL)
	out, err := cmd.Output()
	if err != nil {
		return types.Failure(fmt.Errorf("delegate %s: %w", d.binary, err))
	}
	lines := strings.Fields(strings.TrimSpace(string(out)))
	if len(lines) == 0 {
		return types.Failure(fmt.Errorf("delegate %s returned no url", d.binary))
	}

	d.log.Info().Str("source", src.URL).Msg("delegate resolved url")
	loc := types.Locator{URL: lines[0]}
	if src.Quality != types.QualityProgressive {
		loc.VideoOnly = true
		if len(lines) > 1 {
			loc.AudioURL = lines[1]
		}
	}
	return types.ExtractionResult{OK: true, Locator: loc, QualityLabel: src.Quality.String()}
}
