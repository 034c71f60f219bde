// Package formats applies the quality-mode policy to a player response's
// format lists.
package formats

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/steadycast/steadycast/types"
	"github.com/steadycast/steadycast/youtube/innertube"
)

var heightRe = regexp.MustCompile(`([0-9]{3,4})p`)

// FromPlayerResponse flattens the response's muxed and adaptive format lists
// into the module's format type.
func FromPlayerResponse(pr *innertube.PlayerResponse) (muxed, adaptive []types.Format) {
	conv := func(in []innertube.FormatData) []types.Format {
		out := make([]types.Format, 0, len(in))
		for _, f := range in {
			out = append(out, types.Format{
				Itag:            f.Itag,
				URL:             f.URL,
				MimeType:        f.MimeType,
				QualityLabel:    f.QualityLabel,
				Height:          heightOf(f),
				Bitrate:         f.Bitrate,
				AudioChannels:   audioChannelsOf(f),
				SignatureCipher: f.SignatureCipher,
			})
		}
		return out
	}
	return conv(pr.StreamingData.Formats), conv(pr.StreamingData.AdaptiveFormats)
}

func heightOf(f innertube.FormatData) int {
	if f.Height > 0 {
		return f.Height
	}
	if m := heightRe.FindStringSubmatch(f.QualityLabel); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	return 0
}

// audioChannelsOf infers audio presence for responses that omit the channel
// count but label audio quality.
func audioChannelsOf(f innertube.FormatData) int {
	if f.AudioChannels > 0 {
		return f.AudioChannels
	}
	if f.AudioQuality != "" {
		return 2
	}
	return 0
}

// isCompatCodec reports whether the format's codec family plays on
// essentially every device surface.
func isCompatCodec(f types.Format) bool {
	return strings.Contains(f.MimeType, "avc1")
}

// Candidates orders the formats a persona offered by preference for the
// requested quality mode. The returned slice may be empty: height-target
// modes never substitute a different resolution, they fall through to the
// next strategy instead.
func Candidates(muxed, adaptive []types.Format, mode types.QualityMode) []types.Format {
	if mode == types.QualityProgressive {
		return progressiveCandidates(muxed)
	}
	return videoOnlyCandidates(adaptive, mode.Height())
}

// progressiveCandidates scans muxed formats lowest-resolution first; muxed
// entries without an audio track are rejected outright.
func progressiveCandidates(muxed []types.Format) []types.Format {
	out := make([]types.Format, 0, len(muxed))
	for _, f := range muxed {
		if f.IsMuxed() && f.Height > 0 {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Height < out[j].Height })
	return out
}

// videoOnlyCandidates keeps only exact height matches among adaptive
// video-only tracks, widely-compatible codec family first.
func videoOnlyCandidates(adaptive []types.Format, height int) []types.Format {
	out := make([]types.Format, 0, len(adaptive))
	for _, f := range adaptive {
		if f.IsVideoOnly() && f.Height == height {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := isCompatCodec(out[i]), isCompatCodec(out[j])
		if ci != cj {
			return ci
		}
		return out[i].Bitrate > out[j].Bitrate
	})
	return out
}

// Label renders the human-readable quality label for an accepted format.
func Label(f types.Format, mode types.QualityMode) string {
	h := f.Height
	if h == 0 {
		if m := heightRe.FindStringSubmatch(f.QualityLabel); len(m) == 2 {
			h, _ = strconv.Atoi(m[1])
		}
	}
	if mode == types.QualityProgressive {
		return strconv.Itoa(h) + "p progressive"
	}
	return strconv.Itoa(h) + "p"
}
