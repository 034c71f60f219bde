package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Platform identifies the video platform a source reference belongs to.
type Platform int

const (
	// PlatformNone means the source matched no known platform marker.
	PlatformNone Platform = iota
	// PlatformYouTube is the primary platform (internal player API).
	PlatformYouTube
	// PlatformRuTube is the secondary platform (play-options API).
	PlatformRuTube
)

// String returns the tag used in cache entries and logs.
func (p Platform) String() string {
	switch p {
	case PlatformYouTube:
		return "youtube"
	case PlatformRuTube:
		return "rutube"
	default:
		return "none"
	}
}

// QualityMode selects the format policy used during extraction.
type QualityMode int

const (
	// QualityProgressive picks the lowest muxed (audio+video) format.
	QualityProgressive QualityMode = iota
	Quality360
	Quality480
	Quality720
	Quality1080
)

// Height returns the target height for video-only modes, or 0 for progressive.
func (q QualityMode) Height() int {
	switch q {
	case Quality360:
		return 360
	case Quality480:
		return 480
	case Quality720:
		return 720
	case Quality1080:
		return 1080
	default:
		return 0
	}
}

func (q QualityMode) String() string {
	if h := q.Height(); h > 0 {
		return strconv.Itoa(h) + "p"
	}
	return "progressive"
}

// ParseQualityMode parses "progressive" or a height like "720" / "720p".
func ParseQualityMode(s string) (QualityMode, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "progressive" {
		return QualityProgressive, nil
	}
	switch strings.TrimSuffix(s, "p") {
	case "360":
		return Quality360, nil
	case "480":
		return Quality480, nil
	case "720":
		return Quality720, nil
	case "1080":
		return Quality1080, nil
	}
	return QualityProgressive, fmt.Errorf("unknown quality mode %q", s)
}

// SourceReference is a user-supplied video source plus the inferred platform
// and the requested quality mode. It is not mutated once extraction begins.
type SourceReference struct {
	URL      string
	Platform Platform
	Quality  QualityMode
}

// Locator is a resolved, directly playable media location. VideoOnly tags a
// video-only URL: the playback layer mutes the track and may mux AudioURL
// separately instead of this package remuxing containers in-process.
type Locator struct {
	URL       string `json:"url"`
	VideoOnly bool   `json:"videoOnly,omitempty"`
	AudioURL  string `json:"audioUrl,omitempty"`
}

// IsZero reports whether the locator carries no URL.
func (l Locator) IsZero() bool { return l.URL == "" }

// ExtractionResult is produced once per resolution attempt and not retained
// beyond caching.
type ExtractionResult struct {
	OK           bool
	Locator      Locator
	QualityLabel string
	Err          error
}

// Failure builds a failed result carrying the diagnostic error.
func Failure(err error) ExtractionResult {
	return ExtractionResult{OK: false, Err: err}
}

// Format describes one media format offered by a platform response.
type Format struct {
	Itag            int
	URL             string
	MimeType        string
	QualityLabel    string
	Height          int
	Bitrate         int
	AudioChannels   int
	SignatureCipher string
}

// HasAudio reports whether the format carries an audio track.
func (f Format) HasAudio() bool {
	return f.AudioChannels > 0 || strings.HasPrefix(f.MimeType, "audio/")
}

// IsMuxed reports whether the format is a single file with audio and video.
func (f Format) IsMuxed() bool {
	return strings.HasPrefix(f.MimeType, "video/") && f.HasAudio()
}

// IsVideoOnly reports whether the format is an adaptive video-only track.
func (f Format) IsVideoOnly() bool {
	return strings.HasPrefix(f.MimeType, "video/") && !f.HasAudio()
}
