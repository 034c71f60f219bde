// Package urlutil holds source-URL classification helpers shared by the
// resolver and the platform extractors.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/steadycast/steadycast/types"
)

// DetectPlatform infers the platform tag from a raw source URL.
func DetectPlatform(rawURL string) types.Platform {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return types.PlatformNone
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	switch {
	case host == "youtu.be" || host == "youtube.com" || host == "m.youtube.com":
		return types.PlatformYouTube
	case host == "rutube.ru" || strings.HasSuffix(host, ".rutube.ru"):
		return types.PlatformRuTube
	}
	return types.PlatformNone
}

// IsDirectManifest reports whether the URL already points at playable media
// (an adaptive manifest or a raw media file) and needs no extraction.
func IsDirectManifest(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, ext := range []string{".m3u8", ".mpd", ".mp4", ".webm", ".ts"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// YouTubeVideoID extracts the video ID from watch, short and embed URLs.
func YouTubeVideoID(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", err
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "youtu.be" {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("empty youtu.be path")
	}
	if host == "youtube.com" || host == "m.youtube.com" {
		if strings.HasPrefix(u.Path, "/watch") {
			if id := u.Query().Get("v"); id != "" {
				return id, nil
			}
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/live/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); id != "" {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("no video id in url %q", videoURL)
}

// RuTubeVideoID extracts the video ID from rutube.ru/video/<id>/ URLs.
func RuTubeVideoID(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if (p == "video" || p == "play" || p == "shorts") && i+1 < len(parts) {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("no video id in url %q", videoURL)
}

// BaseLocator strips the query string (session signatures, expirations and
// similar volatile suffixes) so the same content resolved twice compares
// equal across sessions.
func BaseLocator(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		if i := strings.IndexByte(rawURL, '?'); i >= 0 {
			return rawURL[:i]
		}
		return rawURL
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
