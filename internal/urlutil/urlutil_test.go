package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadycast/steadycast/types"
)

func TestDetectPlatform(t *testing.T) {
	cases := map[string]types.Platform{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ": types.PlatformYouTube,
		"https://youtu.be/dQw4w9WgXcQ":                types.PlatformYouTube,
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ":   types.PlatformYouTube,
		"https://rutube.ru/video/abcdef0123456789/":   types.PlatformRuTube,
		"https://video.rutube.ru/something":           types.PlatformRuTube,
		"https://example.com/watch?v=abc":             types.PlatformNone,
		"not a url ::":                                types.PlatformNone,
	}
	for in, want := range cases {
		assert.Equal(t, want, DetectPlatform(in), "input %q", in)
	}
}

func TestIsDirectManifest(t *testing.T) {
	assert.True(t, IsDirectManifest("https://cdn.example/live/master.m3u8"))
	assert.True(t, IsDirectManifest("https://cdn.example/v/stream.MPD"))
	assert.True(t, IsDirectManifest("https://cdn.example/clip.mp4?token=1"))
	assert.False(t, IsDirectManifest("https://www.youtube.com/watch?v=abc"))
	assert.False(t, IsDirectManifest("https://cdn.example/page.html"))
}

func TestYouTubeVideoID(t *testing.T) {
	for _, in := range []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/live/dQw4w9WgXcQ",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=42",
	} {
		id, err := YouTubeVideoID(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, "dQw4w9WgXcQ", id, "input %q", in)
	}

	_, err := YouTubeVideoID("https://www.youtube.com/feed/subscriptions")
	assert.Error(t, err)
}

func TestRuTubeVideoID(t *testing.T) {
	id, err := RuTubeVideoID("https://rutube.ru/video/0123456789abcdef0123456789abcdef/")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", id)

	id, err = RuTubeVideoID("https://rutube.ru/shorts/0123456789abcdef0123456789abcdef/")
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", id)

	_, err = RuTubeVideoID("https://rutube.ru/feeds/")
	assert.Error(t, err)
}

func TestBaseLocator(t *testing.T) {
	assert.Equal(t,
		"https://cdn.example/videoplayback",
		BaseLocator("https://cdn.example/videoplayback?expire=123&sig=abc#frag"))
	assert.Equal(t,
		"https://cdn.example/plain",
		BaseLocator("https://cdn.example/plain"))
}
