package steadycast

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadycast/steadycast/types"
	"github.com/steadycast/steadycast/youtube/innertube"
)

const watchURL = "https://www.youtube.com/watch?v=e2etestvid1"

// probeListener gives Reachable a live local endpoint.
func probeListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
	return ln.Addr().String()
}

// newPlayerServer simulates the player endpoint: the first persona offers a
// muxed format without an audio track, the second a 360p format with audio.
func newPlayerServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Context struct {
				Client struct {
					ClientName string `json:"clientName"`
				} `json:"client"`
			} `json:"context"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var format map[string]any
		if req.Context.Client.ClientName == "TVHTML5_SIMPLY_EMBEDDED_PLAYER" {
			format = map[string]any{
				"itag":     59,
				"url":      "https://cdn.example/480-silent",
				"mimeType": `video/mp4; codecs="avc1.4d401f"`,
				"height":   480,
			}
		} else {
			format = map[string]any{
				"itag":         18,
				"url":          "https://cdn.example/360-muxed",
				"mimeType":     `video/mp4; codecs="avc1.42001E, mp4a.40.2"`,
				"height":       360,
				"audioQuality": "AUDIO_QUALITY_LOW",
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"playabilityStatus": map[string]any{"status": "OK"},
			"streamingData":     map[string]any{"formats": []map[string]any{format}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openTestSession(t *testing.T, srv *httptest.Server, opts ...func(*Session)) *Session {
	t.Helper()
	s := New().
		WithHTTPClient(srv.Client()).
		WithNetworkProbe(probeListener(t))
	for _, opt := range opts {
		opt(s)
	}
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })
	s.youtube.WithPersonas(innertube.DefaultPersonas()[:2])
	s.youtube.Innertube().WithPlayerURL(srv.URL)
	return s
}

func TestResolvePersonaFallthroughEndToEnd(t *testing.T) {
	srv := newPlayerServer(t)
	s := openTestSession(t, srv)

	res := s.Resolve(context.Background(), watchURL)
	require.True(t, res.OK, "err: %v", res.Err)
	assert.Equal(t, "https://cdn.example/360-muxed", res.Locator.URL)
	assert.Equal(t, "360p progressive", res.QualityLabel)

	entry, ok := s.store.GetResolution(watchURL)
	require.True(t, ok)
	assert.Equal(t, "youtube", entry.Platform)
	assert.Equal(t, "progressive", entry.Quality)
}

func TestResolveDirectURLBypassesExtraction(t *testing.T) {
	srv := newPlayerServer(t)
	s := openTestSession(t, srv)

	res := s.Resolve(context.Background(), "https://cdn.example/live/master.m3u8")
	require.True(t, res.OK)
	assert.Equal(t, "direct", res.QualityLabel)
}

func TestOfflineSessionServesPersistedCache(t *testing.T) {
	dir := t.TempDir()
	srv := newPlayerServer(t)

	s1 := New().
		WithHTTPClient(srv.Client()).
		WithNetworkProbe(probeListener(t)).
		WithCacheDir(dir)
	require.NoError(t, s1.Open())
	s1.youtube.WithPersonas(innertube.DefaultPersonas()[:2])
	s1.youtube.Innertube().WithPlayerURL(srv.URL)

	res := s1.Resolve(context.Background(), watchURL)
	require.True(t, res.OK, "err: %v", res.Err)
	require.NoError(t, s1.Close())

	// Second session cannot reach anything, but the persisted cache serves
	// the locator.
	s2 := New().
		WithCacheDir(dir).
		WithNetworkProbe("127.0.0.1:1")
	require.NoError(t, s2.Open())
	defer s2.Close()

	res = s2.Resolve(context.Background(), watchURL)
	require.True(t, res.OK, "err: %v", res.Err)
	assert.Equal(t, "https://cdn.example/360-muxed", res.Locator.URL)
}

func TestResolveSupersedesInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the POST body so the transport can surface the client-side
		// cancellation to this handler's context.
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case started <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	s := openTestSession(t, srv)

	first := make(chan types.ExtractionResult, 1)
	go func() { first <- s.Resolve(context.Background(), watchURL) }()
	<-started

	// The second call cancels the first outright.
	done := make(chan types.ExtractionResult, 1)
	go func() { done <- s.Resolve(context.Background(), "https://cdn.example/v.mp4") }()

	select {
	case res := <-first:
		assert.False(t, res.OK)
		assert.Error(t, res.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("superseded resolution never returned")
	}
	res := <-done
	require.True(t, res.OK)
}

func TestSourceReference(t *testing.T) {
	s := New().WithQuality(types.Quality720)
	src := s.Source(watchURL)
	assert.Equal(t, types.PlatformYouTube, src.Platform)
	assert.Equal(t, types.Quality720, src.Quality)
	assert.Equal(t, watchURL, src.URL)
}
