package innertube

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steadycast/steadycast/errs"
)

func okResponse(videoID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"playabilityStatus": map[string]any{"status": "OK"},
		"videoDetails":      map[string]any{"videoId": videoID, "title": "clip"},
		"streamingData": map[string]any{
			"formats": []map[string]any{
				{"itag": 18, "url": "https://cdn/v", "mimeType": `video/mp4; codecs="avc1, mp4a"`, "qualityLabel": "360p", "audioQuality": "AUDIO_QUALITY_LOW"},
			},
		},
	})
	return body
}

func TestGetPlayerResponseRequestShape(t *testing.T) {
	persona := DefaultPersonas()[0]

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, persona.APIKey, r.URL.Query().Get("key"))
		assert.Equal(t, persona.UserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, persona.ClientID, r.Header.Get("X-YouTube-Client-Name"))
		assert.Equal(t, persona.ClientVersion, r.Header.Get("X-YouTube-Client-Version"))

		var req struct {
			Context struct {
				Client struct {
					ClientName    string `json:"clientName"`
					ClientVersion string `json:"clientVersion"`
					HL            string `json:"hl"`
					GL            string `json:"gl"`
				} `json:"client"`
				ThirdParty struct {
					EmbedURL string `json:"embedUrl"`
				} `json:"thirdParty"`
			} `json:"context"`
			VideoID        string `json:"videoId"`
			ContentCheckOk bool   `json:"contentCheckOk"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "TVHTML5_SIMPLY_EMBEDDED_PLAYER", req.Context.Client.ClientName)
		assert.Equal(t, "en", req.Context.Client.HL)
		assert.Equal(t, "US", req.Context.Client.GL)
		assert.Equal(t, persona.EmbedURL, req.Context.ThirdParty.EmbedURL)
		assert.Equal(t, "abc123", req.VideoID)
		assert.True(t, req.ContentCheckOk)

		_, _ = w.Write(okResponse("abc123"))
	}))
	defer srv.Close()

	c := New(srv.Client(), zerolog.Nop()).WithPlayerURL(srv.URL)
	pr, err := c.GetPlayerResponse(context.Background(), "abc123", persona)
	require.NoError(t, err)
	assert.True(t, pr.IsOK())
	assert.Equal(t, "abc123", pr.VideoDetails.VideoID)
	require.Len(t, pr.StreamingData.Formats, 1)
	assert.Equal(t, 18, pr.StreamingData.Formats[0].Itag)
}

func TestGetPlayerResponseAndroidFields(t *testing.T) {
	persona := DefaultPersonas()[1]
	require.Equal(t, "android-vr", persona.Name)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Context struct {
				Client struct {
					AndroidSDKVersion int    `json:"androidSdkVersion"`
					OSName            string `json:"osName"`
				} `json:"client"`
			} `json:"context"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 32, req.Context.Client.AndroidSDKVersion)
		assert.Equal(t, "Android", req.Context.Client.OSName)
		_, _ = w.Write(okResponse("abc123"))
	}))
	defer srv.Close()

	c := New(srv.Client(), zerolog.Nop()).WithPlayerURL(srv.URL)
	_, err := c.GetPlayerResponse(context.Background(), "abc123", persona)
	require.NoError(t, err)
}

func TestGetPlayerResponseGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write(okResponse("abc123"))
		_ = gz.Close()
	}))
	defer srv.Close()

	c := New(srv.Client(), zerolog.Nop()).WithPlayerURL(srv.URL)
	pr, err := c.GetPlayerResponse(context.Background(), "abc123", DefaultPersonas()[2])
	require.NoError(t, err)
	assert.True(t, pr.IsOK())
}

func TestGetPlayerResponseBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		_, _ = bw.Write(okResponse("abc123"))
		_ = bw.Close()
	}))
	defer srv.Close()

	c := New(srv.Client(), zerolog.Nop()).WithPlayerURL(srv.URL)
	pr, err := c.GetPlayerResponse(context.Background(), "abc123", DefaultPersonas()[2])
	require.NoError(t, err)
	assert.True(t, pr.IsOK())
}

func TestGetPlayerResponseHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.Client(), zerolog.Nop()).WithPlayerURL(srv.URL)
	_, err := c.GetPlayerResponse(context.Background(), "abc123", DefaultPersonas()[0])
	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
}

func TestGetPlayerResponseEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "  ")
	}))
	defer srv.Close()

	c := New(srv.Client(), zerolog.Nop()).WithPlayerURL(srv.URL)
	_, err := c.GetPlayerResponse(context.Background(), "abc123", DefaultPersonas()[0])
	assert.ErrorIs(t, err, errs.ErrEmptyResponse)
}

func TestDefaultPersonasOrder(t *testing.T) {
	ps := DefaultPersonas()
	require.Len(t, ps, 3)
	assert.Equal(t, "embedded-tv", ps[0].Name)
	assert.Equal(t, "android-vr", ps[1].Name)
	assert.Equal(t, "web", ps[2].Name)
	for _, p := range ps {
		assert.NotEmpty(t, p.APIKey, p.Name)
		assert.NotEmpty(t, p.UserAgent, p.Name)
	}
}
