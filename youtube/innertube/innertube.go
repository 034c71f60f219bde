// Package innertube talks to the primary platform's internal player API,
// shaping each request as one of several device personas.
package innertube

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/errs"
)

const (
	defaultPlayerURL      = "https://www.youtube.com/youtubei/v1/player"
	headerContentTypeJSON = "application/json"
	defaultLocale         = "en"
	defaultRegion         = "US"
)

// Client posts persona-shaped requests to the internal player endpoint.
type Client struct {
	HTTPClient *http.Client
	playerURL  string
	locale     string
	region     string
	log        zerolog.Logger
}

// New creates an innertube client. A nil httpClient falls back to a tuned
// default transport.
func New(httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 10 * time.Second,
			},
			Timeout: 30 * time.Second,
		}
	}
	return &Client{
		HTTPClient: httpClient,
		playerURL:  defaultPlayerURL,
		locale:     defaultLocale,
		region:     defaultRegion,
		log:        log.With().Str("component", "innertube").Logger(),
	}
}

// WithPlayerURL overrides the player endpoint, used by tests.
func (c *Client) WithPlayerURL(url string) *Client {
	if strings.TrimSpace(url) != "" {
		c.playerURL = url
	}
	return c
}

// WithLocale overrides the hl/gl pair sent in the client context.
func (c *Client) WithLocale(hl, gl string) *Client {
	if hl != "" {
		c.locale = hl
	}
	if gl != "" {
		c.region = gl
	}
	return c
}

// PlayerResponse is the subset of the player endpoint response the resolver
// inspects.
type PlayerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	StreamingData struct {
		Formats         []FormatData `json:"formats"`
		AdaptiveFormats []FormatData `json:"adaptiveFormats"`
		HLSManifestURL  string       `json:"hlsManifestUrl"`
	} `json:"streamingData"`
	VideoDetails struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
	} `json:"videoDetails"`
}

// FormatData is one format entry as the platform serves it. URL may be
// withheld behind SignatureCipher.
type FormatData struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	QualityLabel    string `json:"qualityLabel"`
	AudioChannels   int    `json:"audioChannels"`
	AudioQuality    string `json:"audioQuality"`
	ContentLength   string `json:"contentLength"`
	SignatureCipher string `json:"signatureCipher"`
}

// IsOK reports whether the platform considers the video playable.
func (r *PlayerResponse) IsOK() bool {
	return strings.EqualFold(r.PlayabilityStatus.Status, "OK")
}

// GetPlayerResponse fetches video data for videoID using the given persona's
// request shape.
func (c *Client) GetPlayerResponse(ctx context.Context, videoID string, p Persona) (*PlayerResponse, error) {
	clientMap := map[string]any{
		"clientName":    p.ClientName,
		"clientVersion": p.ClientVersion,
		"hl":            c.locale,
		"gl":            c.region,
	}
	if p.SDKVersion > 0 {
		clientMap["androidSdkVersion"] = p.SDKVersion
	}
	if p.OSName != "" {
		clientMap["osName"] = p.OSName
		clientMap["osVersion"] = p.OSVersion
	}
	if p.UserAgent != "" {
		clientMap["userAgent"] = p.UserAgent
	}

	contextMap := map[string]any{"client": clientMap}
	if p.EmbedURL != "" {
		contextMap["thirdParty"] = map[string]any{"embedUrl": p.EmbedURL}
	}

	requestBody, err := json.Marshal(map[string]any{
		"context": contextMap,
		"videoId": videoID,
		"playbackContext": map[string]any{
			"contentPlaybackContext": map[string]any{
				"html5Preference": "HTML5_PREF_WANTS",
			},
		},
		"contentCheckOk": true,
		"racyCheckOk":    true,
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.playerURL + "?key=" + p.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", headerContentTypeJSON)
	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Origin", "https://www.youtube.com")
	req.Header.Set("Referer", "https://www.youtube.com/")
	if p.ClientID != "" {
		req.Header.Set("X-YouTube-Client-Name", p.ClientID)
	}
	req.Header.Set("X-YouTube-Client-Version", p.ClientVersion)

	c.log.Debug().Str("persona", p.Name).Str("videoId", videoID).Msg("player request")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &errs.HTTPError{Status: resp.StatusCode, URL: c.playerURL}
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errs.ErrEmptyResponse
	}

	var pr PlayerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrEmptyResponse, err)
	}
	return &pr, nil
}

// readBody decompresses the response according to Content-Encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "bzip2":
		reader = bzip2.NewReader(resp.Body)
	}
	return io.ReadAll(reader)
}
