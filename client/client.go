// Package client wraps http.Client with the transport tuning, retry policy
// and reachability probe shared by every extractor in the module.
package client

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 3 * time.Second

	defaultProbeAddr    = "1.1.1.1:53"
	defaultProbeTimeout = 1500 * time.Millisecond
)

// newTransport builds the transport every Client rides on. Connection reuse
// matters here: a resolution touches the same CDN hosts several times in a row.
func newTransport(proxyURL string) *http.Transport {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ForceAttemptHTTP2:     true,
		ReadBufferSize:        16 * 1024,
		WriteBufferSize:       16 * 1024,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			tr.Proxy = http.ProxyURL(u)
		}
	}
	return tr
}

// Config holds optional client parameters. Zero values use defaults.
type Config struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	ProxyURL  string
	ProbeAddr string
}

// Client wraps http.Client with retry/backoff, default headers and a cheap
// synchronous reachability probe used to short-circuit to cached data offline.
type Client struct {
	HTTPClient *http.Client
	Retries    int
	UserAgent  string

	probeAddr string
	dial      func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// New creates a new Client with a tuned Transport, default timeout, and retries.
func New() *Client {
	return NewWith(Config{})
}

// NewWith creates a client from cfg, filling unset fields with defaults.
func NewWith(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgentValue
	}
	if cfg.ProbeAddr == "" {
		cfg.ProbeAddr = defaultProbeAddr
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg.ProxyURL),
		},
		Retries:   cfg.Retries,
		UserAgent: cfg.UserAgent,
		probeAddr: cfg.ProbeAddr,
		dial:      net.DialTimeout,
	}
}

// Reachable performs a cheap synchronous connectivity check. It is called
// before each resolution attempt so an offline session falls back to cached
// locators instead of burning the resolution timeout on dead sockets.
func (c *Client) Reachable() bool {
	conn, err := c.dial("tcp", c.probeAddr, defaultProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Get performs a GET request with a simple retry policy for transient errors
// (HTTP 5xx or network failures). It sets a desktop-like User-Agent header.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	ua := c.UserAgent
	if ua == "" {
		ua = userAgentValue
	}
	req.Header.Set("User-Agent", ua)

	retries := c.Retries
	if retries < 1 {
		retries = 1
	}
	var resp *http.Response
	backoff := initialBackoff
	for attempt := 0; attempt < retries; attempt++ {
		resp, err = c.HTTPClient.Do(req)
		if err == nil && resp != nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if attempt == retries-1 {
			// Last attempt: hand the 5xx response back with its body
			// intact so callers can report it.
			break
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return resp, err
}
