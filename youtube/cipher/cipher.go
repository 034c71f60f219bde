// Package cipher reverses the obfuscated signature parameter that withholds
// playback URLs on the primary platform.
//
// Resolution order: a cached transform program younger than ProgramTTL, then
// fresh derivation from the current player script (structural pattern
// matching), then full-JS execution as a last resort. A user-supplied
// external transform override is logged as present but not executed.
package cipher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/client"
	"github.com/steadycast/steadycast/errs"
)

const (
	ytBase = "https://www.youtube.com"

	// defaultSigParam is the query parameter the decrypted signature is
	// attached under when the cipher bundle names none.
	defaultSigParam = "signature"

	playerJSTTL = 10 * time.Minute
)

var playerJSURLRegex = regexp.MustCompile(`"jsUrl":"([^"]+)"`)

// Descrambler derives and applies signature transform programs.
type Descrambler struct {
	client *client.Client
	log    zerolog.Logger
	cache  ProgramCache

	// overridePath names a user-supplied external transform script. It is
	// reported in logs so operators can see it was picked up, but it is not
	// executed; running untrusted JS against playback URLs is a recorded
	// limitation, not a silent trust decision.
	overridePath string

	now func() time.Time

	mu     sync.Mutex
	jsBody []byte
	jsURL  string
	jsExp  time.Time
}

// New creates a Descrambler. cache may be nil, which disables program reuse
// across sessions.
func New(hc *client.Client, cache ProgramCache, log zerolog.Logger) *Descrambler {
	if hc == nil {
		hc = client.New()
	}
	return &Descrambler{
		client: hc,
		log:    log.With().Str("component", "cipher").Logger(),
		cache:  cache,
		now:    time.Now,
	}
}

// WithOverride registers an external transform override script path.
func (d *Descrambler) WithOverride(path string) *Descrambler {
	d.overridePath = path
	return d
}

// FetchPlayerJSURL finds the player script URL by requesting the video page
// and scraping its jsUrl field.
func (d *Descrambler) FetchPlayerJSURL(ctx context.Context, videoURL string) (string, error) {
	resp, err := d.client.Get(ctx, videoURL)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	m := playerJSURLRegex.FindSubmatch(body)
	if len(m) < 2 || len(m[1]) == 0 {
		return "", fmt.Errorf("player js url not found in video page")
	}
	jsPath := strings.ReplaceAll(string(m[1]), `\/`, `/`)
	if strings.HasPrefix(jsPath, "http") {
		return jsPath, nil
	}
	return ytBase + jsPath, nil
}

// Resolve parses a signatureCipher bundle, descrambles the signature and
// returns the playable URL with the signature attached under the named
// parameter.
func (d *Descrambler) Resolve(ctx context.Context, signatureCipher, playerJSURL string) (string, error) {
	parsed, err := url.ParseQuery(signatureCipher)
	if err != nil {
		return "", fmt.Errorf("%w: parse cipher bundle: %v", errs.ErrCipherDecryptFailed, err)
	}
	sig := parsed.Get("s")
	cipherURL := parsed.Get("url")
	sp := parsed.Get("sp")
	if sp == "" {
		sp = defaultSigParam
	}
	if sig == "" || cipherURL == "" {
		return "", fmt.Errorf("%w: cipher bundle missing s or url", errs.ErrCipherDecryptFailed)
	}

	plain, err := d.Descramble(ctx, sig, playerJSURL)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(cipherURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse cipher url: %v", errs.ErrCipherDecryptFailed, err)
	}
	q := u.Query()
	q.Set(sp, plain)
	if nval := q.Get("n"); nval != "" {
		if nOut, nErr := d.transformN(ctx, nval, playerJSURL); nErr == nil && nOut != "" {
			q.Set("n", nOut)
		}
	}
	if q.Get("ratebypass") == "" {
		q.Set("ratebypass", "yes")
	}
	if q.Get("alr") == "" {
		q.Set("alr", "yes")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Descramble recovers the plaintext signature from the scrambled one.
func (d *Descrambler) Descramble(ctx context.Context, signature, playerJSURL string) (string, error) {
	if d.overridePath != "" {
		d.log.Warn().Str("override", d.overridePath).
			Msg("external transform override configured; not executed")
	}

	program, err := d.programFor(ctx, playerJSURL)
	if err == nil {
		return program.Apply(signature), nil
	}
	d.log.Debug().Err(err).Msg("program derivation failed, trying js execution")

	playerJS, jsErr := d.playerJS(ctx, playerJSURL)
	if jsErr != nil {
		return "", err
	}
	out, execErr := execDescramble(string(playerJS), signature)
	if execErr != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrCipherDecryptFailed, err)
	}
	return out, nil
}

// programFor returns a usable transform program for the given player script,
// from cache when fresh enough, otherwise freshly derived and cached.
func (d *Descrambler) programFor(ctx context.Context, playerJSURL string) (Program, error) {
	now := d.now()
	if d.cache != nil {
		if p, ok := d.cache.GetProgram(playerJSURL); ok && !p.Expired(now) {
			return p, nil
		}
	}

	playerJS, err := d.playerJS(ctx, playerJSURL)
	if err != nil {
		return Program{}, fmt.Errorf("%w: fetch player js: %v", errs.ErrCipherDecryptFailed, err)
	}
	p, err := deriveProgram(string(playerJS), playerJSURL, now)
	if err != nil {
		return Program{}, err
	}
	d.log.Info().Str("program", p.String()).Str("playerJs", playerJSURL).Msg("derived transform program")
	if d.cache != nil {
		d.cache.PutProgram(playerJSURL, p)
	}
	return p, nil
}

// playerJS downloads the player script, with a short-lived in-memory cache so
// one deployment is fetched once per batch of formats.
func (d *Descrambler) playerJS(ctx context.Context, playerJSURL string) ([]byte, error) {
	d.mu.Lock()
	if d.jsURL == playerJSURL && d.jsBody != nil && d.now().Before(d.jsExp) {
		body := d.jsBody
		d.mu.Unlock()
		return body, nil
	}
	d.mu.Unlock()

	resp, err := d.client.Get(ctx, playerJSURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.HTTPError{Status: resp.StatusCode, URL: playerJSURL}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.jsBody = body
	d.jsURL = playerJSURL
	d.jsExp = d.now().Add(playerJSTTL)
	d.mu.Unlock()
	return body, nil
}
