// Package steadycast resolves video source references into directly playable
// media locators and keeps playback alive across transient failures.
//
// Features:
//   - Multi-persona extraction against the primary platform's internal API
//   - Signature descrambling with a persisted transform-program cache
//   - Secondary-platform and external-delegate fallback strategies
//   - A playback resilience state machine (stall detection, bounded retry,
//     cache invalidation, resume coordination)
package steadycast

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/client"
	"github.com/steadycast/steadycast/extractor"
	"github.com/steadycast/steadycast/internal/logging"
	"github.com/steadycast/steadycast/internal/urlutil"
	"github.com/steadycast/steadycast/resilience"
	"github.com/steadycast/steadycast/resolver"
	"github.com/steadycast/steadycast/rutube"
	"github.com/steadycast/steadycast/store"
	"github.com/steadycast/steadycast/types"
	"github.com/steadycast/steadycast/youtube"
	"github.com/steadycast/steadycast/youtube/cipher"
)

// Session owns one playback session's resolver, caches and resilience
// controller. Create it with New, configure with the chainable setters, then
// call Open before resolving.
type Session struct {
	log        zerolog.Logger
	httpClient *http.Client
	cacheDir   string
	quality    types.QualityMode
	timeout    time.Duration
	delegate   string
	override   string
	probeAddr  string

	resilienceCfg resilience.Config

	store      *store.Store
	client     *client.Client
	resolver   *resolver.Resolver
	descramble *cipher.Descrambler
	youtube    *youtube.Extractor

	mu             sync.Mutex
	cancelInFlight context.CancelFunc
	inflightSeq    uint64
}

// New creates a Session with default options: progressive quality,
// memory-only caches, silent logging.
func New() *Session {
	return &Session{
		log:     logging.Nop(),
		quality: types.QualityProgressive,
	}
}

// WithLogger sets the session logger. Components derive child loggers from it.
func (s *Session) WithLogger(log zerolog.Logger) *Session {
	s.log = log
	return s
}

// WithHTTPClient sets a custom HTTP client used for all network calls.
func (s *Session) WithHTTPClient(hc *http.Client) *Session {
	s.httpClient = hc
	return s
}

// WithCacheDir enables persistence for the resolution cache, resume store
// and cipher programs under dir. Empty keeps everything in memory.
func (s *Session) WithCacheDir(dir string) *Session {
	s.cacheDir = dir
	return s
}

// WithQuality sets the requested quality mode for subsequent resolutions.
func (s *Session) WithQuality(mode types.QualityMode) *Session {
	s.quality = mode
	return s
}

// WithResolutionTimeout overrides the hard deadline on one resolution.
func (s *Session) WithResolutionTimeout(d time.Duration) *Session {
	s.timeout = d
	return s
}

// WithResilience tunes the playback resilience state machine.
func (s *Session) WithResilience(cfg resilience.Config) *Session {
	s.resilienceCfg = cfg
	return s
}

// WithNetworkProbe overrides the TCP address dialed to judge connectivity
// before each resolution. Useful behind restricted networks where the
// default public resolver is unreachable.
func (s *Session) WithNetworkProbe(addr string) *Session {
	s.probeAddr = addr
	return s
}

// WithDelegateBinary overrides the external extractor binary name.
func (s *Session) WithDelegateBinary(bin string) *Session {
	s.delegate = bin
	return s
}

// WithCipherOverride registers an external signature-transform override
// script. It is reported but not executed.
func (s *Session) WithCipherOverride(path string) *Session {
	s.override = path
	return s
}

// Open builds the store, strategy chains and resolver. It must be called
// once before Resolve or Attach.
func (s *Session) Open() error {
	st, err := store.Open(s.cacheDir)
	if err != nil {
		return err
	}
	s.store = st

	s.client = client.NewWith(client.Config{ProbeAddr: s.probeAddr})
	if s.httpClient != nil {
		s.client.HTTPClient = s.httpClient
	}

	s.descramble = cipher.New(s.client, st, s.log)
	if s.override != "" {
		s.descramble.WithOverride(s.override)
	}

	s.youtube = youtube.New(s.client.HTTPClient, s.descramble, s.log)
	delegate := extractor.NewDelegate(s.delegate, s.log)

	chains := map[types.Platform]*extractor.Chain{
		types.PlatformYouTube: extractor.NewChain(s.log, s.youtube, delegate),
		types.PlatformRuTube:  extractor.NewChain(s.log, rutube.New(s.client, s.log), delegate),
	}

	s.resolver = resolver.New(s.client, st, chains, s.log)
	if s.timeout > 0 {
		s.resolver.WithTimeout(s.timeout)
	}
	return nil
}

// Close releases the session's persisted stores.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.cancelInFlight != nil {
		s.cancelInFlight()
		s.cancelInFlight = nil
	}
	s.mu.Unlock()
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Source builds the immutable source reference for a raw URL under the
// session's current quality mode.
func (s *Session) Source(rawURL string) types.SourceReference {
	return types.SourceReference{
		URL:      rawURL,
		Platform: urlutil.DetectPlatform(rawURL),
		Quality:  s.quality,
	}
}

// Resolve resolves a raw source URL into a playable locator. At most one
// resolution is in flight per session: a new call cancels the previous one
// outright.
func (s *Session) Resolve(ctx context.Context, rawURL string) types.ExtractionResult {
	rctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancelInFlight != nil {
		s.cancelInFlight()
	}
	s.cancelInFlight = cancel
	s.inflightSeq++
	seq := s.inflightSeq
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		if s.inflightSeq == seq {
			s.cancelInFlight = nil
		}
		s.mu.Unlock()
	}()

	return s.resolver.Resolve(rctx, s.Source(rawURL))
}

// Attach wires a playback engine to a new resilience controller backed by
// this session's resolver and resume store, and starts it. The caller owns
// the returned controller's lifecycle.
func (s *Session) Attach(engine resilience.Engine) *resilience.Controller {
	ctrl := resilience.New(engine, s.resolver, s.store, s.resilienceCfg, s.log)
	ctrl.Run()
	return ctrl
}
