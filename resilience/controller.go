// Package resilience keeps playback alive: it observes playback-engine
// callbacks, detects stalls, and drives bounded retry with backoff, cache
// invalidation and resume coordination.
//
// All state transitions execute on one event-loop goroutine. Engine
// callbacks, the stall ticker and backoff timers only post events into the
// loop, so state mutation is single-writer and needs no locks beyond the
// snapshot getters.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/steadycast/steadycast/errs"
	"github.com/steadycast/steadycast/internal/urlutil"
	"github.com/steadycast/steadycast/store"
	"github.com/steadycast/steadycast/types"
)

// Engine is the playback engine as seen from the controller. Implementations
// wrap the real media player; the engine itself is outside this module.
type Engine interface {
	Load(loc types.Locator)
	Seek(pos time.Duration)
	Reinitialize()
	Position() time.Duration
}

// SourceResolver is the slice of the resolver the controller needs.
type SourceResolver interface {
	Resolve(ctx context.Context, src types.SourceReference) types.ExtractionResult
	Invalidate(source string)
}

// ResumeStore persists and offers last playback positions.
type ResumeStore interface {
	SaveResume(rec store.ResumeRecord) error
	OfferResume(baseLocator string, randomSeek bool) (store.ResumeRecord, bool)
}

// Config tunes the state machine. Zero values use defaults.
type Config struct {
	RetryCap     int           // maximum automatic restarts per stall episode
	StallTimeout time.Duration // ready-without-playing window before Stalled
	TickInterval time.Duration // stall check period
	BackoffBase  time.Duration // backoff unit; delay is base * 2^(retry-1)

	ResumeEnabled bool
	RandomSeek    bool

	// OnFailed is invoked once when the retry cap is reached. Diagnostics
	// only; continuity beyond this point is the caller's policy.
	OnFailed func(error)
}

const (
	defaultRetryCap     = 3
	defaultStallTimeout = 15 * time.Second
	defaultTickInterval = 1 * time.Second
	defaultBackoffBase  = 1 * time.Second
)

func (c Config) withDefaults() Config {
	if c.RetryCap <= 0 {
		c.RetryCap = defaultRetryCap
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = defaultStallTimeout
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	return c
}

type event func(*Controller)

// Controller is the playback resilience state machine. One controller serves
// one playback session at a time; a source change resets it completely.
type Controller struct {
	cfg      Config
	engine   Engine
	resolver SourceResolver
	resume   ResumeStore
	log      zerolog.Logger

	events    chan event
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Loop-owned state. The mutex only covers the getter snapshots.
	mu            sync.Mutex
	state         State
	src           types.SourceReference
	locator       types.Locator
	retryCount    int
	isRetrying    bool
	playing       bool
	stallStart    time.Time
	readySince    time.Time
	restarts      int
	cancelResolve context.CancelFunc
	retryTimer    *time.Timer
}

// New builds a controller. Call Run to start its event loop and Close to
// stop it.
func New(engine Engine, res SourceResolver, resume ResumeStore, cfg Config, log zerolog.Logger) *Controller {
	return &Controller{
		cfg:      cfg.withDefaults(),
		engine:   engine,
		resolver: res,
		resume:   resume,
		log:      log.With().Str("component", "resilience").Logger(),
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		state:    StateIdle,
	}
}

// Run starts the event loop and the periodic stall check. It returns
// immediately.
func (c *Controller) Run() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case ev := <-c.events:
				ev(c)
			case <-ticker.C:
				c.checkStall()
			}
		}
	}()
}

// Close stops the event loop, cancels any in-flight resolution and pending
// retry timer. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancelPendingWork()
		c.wg.Wait()
	})
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Restarts returns how many automatic restarts the session has performed.
func (c *Controller) Restarts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restarts
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	old := c.state
	c.state = s
	c.mu.Unlock()
	if old != s {
		c.log.Debug().Str("from", old.String()).Str("to", s.String()).Msg("state transition")
	}
}

// --- commands ---

// SetSource hands a new source to the controller: any in-flight resolution
// is cancelled outright, all resilience state resets, and a fresh resolution
// begins.
func (c *Controller) SetSource(src types.SourceReference) {
	c.post(func(c *Controller) {
		c.cancelPendingWork()
		c.mu.Lock()
		c.src = src
		c.locator = types.Locator{}
		c.retryCount = 0
		c.isRetrying = false
		c.playing = false
		c.stallStart = time.Time{}
		c.mu.Unlock()
		c.setState(StateLoading)
		c.startResolve(false)
	})
}

// Stop performs an orderly stop, persisting the resume position while a
// resolved locator is active. It blocks until the stop has been processed so
// a Close right after it cannot skip the resume save.
func (c *Controller) Stop() {
	stopped := make(chan struct{})
	c.post(func(c *Controller) {
		defer close(stopped)
		c.cancelPendingWork()
		if !c.locator.IsZero() && c.resume != nil {
			rec := store.ResumeRecord{
				BaseLocator: urlutil.BaseLocator(c.locator.URL),
				Position:    c.engine.Position(),
				SavedAt:     time.Now(),
			}
			if err := c.resume.SaveResume(rec); err != nil {
				c.log.Warn().Err(err).Msg("resume save failed")
			}
		}
		c.setState(StateIdle)
	})
	select {
	case <-stopped:
	case <-c.done:
	}
}

// --- engine callbacks ---

// OnReady is called when the engine signals its first ready/frame event.
func (c *Controller) OnReady() {
	c.post(func(c *Controller) {
		c.mu.Lock()
		c.isRetrying = false
		c.stallStart = time.Time{}
		c.readySince = time.Now()
		c.mu.Unlock()
		c.setState(StateReady)
	})
}

// OnPlayingChanged is called with the engine's actively-playing signal.
// Confirmed playback resets the retry budget.
func (c *Controller) OnPlayingChanged(playing bool) {
	c.post(func(c *Controller) {
		c.mu.Lock()
		c.playing = playing
		if playing {
			c.retryCount = 0
			c.isRetrying = false
			c.stallStart = time.Time{}
		} else {
			c.readySince = time.Now()
		}
		c.mu.Unlock()
	})
}

// OnStalledOrEnded is called when the engine reports the stream stalled or
// ended unexpectedly.
func (c *Controller) OnStalledOrEnded() {
	c.post(func(c *Controller) {
		if c.state != StateReady && c.state != StateLoading {
			return
		}
		c.enterStalled()
	})
}

// OnError routes any engine error into the stall/retry machinery. Errors
// never escape to terminate the playback surface.
func (c *Controller) OnError(err error) {
	c.post(func(c *Controller) {
		c.log.Warn().Err(err).Msg("engine error")
		if c.state == StateFailed || c.state == StateIdle {
			return
		}
		c.enterStalled()
	})
}

// --- internals (loop goroutine only) ---

func (c *Controller) cancelPendingWork() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelResolve != nil {
		c.cancelResolve()
		c.cancelResolve = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Controller) checkStall() {
	c.mu.Lock()
	ready := c.state == StateReady
	stalled := ready && !c.playing && !c.readySince.IsZero() && time.Since(c.readySince) > c.cfg.StallTimeout
	c.mu.Unlock()
	if stalled {
		c.enterStalled()
	}
}

func (c *Controller) enterStalled() {
	c.mu.Lock()
	if c.stallStart.IsZero() {
		c.stallStart = time.Now()
	}
	c.mu.Unlock()
	c.setState(StateStalled)
	c.log.Warn().Err(errs.ErrStallTimeout).Str("source", c.src.URL).Msg("playback stalled")
	c.tryRetry()
}

// tryRetry guards the Stalled -> Retrying transition: no overlapping
// retries, no retries past the cap.
func (c *Controller) tryRetry() {
	c.mu.Lock()
	if c.isRetrying {
		c.mu.Unlock()
		return
	}
	if c.retryCount >= c.cfg.RetryCap {
		c.mu.Unlock()
		c.setState(StateFailed)
		c.log.Error().Err(errs.ErrRetryLimitReached).Int("cap", c.cfg.RetryCap).Msg("automatic recovery stopped")
		if c.cfg.OnFailed != nil {
			c.cfg.OnFailed(errs.ErrRetryLimitReached)
		}
		return
	}
	c.retryCount++
	c.isRetrying = true
	attempt := c.retryCount
	c.mu.Unlock()

	c.setState(StateRetrying)

	// Only the first retry refreshes the resolution: the usual failure mode
	// is an expired locator, and one re-resolve covers it. Later retries
	// reuse the locator unchanged.
	if attempt == 1 {
		c.resolver.Invalidate(c.src.URL)
		c.startResolve(true)
	}

	delay := c.cfg.BackoffBase << (attempt - 1)
	c.log.Info().Int("attempt", attempt).Dur("backoff", delay).Msg("restart scheduled")
	t := time.AfterFunc(delay, func() {
		c.post(func(c *Controller) { c.restart() })
	})
	c.mu.Lock()
	c.retryTimer = t
	c.mu.Unlock()
}

// restart reinitializes the engine against the current (possibly refreshed)
// locator after the backoff delay. The retry-in-progress flag drops here, not
// on OnReady: an engine that errors out again before ever reaching Ready must
// still be able to take the next retry (or exhaust the cap).
func (c *Controller) restart() {
	c.mu.Lock()
	c.isRetrying = false
	c.mu.Unlock()
	if c.state != StateRetrying {
		return
	}
	c.mu.Lock()
	loc := c.locator
	c.restarts++
	c.mu.Unlock()

	c.setState(StateLoading)
	c.engine.Reinitialize()
	if !loc.IsZero() {
		c.engine.Load(loc)
	}
}

// startResolve runs one resolution in a cancellable background scope and
// posts the outcome back into the loop. refresh marks re-resolutions taken
// during a retry, which must not reload the engine themselves; the backoff
// timer does that.
func (c *Controller) startResolve(refresh bool) {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancelResolve = cancel
	src := c.src
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := c.resolver.Resolve(ctx, src)
		if ctx.Err() != nil {
			return // cancelled: no state writes, no callbacks
		}
		c.post(func(c *Controller) { c.onResolved(res, refresh) })
	}()
}

func (c *Controller) onResolved(res types.ExtractionResult, refresh bool) {
	c.mu.Lock()
	c.cancelResolve = nil
	c.mu.Unlock()
	if !res.OK {
		c.log.Warn().Err(res.Err).Str("source", c.src.URL).Msg("resolution failed")
		if refresh {
			return // retry timer will restart with the previous locator
		}
		c.enterStalled()
		return
	}

	c.mu.Lock()
	c.locator = res.Locator
	c.mu.Unlock()
	c.log.Info().Str("quality", res.QualityLabel).Msg("source resolved")

	if refresh {
		return
	}

	c.engine.Load(res.Locator)
	c.offerResume(res.Locator)
}

// offerResume seeks to a saved position when the resume store still holds a
// qualifying record for this content.
func (c *Controller) offerResume(loc types.Locator) {
	if !c.cfg.ResumeEnabled || c.resume == nil {
		return
	}
	base := urlutil.BaseLocator(loc.URL)
	rec, ok := c.resume.OfferResume(base, c.cfg.RandomSeek)
	if !ok {
		return
	}
	c.log.Info().Dur("position", rec.Position).Msg("resuming saved position")
	c.engine.Seek(rec.Position)
}
