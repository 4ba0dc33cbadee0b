// Package engine owns the campaign lifecycle state machine: the current
// screen, its transition token, the dismissed set, and the derived
// active-campaign state. All mutation funnels through one mutex; the
// network fetch is the only suspension point, and every resumption
// re-validates that its transition is still the live one.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"appstorys-engine/internal/cache"
	"appstorys-engine/internal/campaign"
	"appstorys-engine/internal/observability"
	"appstorys-engine/internal/selector"
	"appstorys-engine/internal/tracker"
	"appstorys-engine/internal/transport"
)

var (
	ErrNotInitialized  = errors.New("engine not initialized")
	ErrNoScreenTracked = errors.New("no screen tracked")
	ErrCaptureDisabled = errors.New("screen capture disabled for this app")
)

// PlaybackController is registered by renderers playing time-based
// media (video, PiP) so the lifecycle bridge can pause and resume them.
type PlaybackController interface {
	CampaignID() string
	Pause()
	Resume()
}

type activeRequest struct {
	screen    string
	requestID string
}

// Options wires an Engine. The host application's composition root
// constructs engines explicitly; there is no shared global instance.
type Options struct {
	Client       transport.Client
	Cache        *cache.ScreenCache
	Tracker      *tracker.Tracker
	UserID       string
	FetchTimeout time.Duration

	// TargetResolver reports whether a tooltip target element is
	// currently on screen. Nil keeps all tooltips pending.
	TargetResolver selector.TargetResolver
	// Prefetch receives newly applied campaigns for best-effort media
	// warming. Called on its own goroutine; may be nil.
	Prefetch func([]campaign.Campaign)
	// InvalidateTargets drops any cached element-position data on
	// screen change; may be nil.
	InvalidateTargets func()
}

type Engine struct {
	client       transport.Client
	cache        *cache.ScreenCache
	tracker      *tracker.Tracker
	userID       string
	fetchTimeout time.Duration

	resolver          selector.TargetResolver
	prefetch          func([]campaign.Campaign)
	invalidateTargets func()

	mu              sync.Mutex
	initialized     bool
	currentScreen   string
	transitionToken string
	request         *activeRequest
	campaigns       []campaign.Campaign
	dismissed       map[string]struct{}
	active          selector.ActiveSet
	captureEnabled  bool
	playback        []PlaybackController
}

func New(opts Options) *Engine {
	e := &Engine{
		client:            opts.Client,
		cache:             opts.Cache,
		tracker:           opts.Tracker,
		userID:            opts.UserID,
		fetchTimeout:      opts.FetchTimeout,
		resolver:          opts.TargetResolver,
		prefetch:          opts.Prefetch,
		invalidateTargets: opts.InvalidateTargets,
		dismissed:         map[string]struct{}{},
		active:            selector.ActiveSet{Overlays: map[campaign.Type]campaign.Campaign{}},
	}
	if e.fetchTimeout <= 0 {
		e.fetchTimeout = 10 * time.Second
	}
	// a successfully sent custom event may unlock trigger-gated
	// campaigns the server withheld; refetch the current screen
	e.tracker.OnCustomEvent(e.handleCustomEvent)
	return e
}

// Initialize marks the engine ready and replays any offline events.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	return e.tracker.ReplayPending(ctx)
}

// TrackScreen makes screen the current one and returns the campaign
// list applied for it. The passive fetch path never errors: a
// superseded transition, a failed fetch with no stale fallback, or an
// uninitialized engine all yield an empty result.
func (e *Engine) TrackScreen(ctx context.Context, screen string, attrs map[string]any) []campaign.Campaign {
	screen = strings.TrimSpace(screen)

	e.mu.Lock()
	if !e.initialized || screen == "" {
		e.mu.Unlock()
		return nil
	}

	if e.currentScreen != "" && e.currentScreen != screen {
		old := e.currentScreen
		e.cache.MarkInactive(old)
		// dismissals are scoped to one screen visit
		e.dismissed = map[string]struct{}{}
		if e.invalidateTargets != nil {
			e.invalidateTargets()
		}
		e.screenDisappearedLocked(old)
	}

	token := uuid.NewString()
	e.transitionToken = token
	e.currentScreen = screen
	e.request = nil
	e.cache.MarkActive(screen)

	if cached := e.cache.Get(screen, false); cached != nil {
		observability.CacheLookups.WithLabelValues("hit").Inc()
		log.Debug().Str("screen", screen).Int("campaigns", len(cached)).Msg("screen served from cache")
		e.applyLocked(cached)
		e.mu.Unlock()
		return cached
	}
	observability.CacheLookups.WithLabelValues("miss").Inc()

	reqID := uuid.NewString()
	e.request = &activeRequest{screen: screen, requestID: reqID}
	e.mu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()
	return e.fetchAndApply(fctx, screen, token, reqID, attrs)
}

// fetchAndApply performs the suspension point and the post-fetch
// triple validation: active request pointer, transition token, and
// current screen must all still match before any visible state moves.
func (e *Engine) fetchAndApply(ctx context.Context, screen, token, reqID string, attrs map[string]any) []campaign.Campaign {
	start := time.Now()
	res, err := e.client.FetchCampaigns(ctx, screen, e.userID, attrs)
	observability.FetchLatency.Observe(time.Since(start).Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		// cache the result even when it will be discarded from the
		// visible path, so a later return to this screen reuses it
		e.cache.Store(screen, res.Campaigns)
		if e.currentScreen != screen {
			e.cache.MarkInactive(screen)
		}
	}

	if !e.transitionLiveLocked(screen, token, reqID) {
		observability.FetchesTotal.WithLabelValues("stale_discard").Inc()
		log.Debug().Str("screen", screen).Str("current", e.currentScreen).Msg("stale fetch result discarded")
		return nil
	}
	e.request = nil

	if err != nil {
		observability.FetchesTotal.WithLabelValues("failed").Inc()
		if stale := e.cache.Get(screen, true); stale != nil {
			observability.CacheLookups.WithLabelValues("stale_fallback").Inc()
			log.Warn().Err(err).Str("screen", screen).Msg("fetch failed; applying stale cache")
			e.applyLocked(stale)
			return stale
		}
		log.Warn().Err(err).Str("screen", screen).Msg("fetch failed; no fallback")
		e.applyLocked(nil)
		return nil
	}

	observability.FetchesTotal.WithLabelValues("applied").Inc()
	e.captureEnabled = res.ScreenCaptureEnabled
	e.applyLocked(res.Campaigns)
	if e.prefetch != nil {
		go e.prefetch(res.Campaigns)
	}
	return res.Campaigns
}

func (e *Engine) transitionLiveLocked(screen, token, reqID string) bool {
	return e.request != nil &&
		e.request.screen == screen && e.request.requestID == reqID &&
		e.transitionToken == token &&
		e.currentScreen == screen
}

func (e *Engine) applyLocked(campaigns []campaign.Campaign) {
	e.campaigns = campaigns
	e.recomputeLocked()
}

func (e *Engine) recomputeLocked() {
	e.active = selector.Select(selector.Snapshot{
		Campaigns:     e.campaigns,
		Dismissed:     e.dismissed,
		TrackedEvents: e.tracker.TrackedEvents(),
		CurrentScreen: e.currentScreen,
	}, e.resolver)
}

// screenDisappearedLocked hides overlays for a screen that is going
// away. It re-validates the name so a delayed lifecycle callback for an
// already-superseded screen cannot blank a newer one.
func (e *Engine) screenDisappearedLocked(screen string) {
	if screen != e.currentScreen {
		log.Debug().Str("screen", screen).Str("current", e.currentScreen).Msg("late disappear callback ignored")
		return
	}
	e.active = selector.ActiveSet{Overlays: map[campaign.Type]campaign.Campaign{}}
}

// NotifyScreenDisappeared is the host UI lifecycle hook. Late
// callbacks for screens that are no longer current are discarded.
func (e *Engine) NotifyScreenDisappeared(screen string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.screenDisappearedLocked(screen)
}

// handleCustomEvent refetches the current screen after a custom event
// reached the backend; trigger-gated campaigns may now be eligible.
func (e *Engine) handleCustomEvent(event string) {
	e.mu.Lock()
	if !e.initialized || e.currentScreen == "" {
		e.mu.Unlock()
		return
	}
	screen := e.currentScreen
	token := e.transitionToken
	reqID := uuid.NewString()
	e.request = &activeRequest{screen: screen, requestID: reqID}
	e.mu.Unlock()

	log.Debug().Str("event", event).Str("screen", screen).Msg("custom event tracked; refetching screen")
	ctx, cancel := context.WithTimeout(context.Background(), e.fetchTimeout)
	defer cancel()
	e.fetchAndApply(ctx, screen, token, reqID, nil)
}

// TrackEvent reports an engagement event. Before initialization the
// event lands in the offline queue rather than erroring.
func (e *Engine) TrackEvent(campaignID, eventType string, metadata map[string]any) {
	e.tracker.Track(campaignID, eventType, metadata)
}

// AddTrackedEvent records a trigger event locally and recomputes the
// active set, surfacing gated campaigns without a network round trip.
func (e *Engine) AddTrackedEvent(name string) {
	e.tracker.AddTrackedEvent(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recomputeLocked()
}

// DismissCampaign retires a campaign for the rest of this screen visit.
func (e *Engine) DismissCampaign(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dismissed[id] = struct{}{}
	e.recomputeLocked()
}

// Active returns the current derived presentation state.
func (e *Engine) Active() selector.ActiveSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := selector.ActiveSet{
		Overlays:    make(map[campaign.Type]campaign.Campaign, len(e.active.Overlays)),
		StoryGroups: append([]campaign.StoryGroup(nil), e.active.StoryGroups...),
	}
	for k, v := range e.active.Overlays {
		out.Overlays[k] = v
	}
	if e.active.Tooltip != nil {
		t := *e.active.Tooltip
		out.Tooltip = &t
	}
	return out
}

func (e *Engine) CurrentScreen() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentScreen
}

func (e *Engine) ScreenCaptureEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.captureEnabled
}

// CaptureScreen validates the preconditions of a manual capture and
// returns the screen to capture. Unlike the passive fetch path, this is
// a user-invoked action with a meaningful failure to report.
func (e *Engine) CaptureScreen() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return "", ErrNotInitialized
	}
	if e.currentScreen == "" {
		return "", ErrNoScreenTracked
	}
	if !e.captureEnabled {
		return "", ErrCaptureDisabled
	}
	return e.currentScreen, nil
}

// RegisterPlayback attaches a media controller to lifecycle handling.
func (e *Engine) RegisterPlayback(pc PlaybackController) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.playback = append(e.playback, pc)
}

// HandleAppBackground freezes the cache and pauses time-based
// presentations. The current screen is kept; foreground resumes it.
func (e *Engine) HandleAppBackground() {
	e.mu.Lock()
	e.cache.HandleAppBackground()
	e.cache.CleanupInactiveScreens()
	controllers := append([]PlaybackController(nil), e.playback...)
	e.mu.Unlock()

	for _, pc := range controllers {
		pc.Pause()
	}
	log.Debug().Msg("app backgrounded; cache frozen")
}

// HandleAppForeground optimistically re-activates cached screens and
// resumes media whose campaign is still the active one. A host restored
// onto a different screen should re-call TrackScreen.
func (e *Engine) HandleAppForeground() {
	e.mu.Lock()
	e.cache.HandleAppForeground()
	var resume []PlaybackController
	for _, pc := range e.playback {
		if e.campaignActiveLocked(pc.CampaignID()) {
			resume = append(resume, pc)
		}
	}
	e.mu.Unlock()

	for _, pc := range resume {
		pc.Resume()
	}
	log.Debug().Msg("app foregrounded; cache thawed")
}

func (e *Engine) campaignActiveLocked(id string) bool {
	for _, c := range e.active.Overlays {
		if c.ID == id {
			return true
		}
	}
	return e.active.Tooltip != nil && e.active.Tooltip.Campaign.ID == id
}

// Reset clears all session-scoped state (logout / user switch).
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dismissed = map[string]struct{}{}
	e.tracker.ClearTrackedEvents()
	e.currentScreen = ""
	e.transitionToken = ""
	e.request = nil
	e.campaigns = nil
	e.active = selector.ActiveSet{Overlays: map[campaign.Type]campaign.Campaign{}}
}
