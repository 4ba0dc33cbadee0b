// Package tracker records engagement events: debounced sends to the
// backend, the session's tracked-event set for trigger gating, and the
// offline queue replayed on (re-)initialization.
package tracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"appstorys-engine/internal/observability"
	"appstorys-engine/internal/storage"
)

// systemEvents are high-frequency UI interaction signals. They are sent
// but never enter the tracked-event set and never trigger a refetch.
var systemEvents = map[string]struct{}{
	"viewed":          {},
	"clicked":         {},
	"dismissed":       {},
	"expanded":        {},
	"minimized":       {},
	"completed":       {},
	"closed":          {},
	"submitted":       {},
	"story_completed": {},
	"story_dismissed": {},
	"story_opened":    {},
	"slide_viewed":    {},
}

// IsSystemEvent reports whether name is one of the reserved UI events.
func IsSystemEvent(name string) bool {
	_, ok := systemEvents[name]
	return ok
}

// Sender is the send half of the transport client.
type Sender interface {
	SendEvent(ctx context.Context, campaignID, userID, eventType string, metadata map[string]any) error
}

// Queue is the offline store for events that could not be sent.
type Queue interface {
	EnqueuePendingEvent(ctx context.Context, ev storage.PendingEvent) error
	DrainPendingEvents(ctx context.Context) ([]storage.PendingEvent, error)
	ClearPendingEvents(ctx context.Context) error
}

type pendingSend struct {
	timer    *time.Timer
	metadata map[string]any
}

type Tracker struct {
	mu          sync.Mutex
	sender      Sender
	queue       Queue
	userID      string
	debounce    time.Duration
	initialized bool
	tracked     map[string]struct{}
	pending     map[string]*pendingSend

	// onCustomEvent fires after a custom (non-system) event reaches the
	// backend; the coordinator uses it to refetch the current screen.
	onCustomEvent func(event string)
}

func New(sender Sender, queue Queue, userID string, debounce time.Duration) *Tracker {
	return &Tracker{
		sender:   sender,
		queue:    queue,
		userID:   userID,
		debounce: debounce,
		tracked:  map[string]struct{}{},
		pending:  map[string]*pendingSend{},
	}
}

// OnCustomEvent registers the post-send hook for custom events.
func (t *Tracker) OnCustomEvent(fn func(event string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCustomEvent = fn
}

// Track records an event. Rapid repeats of the same (campaign, event)
// pair coalesce to the latest call before anything hits the network. A
// blank campaign id is a best-effort global event, not an error.
func (t *Tracker) Track(campaignID, eventType string, metadata map[string]any) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		log.Warn().Msg("ignoring event with empty type")
		return
	}
	campaignID = strings.TrimSpace(campaignID)

	t.mu.Lock()
	if !IsSystemEvent(eventType) {
		// custom events unlock trigger-gated campaigns immediately,
		// independent of whether the send succeeds
		t.tracked[eventType] = struct{}{}
	}

	key := campaignID + "\x00" + eventType
	if p, ok := t.pending[key]; ok {
		p.timer.Stop()
	}
	p := &pendingSend{metadata: metadata}
	p.timer = time.AfterFunc(t.debounce, func() {
		t.fire(campaignID, eventType, key)
	})
	t.pending[key] = p
	t.mu.Unlock()
}

func (t *Tracker) fire(campaignID, eventType, key string) {
	t.mu.Lock()
	p, ok := t.pending[key]
	if !ok {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	metadata := p.metadata
	ready := t.initialized
	hook := t.onCustomEvent
	t.mu.Unlock()

	if !ready {
		t.enqueue(campaignID, eventType, metadata)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := t.sender.SendEvent(ctx, campaignID, t.userID, eventType, metadata); err != nil {
		log.Warn().Err(err).Str("campaign_id", campaignID).Str("event", eventType).Msg("event send failed; queueing")
		t.enqueue(campaignID, eventType, metadata)
		return
	}
	observability.EventSends.WithLabelValues("sent").Inc()
	log.Debug().Str("campaign_id", campaignID).Str("event", eventType).Msg("event sent")

	if !IsSystemEvent(eventType) && hook != nil {
		hook(eventType)
	}
}

func (t *Tracker) enqueue(campaignID, eventType string, metadata map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := t.queue.EnqueuePendingEvent(ctx, storage.PendingEvent{
		CampaignID: campaignID,
		UserID:     t.userID,
		EventType:  eventType,
		Metadata:   metadata,
	})
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("offline enqueue failed; event dropped")
		return
	}
	observability.EventSends.WithLabelValues("queued").Inc()
}

// ReplayPending marks the tracker initialized and replays the offline
// queue once. Events that fail again are re-queued for the next pass;
// the queue is always cleared of the drained batch.
func (t *Tracker) ReplayPending(ctx context.Context) error {
	t.mu.Lock()
	t.initialized = true
	t.mu.Unlock()

	events, err := t.queue.DrainPendingEvents(ctx)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	if err := t.queue.ClearPendingEvents(ctx); err != nil {
		return err
	}

	for _, ev := range events {
		if err := t.sender.SendEvent(ctx, ev.CampaignID, ev.UserID, ev.EventType, ev.Metadata); err != nil {
			log.Warn().Err(err).Str("event", ev.EventType).Msg("replay failed; re-queueing")
			t.enqueue(ev.CampaignID, ev.EventType, ev.Metadata)
			continue
		}
		observability.EventSends.WithLabelValues("replayed").Inc()
	}
	log.Info().Int("count", len(events)).Msg("offline event queue replayed")
	return nil
}

// TrackedEvents returns a copy of the session's tracked-event set.
func (t *Tracker) TrackedEvents() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]struct{}, len(t.tracked))
	for k := range t.tracked {
		out[k] = struct{}{}
	}
	return out
}

// AddTrackedEvent records a fired trigger event without a network send.
func (t *Tracker) AddTrackedEvent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[name] = struct{}{}
}

// ClearTrackedEvents resets the session set (SDK reset).
func (t *Tracker) ClearTrackedEvents() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked = map[string]struct{}{}
}

// Stop cancels any pending debounced sends.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, p := range t.pending {
		p.timer.Stop()
		delete(t.pending, key)
	}
}
