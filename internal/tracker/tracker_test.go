package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appstorys-engine/internal/storage"
)

type sentEvent struct {
	CampaignID string
	EventType  string
	Metadata   map[string]any
}

type mockSender struct {
	mu    sync.Mutex
	sent  []sentEvent
	fails int // fail the first N sends
}

func (m *mockSender) SendEvent(_ context.Context, campaignID, _, eventType string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails > 0 {
		m.fails--
		return errors.New("network down")
	}
	m.sent = append(m.sent, sentEvent{CampaignID: campaignID, EventType: eventType, Metadata: metadata})
	return nil
}

func (m *mockSender) sentEvents() []sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEvent(nil), m.sent...)
}

type mockQueue struct {
	mu     sync.Mutex
	events []storage.PendingEvent
	drains int
}

func (m *mockQueue) EnqueuePendingEvent(_ context.Context, ev storage.PendingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockQueue) DrainPendingEvents(_ context.Context) ([]storage.PendingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
	return append([]storage.PendingEvent(nil), m.events...), nil
}

func (m *mockQueue) ClearPendingEvents(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	return nil
}

func (m *mockQueue) depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newReadyTracker(t *testing.T, sender *mockSender, queue *mockQueue) *Tracker {
	t.Helper()
	tr := New(sender, queue, "u1", 10*time.Millisecond)
	require.NoError(t, tr.ReplayPending(context.Background()))
	t.Cleanup(tr.Stop)
	return tr
}

func TestTrack_DebounceCollapsesBurst(t *testing.T) {
	sender := &mockSender{}
	tr := newReadyTracker(t, sender, &mockQueue{})

	tr.Track("camp1", "viewed", map[string]any{"n": 1})
	tr.Track("camp1", "viewed", map[string]any{"n": 2})
	tr.Track("camp1", "viewed", map[string]any{"n": 3})

	time.Sleep(100 * time.Millisecond)

	sent := sender.sentEvents()
	require.Len(t, sent, 1, "burst must collapse to one send")
	assert.Equal(t, 3, sent[0].Metadata["n"], "last call's metadata wins")
}

func TestTrack_DistinctPairsDoNotCollapse(t *testing.T) {
	sender := &mockSender{}
	tr := newReadyTracker(t, sender, &mockQueue{})

	tr.Track("camp1", "viewed", nil)
	tr.Track("camp1", "clicked", nil)
	tr.Track("camp2", "viewed", nil)

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, sender.sentEvents(), 3)
}

func TestTrack_CustomEventEntersTrackedSet(t *testing.T) {
	sender := &mockSender{}
	tr := newReadyTracker(t, sender, &mockQueue{})

	var hooked []string
	var mu sync.Mutex
	tr.OnCustomEvent(func(ev string) {
		mu.Lock()
		hooked = append(hooked, ev)
		mu.Unlock()
	})

	tr.Track("", "signup_done", nil)
	tr.Track("camp1", "viewed", nil)

	// tracked set grows immediately, before the debounce fires
	_, ok := tr.TrackedEvents()["signup_done"]
	assert.True(t, ok)
	_, ok = tr.TrackedEvents()["viewed"]
	assert.False(t, ok, "system events never enter the tracked set")

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"signup_done"}, hooked, "only custom events fire the refetch hook")
}

func TestTrack_BlankCampaignIDIsGlobalEvent(t *testing.T) {
	sender := &mockSender{}
	tr := newReadyTracker(t, sender, &mockQueue{})

	tr.Track("   ", "cart_abandoned", nil)
	time.Sleep(100 * time.Millisecond)

	sent := sender.sentEvents()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].CampaignID)
}

func TestTrack_EmptyEventTypeIgnored(t *testing.T) {
	sender := &mockSender{}
	tr := newReadyTracker(t, sender, &mockQueue{})

	tr.Track("camp1", "  ", nil)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sender.sentEvents())
}

func TestTrack_QueuesBeforeInitialization(t *testing.T) {
	sender := &mockSender{}
	queue := &mockQueue{}
	tr := New(sender, queue, "u1", 10*time.Millisecond)
	defer tr.Stop()

	tr.Track("camp1", "viewed", nil)
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, sender.sentEvents())
	assert.Equal(t, 1, queue.depth())
}

func TestTrack_SendFailureQueues(t *testing.T) {
	sender := &mockSender{fails: 1}
	queue := &mockQueue{}
	tr := newReadyTracker(t, sender, queue)

	tr.Track("camp1", "viewed", nil)
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, sender.sentEvents())
	require.Equal(t, 1, queue.depth())
}

func TestReplayPending_DrainsOnce(t *testing.T) {
	sender := &mockSender{fails: 1}
	queue := &mockQueue{}
	tr := New(sender, queue, "u1", 10*time.Millisecond)
	defer tr.Stop()
	require.NoError(t, tr.ReplayPending(context.Background()))

	// first send fails and lands in the queue
	tr.Track("camp1", "clicked", nil)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, queue.depth())

	// re-initialization replays and empties the queue
	drainsBefore := queue.drains
	require.NoError(t, tr.ReplayPending(context.Background()))
	assert.Equal(t, drainsBefore+1, queue.drains)
	assert.Equal(t, 0, queue.depth())

	sent := sender.sentEvents()
	require.Len(t, sent, 1)
	assert.Equal(t, "clicked", sent[0].EventType)
}

func TestReplayPending_FailedReplayRequeues(t *testing.T) {
	sender := &mockSender{fails: 2}
	queue := &mockQueue{}
	tr := New(sender, queue, "u1", 10*time.Millisecond)
	defer tr.Stop()
	require.NoError(t, tr.ReplayPending(context.Background()))

	tr.Track("camp1", "clicked", nil)
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, queue.depth())

	// replay fails once more; the event goes back for the next pass
	require.NoError(t, tr.ReplayPending(context.Background()))
	assert.Equal(t, 1, queue.depth())

	require.NoError(t, tr.ReplayPending(context.Background()))
	assert.Equal(t, 0, queue.depth())
	assert.Len(t, sender.sentEvents(), 1)
}

func TestClearTrackedEvents(t *testing.T) {
	tr := newReadyTracker(t, &mockSender{}, &mockQueue{})
	tr.AddTrackedEvent("signup_done")
	require.Len(t, tr.TrackedEvents(), 1)

	tr.ClearTrackedEvents()
	assert.Empty(t, tr.TrackedEvents())
}
