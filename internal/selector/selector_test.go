package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appstorys-engine/internal/campaign"
)

func set(names ...string) map[string]struct{} {
	s := map[string]struct{}{}
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func intp(v int) *int { return &v }

func TestSelect_SingleWinner(t *testing.T) {
	tests := []struct {
		name      string
		campaigns []campaign.Campaign
		dismissed map[string]struct{}
		tracked   map[string]struct{}
		wantID    string
		wantNone  bool
	}{
		{
			name: "first in server order wins",
			campaigns: []campaign.Campaign{
				{ID: "b1", Type: campaign.TypeBanner},
				{ID: "b2", Type: campaign.TypeBanner},
			},
			wantID: "b1",
		},
		{
			name: "declared priority beats order",
			campaigns: []campaign.Campaign{
				{ID: "b1", Type: campaign.TypeBanner, Priority: intp(5)},
				{ID: "b2", Type: campaign.TypeBanner, Priority: intp(1)},
				{ID: "b3", Type: campaign.TypeBanner},
			},
			wantID: "b2",
		},
		{
			name: "dismissed winner falls through to next",
			campaigns: []campaign.Campaign{
				{ID: "b1", Type: campaign.TypeBanner},
				{ID: "b2", Type: campaign.TypeBanner},
			},
			dismissed: set("b1"),
			wantID:    "b2",
		},
		{
			name: "trigger gated until event fires",
			campaigns: []campaign.Campaign{
				{ID: "b1", Type: campaign.TypeBanner, DisplayTrigger: true, TriggerEvent: "signup_done"},
			},
			wantNone: true,
		},
		{
			name: "trigger gate opens after event",
			campaigns: []campaign.Campaign{
				{ID: "b1", Type: campaign.TypeBanner, DisplayTrigger: true, TriggerEvent: "signup_done"},
			},
			tracked: set("signup_done"),
			wantID:  "b1",
		},
		{
			name: "all dismissed yields none",
			campaigns: []campaign.Campaign{
				{ID: "b1", Type: campaign.TypeBanner},
			},
			dismissed: set("b1"),
			wantNone:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{
				Campaigns:     tt.campaigns,
				Dismissed:     tt.dismissed,
				TrackedEvents: tt.tracked,
				CurrentScreen: "Home",
			}
			got := Select(snap, nil)
			winner, ok := got.Overlays[campaign.TypeBanner]
			if tt.wantNone {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, winner.ID)
		})
	}
}

func TestSelect_TriggerGatingWithoutRefetch(t *testing.T) {
	// The same campaign list must surface the gated campaign once the
	// event is in the tracked set; no new fetch is involved.
	campaigns := []campaign.Campaign{
		{ID: "m1", Type: campaign.TypeModal, TriggerEvent: "signup_done"},
	}

	before := Select(Snapshot{Campaigns: campaigns, CurrentScreen: "Home"}, nil)
	_, ok := before.Overlays[campaign.TypeModal]
	assert.False(t, ok)

	after := Select(Snapshot{
		Campaigns:     campaigns,
		TrackedEvents: set("signup_done"),
		CurrentScreen: "Home",
	}, nil)
	winner, ok := after.Overlays[campaign.TypeModal]
	require.True(t, ok)
	assert.Equal(t, "m1", winner.ID)
}

func TestSelect_StoriesRail(t *testing.T) {
	campaigns := []campaign.Campaign{
		{
			ID: "s1", Type: campaign.TypeStories, Screen: "home",
			Details: campaign.StoriesDetails{Groups: []campaign.StoryGroup{{ID: "g1"}, {ID: "g2"}}},
		},
		{
			ID: "s2", Type: campaign.TypeStories,
			Details: campaign.StoriesDetails{Groups: []campaign.StoryGroup{{ID: "g3"}}},
		},
		{
			ID: "s3", Type: campaign.TypeStories, Screen: "Checkout",
			Details: campaign.StoriesDetails{Groups: []campaign.StoryGroup{{ID: "g4"}}},
		},
	}

	got := Select(Snapshot{Campaigns: campaigns, CurrentScreen: "Home"}, nil)

	// s1 matches case-insensitively, s2 is unscoped, s3 is for another
	// screen. Multiple story campaigns contribute at once.
	require.Len(t, got.StoryGroups, 3)
	assert.Equal(t, "g1", got.StoryGroups[0].ID)
	assert.Equal(t, "g3", got.StoryGroups[2].ID)
}

func TestSelect_TooltipTargetResolution(t *testing.T) {
	campaigns := []campaign.Campaign{
		{
			ID: "t1", Type: campaign.TypeTooltip, Screen: "Home",
			Details: campaign.TooltipDetails{Tooltips: []campaign.TooltipSpec{
				{Target: "cart_button"},
				{Target: "search_bar"},
			}},
		},
	}
	snap := Snapshot{Campaigns: campaigns, CurrentScreen: "home"}

	t.Run("all targets resolve", func(t *testing.T) {
		got := Select(snap, func(string) bool { return true })
		require.NotNil(t, got.Tooltip)
		assert.True(t, got.Tooltip.Presentable)
		assert.Empty(t, got.Tooltip.MissingTargets)
	})

	t.Run("missing target keeps tooltip pending", func(t *testing.T) {
		got := Select(snap, func(target string) bool { return target == "cart_button" })
		require.NotNil(t, got.Tooltip)
		assert.False(t, got.Tooltip.Presentable)
		assert.Equal(t, []string{"search_bar"}, got.Tooltip.MissingTargets)
	})

	t.Run("nil resolver keeps tooltip pending", func(t *testing.T) {
		got := Select(snap, nil)
		require.NotNil(t, got.Tooltip)
		assert.False(t, got.Tooltip.Presentable)
	})

	t.Run("wrong screen excludes tooltip", func(t *testing.T) {
		got := Select(Snapshot{Campaigns: campaigns, CurrentScreen: "Checkout"}, nil)
		assert.Nil(t, got.Tooltip)
	})
}

func TestSelect_IndependentTypes(t *testing.T) {
	campaigns := []campaign.Campaign{
		{ID: "b1", Type: campaign.TypeBanner},
		{ID: "f1", Type: campaign.TypeFloater},
		{ID: "p1", Type: campaign.TypePIP, TriggerEvent: "vip_unlocked"},
	}
	got := Select(Snapshot{Campaigns: campaigns, CurrentScreen: "Home"}, nil)

	assert.Len(t, got.Overlays, 2, "gated pip excluded, banner and floater active")
	assert.Equal(t, "b1", got.Overlays[campaign.TypeBanner].ID)
	assert.Equal(t, "f1", got.Overlays[campaign.TypeFloater].ID)
}
