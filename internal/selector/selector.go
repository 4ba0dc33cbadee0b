// Package selector derives the set of presentable campaigns from an
// immutable snapshot of engine state. It has no clocks, timers or I/O,
// so the flag interactions (dismissal, trigger gating, screen scoping)
// are testable in isolation.
package selector

import (
	"strings"

	"appstorys-engine/internal/campaign"
)

// Snapshot is the full input to a selection pass.
type Snapshot struct {
	Campaigns     []campaign.Campaign
	Dismissed     map[string]struct{}
	TrackedEvents map[string]struct{}
	CurrentScreen string
}

// TargetResolver reports whether a named on-screen element is currently
// resolvable. Tooltips stay pending until every target resolves.
type TargetResolver func(target string) bool

// TooltipState is the tooltip winner plus its presentability. A tooltip
// with unresolved targets is pending, not dismissed.
type TooltipState struct {
	Campaign       campaign.Campaign
	Presentable    bool
	MissingTargets []string
}

// ActiveSet is the derived presentation state renderers read.
type ActiveSet struct {
	// Overlays holds at most one winner per overlay campaign type.
	Overlays map[campaign.Type]campaign.Campaign
	// StoryGroups is the flattened thumbnail rail; unlike overlays,
	// several story campaigns can contribute simultaneously.
	StoryGroups []campaign.StoryGroup
	Tooltip     *TooltipState
}

var overlayTypes = []campaign.Type{
	campaign.TypeBanner,
	campaign.TypeFloater,
	campaign.TypePIP,
	campaign.TypeCSAT,
	campaign.TypeSurvey,
	campaign.TypeWidget,
	campaign.TypeBottomSheet,
	campaign.TypeModal,
	campaign.TypeReel,
	campaign.TypeScratchCard,
}

// Select computes the active set. resolver may be nil, in which case no
// tooltip target can resolve and any tooltip winner stays pending.
func Select(snap Snapshot, resolver TargetResolver) ActiveSet {
	out := ActiveSet{Overlays: map[campaign.Type]campaign.Campaign{}}

	for _, t := range overlayTypes {
		if winner, ok := winnerForType(snap, t, false); ok {
			out.Overlays[t] = winner
		}
	}

	for _, c := range snap.Campaigns {
		if c.Type != campaign.TypeStories || !eligible(snap, c) || !screenMatches(snap, c) {
			continue
		}
		if d, ok := c.Details.(campaign.StoriesDetails); ok {
			out.StoryGroups = append(out.StoryGroups, d.Groups...)
		}
	}

	if winner, ok := winnerForType(snap, campaign.TypeTooltip, true); ok {
		st := &TooltipState{Campaign: winner, Presentable: true}
		if d, ok := winner.Details.(campaign.TooltipDetails); ok {
			for _, tip := range d.Tooltips {
				if resolver == nil || !resolver(tip.Target) {
					st.Presentable = false
					st.MissingTargets = append(st.MissingTargets, tip.Target)
				}
			}
		}
		out.Tooltip = st
	}

	return out
}

// winnerForType applies single-winner semantics: lowest declared
// priority wins, undeclared priority sorts last, ties keep server order.
func winnerForType(snap Snapshot, t campaign.Type, screenScoped bool) (campaign.Campaign, bool) {
	var best campaign.Campaign
	bestPrio := 0
	found := false
	for _, c := range snap.Campaigns {
		if c.Type != t || !eligible(snap, c) {
			continue
		}
		if screenScoped && !screenMatches(snap, c) {
			continue
		}
		p := priorityOf(c)
		if !found || p < bestPrio {
			best, bestPrio, found = c, p, true
		}
	}
	return best, found
}

func eligible(snap Snapshot, c campaign.Campaign) bool {
	if _, dismissed := snap.Dismissed[c.ID]; dismissed {
		return false
	}
	if c.TriggerEvent != "" {
		if _, fired := snap.TrackedEvents[c.TriggerEvent]; !fired {
			return false
		}
	}
	return true
}

func screenMatches(snap Snapshot, c campaign.Campaign) bool {
	return c.Screen == "" || strings.EqualFold(c.Screen, snap.CurrentScreen)
}

func priorityOf(c campaign.Campaign) int {
	if c.Priority != nil {
		return *c.Priority
	}
	return int(^uint(0) >> 1) // undeclared sorts after any declared priority
}
