// Package transport defines the backend contract the engine consumes
// and ships an HTTP implementation of it. The engine never assumes more
// than this interface; a WebSocket-backed client could satisfy it too.
package transport

import (
	"context"

	"appstorys-engine/internal/campaign"
)

// FetchResult is one track-screen round trip.
type FetchResult struct {
	Campaigns            []campaign.Campaign
	ScreenCaptureEnabled bool
}

// Client is the backend surface the engine depends on. Implementations
// must be safe for concurrent calls across different screens; the
// coordinator, not the client, prevents cross-screen races.
type Client interface {
	FetchCampaigns(ctx context.Context, screen, userID string, attributes map[string]any) (FetchResult, error)
	SendEvent(ctx context.Context, campaignID, userID, eventType string, metadata map[string]any) error
}
