package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"appstorys-engine/internal/campaign"
)

// TokenSource supplies the bearer token for outbound calls. Empty means
// unauthenticated (the backend rejects those itself).
type TokenSource func() string

// HTTPClient talks to the AppStorys backend over plain HTTP.
type HTTPClient struct {
	baseURL string
	appID   string
	tokens  TokenSource
	hc      *http.Client
}

func NewHTTPClient(baseURL, appID string, timeout time.Duration, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		appID:   appID,
		tokens:  tokens,
		hc: &http.Client{
			Timeout: timeout,
		},
	}
}

type trackScreenRequest struct {
	ScreenName string         `json:"screen_name"`
	UserID     string         `json:"user_id"`
	AppID      string         `json:"app_id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type trackScreenResponse struct {
	Campaigns            json.RawMessage `json:"campaigns"`
	ScreenCaptureEnabled bool            `json:"screen_capture_enabled"`
}

func (c *HTTPClient) FetchCampaigns(ctx context.Context, screen, userID string, attributes map[string]any) (FetchResult, error) {
	body := trackScreenRequest{ScreenName: screen, UserID: userID, AppID: c.appID, Attributes: attributes}

	var resp trackScreenResponse
	if err := c.post(ctx, "/api/v1/campaigns/track-screen/", body, &resp); err != nil {
		return FetchResult{}, fmt.Errorf("fetch campaigns: %w", err)
	}

	campaigns := []campaign.Campaign{}
	if len(resp.Campaigns) > 0 {
		var err error
		campaigns, err = campaign.DecodeList(resp.Campaigns)
		if err != nil {
			return FetchResult{}, fmt.Errorf("decode campaigns: %w", err)
		}
	}
	return FetchResult{Campaigns: campaigns, ScreenCaptureEnabled: resp.ScreenCaptureEnabled}, nil
}

type trackActionRequest struct {
	CampaignID string         `json:"campaign_id,omitempty"`
	UserID     string         `json:"user_id"`
	EventType  string         `json:"event_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (c *HTTPClient) SendEvent(ctx context.Context, campaignID, userID, eventType string, metadata map[string]any) error {
	body := trackActionRequest{CampaignID: campaignID, UserID: userID, EventType: eventType, Metadata: metadata}
	if err := c.post(ctx, "/api/v1/campaigns/track-action/", body, nil); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.tokens != nil {
		if tok := c.tokens(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
