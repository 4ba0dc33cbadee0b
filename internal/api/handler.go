package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appstorys-engine/internal/campaign"
	"appstorys-engine/internal/engine"
)

// Handler exposes the engine to the host process over localhost HTTP.
type Handler struct {
	Eng    *engine.Engine
	Bridge *engine.LifecycleBridge
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{Eng: eng, Bridge: engine.NewLifecycleBridge(eng)}
}

type campaignDTO struct {
	ID           string `json:"id"`
	Type         string `json:"campaign_type"`
	Screen       string `json:"screen,omitempty"`
	TriggerEvent string `json:"trigger_event,omitempty"`
}

func toDTO(c campaign.Campaign) campaignDTO {
	return campaignDTO{
		ID:           c.ID,
		Type:         string(c.Type),
		Screen:       c.Screen,
		TriggerEvent: c.TriggerEvent,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type trackScreenBody struct {
	Attributes map[string]any `json:"attributes"`
}

func (h *Handler) TrackScreen(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		http.Error(w, "screen name required", http.StatusBadRequest)
		return
	}
	var body trackScreenBody
	_ = json.NewDecoder(r.Body).Decode(&body) // body optional

	applied := h.Eng.TrackScreen(r.Context(), name, body.Attributes)
	out := make([]campaignDTO, 0, len(applied))
	for _, c := range applied {
		out = append(out, toDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

type trackEventBody struct {
	CampaignID string         `json:"campaign_id"`
	Event      string         `json:"event"`
	Metadata   map[string]any `json:"metadata"`
}

func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var body trackEventBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Event == "" {
		http.Error(w, "event required", http.StatusBadRequest)
		return
	}
	h.Eng.TrackEvent(body.CampaignID, body.Event, body.Metadata)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.Eng.DismissCampaign(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type activeResponse struct {
	Screen      string                 `json:"screen"`
	Overlays    map[string]campaignDTO `json:"overlays"`
	StoryGroups []campaign.StoryGroup  `json:"story_groups,omitempty"`
	Tooltip     *tooltipDTO            `json:"tooltip,omitempty"`
}

type tooltipDTO struct {
	Campaign       campaignDTO `json:"campaign"`
	Presentable    bool        `json:"presentable"`
	MissingTargets []string    `json:"missing_targets,omitempty"`
}

func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	set := h.Eng.Active()
	resp := activeResponse{
		Screen:      h.Eng.CurrentScreen(),
		Overlays:    map[string]campaignDTO{},
		StoryGroups: set.StoryGroups,
	}
	for t, c := range set.Overlays {
		resp.Overlays[string(t)] = toDTO(c)
	}
	if set.Tooltip != nil {
		resp.Tooltip = &tooltipDTO{
			Campaign:       toDTO(set.Tooltip.Campaign),
			Presentable:    set.Tooltip.Presentable,
			MissingTargets: set.Tooltip.MissingTargets,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	state := engine.AppState(chi.URLParam(r, "state"))
	if !h.Bridge.Notify(state) {
		http.Error(w, "unknown lifecycle state", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	screen, err := h.Eng.CaptureScreen()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"screen": screen})
	case errors.Is(err, engine.ErrNotInitialized), errors.Is(err, engine.ErrNoScreenTracked):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	case errors.Is(err, engine.ErrCaptureDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
