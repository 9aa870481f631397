package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fba70/avica-ugc-sub000/internal/auth"
	"github.com/fba70/avica-ugc-sub000/internal/model"
	"github.com/fba70/avica-ugc-sub000/internal/store"
	"github.com/fba70/avica-ugc-sub000/internal/websocket"
)

type EventHandler struct {
	eventStore *store.EventStore
	itemStore  *store.ContentItemStore
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewEventHandler(es *store.EventStore, cis *store.ContentItemStore, hub *websocket.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{eventStore: es, itemStore: cis, hub: hub, logger: logger}
}

type eventRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	BrandColor   string `json:"brand_color"`
	LogoURL      string `json:"logo_url"`
	BaseImageURL string `json:"base_image_url"`
	PromptImage  string `json:"prompt_image"`
	PromptVideo  string `json:"prompt_video"`
	LimitImages  int    `json:"limit_images"`
	LimitVideos  int    `json:"limit_videos"`
}

func (req *eventRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.PromptImage == "" {
		return "prompt_image is required"
	}
	if req.LimitImages < 0 || req.LimitVideos < 0 {
		return "limits must be >= 0"
	}
	return ""
}

func (req *eventRequest) params() store.EventParams {
	return store.EventParams{
		Name:         req.Name,
		Description:  req.Description,
		BrandColor:   req.BrandColor,
		LogoURL:      req.LogoURL,
		BaseImageURL: req.BaseImageURL,
		PromptImage:  req.PromptImage,
		PromptVideo:  req.PromptVideo,
		LimitImages:  req.LimitImages,
		LimitVideos:  req.LimitVideos,
	}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	event, err := h.eventStore.Create(auth.UserID(r.Context()), req.params())
	if err != nil {
		h.logger.Error("create event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventStore.ListByPartner(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Get is public: event pages render from it without a session.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event := h.load(w, r)
	if event == nil {
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.eventStore.Update(event.ID, req.params())
	if err != nil {
		h.logger.Error("update event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	h.hub.QuotaUpdated(updated.ID, model.KindImage, updated.ImagesCount)
	h.hub.QuotaUpdated(updated.ID, model.KindVideo, updated.VideosCount)
	writeJSON(w, http.StatusOK, updated)
}

type eventStatusRequest struct {
	Status model.EventStatus `json:"status"`
}

func (h *EventHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var req eventStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status != model.EventStatusActive && req.Status != model.EventStatusInactive {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := h.eventStore.SetStatus(event.ID, req.Status); err != nil {
		h.logger.Error("set event status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}
	event.Status = req.Status
	writeJSON(w, http.StatusOK, event)
}

// Delete retires an event. Rows are never removed so content items keep
// their event reference; the event just stops accepting creations.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if err := h.eventStore.SetStatus(event.ID, model.EventStatusInactive); err != nil {
		h.logger.Error("retire event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retire event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type countersResponse struct {
	LimitImages     int `json:"limit_images"`
	LimitVideos     int `json:"limit_videos"`
	ImagesRemaining int `json:"images_remaining"`
	VideosRemaining int `json:"videos_remaining"`
	ImagesCreated   int `json:"images_created"`
	VideosCreated   int `json:"videos_created"`
}

// Counters is public: event pages poll it to show remaining balances.
func (h *EventHandler) Counters(w http.ResponseWriter, r *http.Request) {
	event := h.load(w, r)
	if event == nil {
		return
	}

	images, videos, err := h.itemStore.CountByEvent(event.ID)
	if err != nil {
		h.logger.Error("count content items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load counters")
		return
	}

	writeJSON(w, http.StatusOK, countersResponse{
		LimitImages:     event.LimitImages,
		LimitVideos:     event.LimitVideos,
		ImagesRemaining: event.ImagesCount,
		VideosRemaining: event.VideosCount,
		ImagesCreated:   images,
		VideosCreated:   videos,
	})
}

// load fetches the event in the path, writing the error response itself
// when it returns nil.
func (h *EventHandler) load(w http.ResponseWriter, r *http.Request) *model.Event {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	event, err := h.eventStore.GetByID(id)
	if err != nil {
		h.logger.Error("get event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return nil
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return nil
	}
	return event
}

// loadOwned is load plus an ownership check against the session user.
func (h *EventHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*model.Event, bool) {
	event := h.load(w, r)
	if event == nil {
		return nil, false
	}
	if event.PartnerID != auth.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "not your event")
		return nil, false
	}
	return event, true
}
