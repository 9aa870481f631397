package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fba70/avica-ugc-sub000/internal/auth"
	"github.com/fba70/avica-ugc-sub000/internal/model"
	"github.com/fba70/avica-ugc-sub000/internal/pipeline"
	"github.com/fba70/avica-ugc-sub000/internal/store"
)

type ContentHandler struct {
	pipeline  *pipeline.Pipeline
	itemStore *store.ContentItemStore
	logger    *slog.Logger
}

func NewContentHandler(p *pipeline.Pipeline, cis *store.ContentItemStore, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{pipeline: p, itemStore: cis, logger: logger}
}

type createContentRequest struct {
	Kind        model.ContentKind `json:"kind"`
	Name        string            `json:"name"`
	SourceImage string            `json:"source_image"`
}

type createContentResponse struct {
	Item       *model.ContentItem `json:"item"`
	ClaimToken string             `json:"claim_token,omitempty"`
	Remaining  int                `json:"remaining"`
}

// Create runs the generation pipeline for an event page visitor. No
// session is required; anonymous creations get a claim token back.
func (h *ContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req createContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	params := pipeline.CreateParams{
		EventID:     eventID,
		Kind:        req.Kind,
		Name:        strings.TrimSpace(req.Name),
		SourceImage: req.SourceImage,
	}
	if ac, ok := auth.FromContext(r.Context()); ok {
		userID := ac.UserID
		params.UserID = &userID
	}

	res, err := h.pipeline.CreateContent(r.Context(), params)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createContentResponse{
		Item:       res.Item,
		ClaimToken: res.ClaimToken,
		Remaining:  res.Remaining,
	})
}

func (h *ContentHandler) writePipelineError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		h.logger.Error("create content", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create content")
		return
	}

	switch perr.Kind {
	case pipeline.KindValidation:
		writeError(w, http.StatusBadRequest, perr.Err.Error())
	case pipeline.KindQuotaExhausted:
		writeError(w, http.StatusConflict, "quota exhausted")
	case pipeline.KindGeneration:
		h.logger.Error("generation failed", "error", perr.Err)
		writeError(w, http.StatusBadGateway, "generation failed")
	default:
		h.logger.Error("create content", "kind", perr.Kind, "error", perr.Err)
		writeError(w, http.StatusInternalServerError, "failed to create content")
	}
}

// ListByEvent is public: the event page's gallery.
func (h *ContentHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	items, err := h.itemStore.ListByEvent(eventID)
	if err != nil {
		h.logger.Error("list content items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list content")
		return
	}
	if items == nil {
		items = []model.ContentItem{}
	}
	// Claim tokens stay between the platform and the creator
	for i := range items {
		items[i].ClaimToken = nil
	}
	writeJSON(w, http.StatusOK, items)
}

// ListMine returns the session user's claimed and created items.
func (h *ContentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list user content", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list content")
		return
	}
	if items == nil {
		items = []model.ContentItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type claimRequest struct {
	Token string `json:"token"`
}

// Claim transfers an anonymous creation to the session user. Claiming
// an already claimed token answers 404, same as an unknown one.
func (h *ContentHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	claimed, err := h.itemStore.Claim(req.Token, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("claim content", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to claim content")
		return
	}
	// Tokens are single-use and cleared on claim, so a replay matches
	// nothing. Claiming is idempotent: a zero count is still a success.
	writeJSON(w, http.StatusOK, map[string]int64{"claimed": claimed})
}
