package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fba70/avica-ugc-sub000/internal/auth"
	"github.com/fba70/avica-ugc-sub000/internal/billing"
	"github.com/fba70/avica-ugc-sub000/internal/model"
	"github.com/fba70/avica-ugc-sub000/internal/store"
)

type CheckoutHandler struct {
	billingClient *billing.Client
	productStore  *store.ProductInstanceStore
	logger        *slog.Logger
}

func NewCheckoutHandler(bc *billing.Client, ps *store.ProductInstanceStore, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{billingClient: bc, productStore: ps, logger: logger}
}

// Plans lists the purchasable generation packages.
func (h *CheckoutHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.billingClient.Plans())
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// CreateSession starts a one-time payment checkout for a plan and
// records the pending product instance. The instance stays unpaid until
// the webhook confirms payment; the ledger never debits unpaid credit.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	plan, ok := h.billingClient.PlanByName(req.Plan)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown plan")
		return
	}

	userID := auth.UserID(r.Context())
	sessionID, url, err := h.billingClient.CreateCheckoutSession(userID, plan)
	if err != nil {
		h.logger.Error("create checkout session", "error", err)
		writeError(w, http.StatusBadGateway, "failed to start checkout")
		return
	}

	if _, err := h.productStore.Create(userID, plan.Name, plan.LimitImages, plan.LimitVideos, sessionID); err != nil {
		h.logger.Error("create product instance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"checkout_url": url})
}

// ListInstances returns the session user's purchased packages.
func (h *CheckoutHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	instances, err := h.productStore.ListByUser(auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list product instances", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list packages")
		return
	}
	if instances == nil {
		instances = []model.ProductInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}
