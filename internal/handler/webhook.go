package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"

	"github.com/fba70/avica-ugc-sub000/internal/billing"
	"github.com/fba70/avica-ugc-sub000/internal/model"
	"github.com/fba70/avica-ugc-sub000/internal/store"
)

type WebhookHandler struct {
	billingClient *billing.Client
	productStore  *store.ProductInstanceStore
	logger        *slog.Logger
}

func NewWebhookHandler(bc *billing.Client, ps *store.ProductInstanceStore, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{billingClient: bc, productStore: ps, logger: logger}
}

// HandleStripeWebhook processes payment confirmations. Stripe retries
// until it sees 200, so unknown event types are acknowledged silently.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	event, err := h.billingClient.ConstructWebhookEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	case "checkout.session.expired":
		h.handleCheckoutExpired(event)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}

	instance, err := h.productStore.GetByStripeSessionID(sess.ID)
	if err != nil {
		h.logger.Error("webhook: lookup product instance", "session_id", sess.ID, "error", err)
		return
	}
	if instance == nil {
		// The pending record can be missing if checkout was started
		// elsewhere; rebuild it from the session metadata.
		instance = h.recoverInstance(&sess)
		if instance == nil {
			return
		}
	}

	if instance.PaymentStatus == model.PaymentStatusPaid {
		return // duplicate delivery
	}
	if err := h.productStore.MarkPaid(instance.ID); err != nil {
		h.logger.Error("webhook: mark paid", "instance_id", instance.ID, "error", err)
		return
	}
	h.logger.Info("product instance paid", "instance_id", instance.ID, "plan", instance.Plan)
}

func (h *WebhookHandler) handleCheckoutExpired(event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("webhook: unmarshal checkout session", "error", err)
		return
	}

	instance, err := h.productStore.GetByStripeSessionID(sess.ID)
	if err != nil || instance == nil {
		return
	}
	if instance.PaymentStatus == model.PaymentStatusPaid {
		return
	}
	if err := h.productStore.SetStatus(instance.ID, model.ProductStatusCancelled); err != nil {
		h.logger.Error("webhook: cancel instance", "instance_id", instance.ID, "error", err)
	}
}

func (h *WebhookHandler) recoverInstance(sess *stripe.CheckoutSession) *model.ProductInstance {
	userID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil || userID <= 0 {
		h.logger.Error("webhook: checkout session has no usable client reference", "session_id", sess.ID)
		return nil
	}
	plan, ok := h.billingClient.PlanByName(sess.Metadata["plan"])
	if !ok {
		h.logger.Error("webhook: checkout session has unknown plan", "session_id", sess.ID, "plan", sess.Metadata["plan"])
		return nil
	}

	instance, err := h.productStore.Create(userID, plan.Name, plan.LimitImages, plan.LimitVideos, sess.ID)
	if err != nil {
		h.logger.Error("webhook: recover product instance", "session_id", sess.ID, "error", err)
		return nil
	}
	return instance
}
