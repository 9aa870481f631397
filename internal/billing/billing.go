package billing

import (
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	checksession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Plan is a purchasable generation package. Buying one creates a
// product instance credited with the plan's limits.
type Plan struct {
	Name        string `json:"name"`
	PriceID     string `json:"-"`
	LimitImages int    `json:"limit_images"`
	LimitVideos int    `json:"limit_videos"`
}

type Config struct {
	SecretKey      string
	WebhookSecret  string
	StarterPriceID string
	ProPriceID     string
	SuccessURL     string
	CancelURL      string
}

type Client struct {
	cfg   Config
	plans map[string]Plan
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{
		cfg: cfg,
		plans: map[string]Plan{
			"starter": {Name: "starter", PriceID: cfg.StarterPriceID, LimitImages: 50, LimitVideos: 10},
			"pro":     {Name: "pro", PriceID: cfg.ProPriceID, LimitImages: 300, LimitVideos: 60},
		},
	}
}

// PlanByName returns the plan, or false for unknown names.
func (c *Client) PlanByName(name string) (Plan, bool) {
	p, ok := c.plans[name]
	return p, ok
}

// Plans returns all purchasable plans.
func (c *Client) Plans() []Plan {
	return []Plan{c.plans["starter"], c.plans["pro"]}
}

// CreateCheckoutSession creates a one-time payment checkout session for
// a plan and returns the session ID and URL. The user ID travels in
// ClientReferenceID so the webhook can credit the right account.
func (c *Client) CreateCheckoutSession(userID int64, plan Plan) (sessionID, url string, err error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(strconv.FormatInt(userID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
		Metadata: map[string]string{
			"plan": plan.Name,
		},
	}
	sess, err := checksession.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

// ConstructWebhookEvent verifies the signature and returns the parsed event.
func (c *Client) ConstructWebhookEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
}
