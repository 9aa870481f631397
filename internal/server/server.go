package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fba70/avica-ugc-sub000/internal/assets"
	"github.com/fba70/avica-ugc-sub000/internal/billing"
	"github.com/fba70/avica-ugc-sub000/internal/generation"
	"github.com/fba70/avica-ugc-sub000/internal/handler"
	"github.com/fba70/avica-ugc-sub000/internal/ledger"
	"github.com/fba70/avica-ugc-sub000/internal/middleware"
	"github.com/fba70/avica-ugc-sub000/internal/pipeline"
	"github.com/fba70/avica-ugc-sub000/internal/store"
	ws "github.com/fba70/avica-ugc-sub000/internal/websocket"
)

// Config collects the external service settings the server needs.
type Config struct {
	Assets     assets.Config
	Billing    billing.Config
	Generation generation.Config
}

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	eventH       *handler.EventHandler
	contentH     *handler.ContentHandler
	checkoutH    *handler.CheckoutHandler
	webhookH     *handler.WebhookHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, cfg Config, secureCookies bool, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	eventStore := store.NewEventStore(db)
	itemStore := store.NewContentItemStore(db)
	productStore := store.NewProductInstanceStore(db)

	quotaLedger := ledger.New(db, logger.With("component", "ledger"))
	genClient := generation.NewClient(cfg.Generation, logger.With("component", "generation"))
	assetStore := assets.NewStore(cfg.Assets, logger.With("component", "assets"))
	billingClient := billing.NewClient(cfg.Billing)

	pipe := pipeline.New(eventStore, itemStore, quotaLedger, genClient, assetStore, hub,
		logger.With("component", "pipeline"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, secureCookies, logger.With("component", "auth")),
		eventH:       handler.NewEventHandler(eventStore, itemStore, hub, logger.With("component", "event")),
		contentH:     handler.NewContentHandler(pipe, itemStore, logger.With("component", "content")),
		checkoutH:    handler.NewCheckoutHandler(billingClient, productStore, logger.With("component", "checkout")),
		webhookH:     handler.NewWebhookHandler(billingClient, productStore, logger.With("component", "webhook")),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register, 10))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login, 10))
	outerMux.HandleFunc("POST /api/webhooks/stripe", s.webhookH.HandleStripeWebhook)
	outerMux.HandleFunc("GET /api/plans", s.checkoutH.Plans)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Event pages: public read plus the rate-limited generation endpoint.
	// OptionalAuth lets signed-in creators skip the claim flow.
	optionalAuth := middleware.OptionalAuth(s.sessionStore, s.userStore)
	outerMux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	outerMux.HandleFunc("GET /api/events/{id}/counters", s.eventH.Counters)
	outerMux.HandleFunc("GET /api/events/{id}/content", s.contentH.ListByEvent)
	outerMux.Handle("POST /api/events/{id}/content",
		optionalAuth(http.HandlerFunc(s.rateLimitedHandler(s.contentH.Create, 5))))

	// Live feed
	outerMux.HandleFunc("GET /ws/events/{id}", ws.HandleFeed(s.hub))

	// Protected routes — wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/api/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Creator routes
	mux.HandleFunc("GET /api/content", s.contentH.ListMine)
	mux.HandleFunc("POST /api/content/claim", s.contentH.Claim)

	// Billing routes
	mux.HandleFunc("POST /api/checkout", s.checkoutH.CreateSession)
	mux.HandleFunc("GET /api/packages", s.checkoutH.ListInstances)

	// Partner event management
	mux.Handle("POST /api/events", middleware.RequirePartner(http.HandlerFunc(s.eventH.Create)))
	mux.Handle("GET /api/events", middleware.RequirePartner(http.HandlerFunc(s.eventH.List)))
	mux.Handle("PUT /api/events/{id}", middleware.RequirePartner(http.HandlerFunc(s.eventH.Update)))
	mux.Handle("PUT /api/events/{id}/status", middleware.RequirePartner(http.HandlerFunc(s.eventH.SetStatus)))
	mux.Handle("DELETE /api/events/{id}", middleware.RequirePartner(http.HandlerFunc(s.eventH.Delete)))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc, perMinute int) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, perMinute, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
