package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fba70/avica-ugc-sub000/internal/assets"
	"github.com/fba70/avica-ugc-sub000/internal/billing"
	"github.com/fba70/avica-ugc-sub000/internal/database"
	"github.com/fba70/avica-ugc-sub000/internal/generation"
	"github.com/fba70/avica-ugc-sub000/internal/logging"
	"github.com/fba70/avica-ugc-sub000/internal/server"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func main() {
	logger := logging.Setup(env("SEENDROP_LOG_LEVEL", "info"))

	port := env("SEENDROP_PORT", "8080")
	dbPath := env("SEENDROP_DB_PATH", "seendrop.db")

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	cfg := server.Config{
		Assets: assets.Config{
			Endpoint:  os.Getenv("SEENDROP_S3_ENDPOINT"),
			PublicURL: os.Getenv("SEENDROP_S3_PUBLIC_URL"),
			Bucket:    os.Getenv("SEENDROP_S3_BUCKET"),
			Region:    env("SEENDROP_S3_REGION", "auto"),
			AccessKey: os.Getenv("SEENDROP_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SEENDROP_S3_SECRET_KEY"),
		},
		Billing: billing.Config{
			SecretKey:      os.Getenv("SEENDROP_STRIPE_SECRET_KEY"),
			WebhookSecret:  os.Getenv("SEENDROP_STRIPE_WEBHOOK_SECRET"),
			StarterPriceID: os.Getenv("SEENDROP_STRIPE_STARTER_PRICE_ID"),
			ProPriceID:     os.Getenv("SEENDROP_STRIPE_PRO_PRICE_ID"),
			SuccessURL:     env("SEENDROP_CHECKOUT_SUCCESS_URL", "http://localhost:"+port+"/checkout/success"),
			CancelURL:      env("SEENDROP_CHECKOUT_CANCEL_URL", "http://localhost:"+port+"/checkout/cancel"),
		},
		Generation: generation.Config{
			BaseURL:      os.Getenv("SEENDROP_GEN_BASE_URL"),
			APIKey:       os.Getenv("SEENDROP_GEN_API_KEY"),
			ImageModel:   env("SEENDROP_GEN_IMAGE_MODEL", "black-forest-labs/flux-schnell"),
			VideoModel:   env("SEENDROP_GEN_VIDEO_MODEL", "minimax/video-01"),
			PollInterval: envDuration("SEENDROP_GEN_POLL_INTERVAL", 2*time.Second),
			PollTimeout:  envDuration("SEENDROP_GEN_POLL_TIMEOUT", 2*time.Minute),
		},
	}

	secureCookies := env("SEENDROP_SECURE_COOKIES", "true") == "true"
	srv := server.New(db, cfg, secureCookies, logger)

	// Hourly cleanup of expired sessions and stale rate limit entries
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation requests hold the connection
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("seendrop listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
