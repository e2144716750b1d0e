package main // Entry point package

import (
	"context"   // Shutdown deadline handling
	"log"       // Logging library
	"net/http"  // http.ErrServerClosed on graceful stop
	"os"        // Signal channel plumbing
	"os/signal" // OS signal notifications
	"syscall"   // SIGTERM constant
	"time"      // Shutdown timeout

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/event-ticket-reservation/internal/clock"      // Injected time source
	"github.com/iliyamo/event-ticket-reservation/internal/config"     // Internal config loader
	"github.com/iliyamo/event-ticket-reservation/internal/database"   // MySQL connection helper
	"github.com/iliyamo/event-ticket-reservation/internal/engine"     // Reservation engine services
	"github.com/iliyamo/event-ticket-reservation/internal/handler"    // HTTP handlers
	"github.com/iliyamo/event-ticket-reservation/internal/middleware" // Rate limiting middleware
	"github.com/iliyamo/event-ticket-reservation/internal/payment"    // Payment provider client
	"github.com/iliyamo/event-ticket-reservation/internal/queue"      // Broker consumer
	"github.com/iliyamo/event-ticket-reservation/internal/repository" // MySQL-backed store
	"github.com/iliyamo/event-ticket-reservation/internal/router"     // Internal router setup
	"github.com/iliyamo/event-ticket-reservation/migrations"          // Embedded schema
)

func main() {
	// Load .env when present so local development does not need exported
	// variables.  Missing file is fine in production.
	_ = godotenv.Load()

	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := migrations.Apply(db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	store := repository.NewStore(db)
	clk := clock.NewSystem()

	reservation := engine.NewReservation(store, clk, cfg.OfferTTL)
	finalizer := engine.NewFinalizer(store, clk, cfg.OfferTTL)
	provider := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey)
	refunder := engine.NewRefunder(store, provider, cfg.RefundTimeout)

	// Background sweeper reclaims expired offers and promotes waiting
	// buyers even when no request traffic touches the event.
	sweeper := engine.NewScheduler(store, clk, cfg.OfferTTL, cfg.SweepInterval)
	go sweeper.Run(context.Background())
	defer sweeper.Stop()

	// Broker consumer writes purchase logs; it reconnects on its own and
	// never takes the server down.
	go func() {
		if err := queue.StartPurchaseConsumer(); err != nil {
			log.Printf("purchase-consumer: %v", err)
		}
	}()

	// Redis backs the availability cache and the rate limiter.  A nil
	// client disables both; the API still works without Redis.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; response cache and rate limiting disabled")
	}

	e := echo.New() // Create Echo instance
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e) // Health check and metrics
	router.RegisterTickets(e, handler.NewTicketHandler(reservation), cfg.JWTSecret, rdb)
	router.RegisterSeller(e, handler.NewSellerHandler(refunder, store), cfg.JWTSecret)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(finalizer, store, cfg.WebhookSecret))

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// Block until SIGINT/SIGTERM, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
