package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                      // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp" // Prometheus HTTP exposition
	"github.com/redis/go-redis/v9"                     // Redis client used by the cache and rate limit middleware

	"github.com/iliyamo/event-ticket-reservation/internal/config"     // middleware configuration
	"github.com/iliyamo/event-ticket-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/event-ticket-reservation/internal/middleware" // import middleware for JWT authentication and caching
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check and the Prometheus
// metrics exposition.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
	// Expose engine counters in Prometheus text format.
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterTickets registers the buyer-facing reservation routes.  The
// availability read model is public and sits behind the Redis response
// cache; everything else requires a valid access token.
func RegisterTickets(e *echo.Echo, t *handler.TicketHandler, jwtSecret string, rdb *redis.Client) {
	// Public capacity snapshot for event pages.  Cached so a hot event
	// page does not hammer the database.
	cacheCfg := config.LoadCacheConfig()
	e.GET("/v1/events/:id/availability", t.Availability, middleware.NewRedisCache(cacheCfg, rdb))

	// Protected buyer operations live under /v1 behind JWTAuth.
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	// Ask for one ticket: an immediate offer when capacity is free, a
	// queued entry when the event is sold out.
	auth.POST("/events/:id/tickets/request", t.RequestTicket)
	// Voluntarily give an entry back; an offered slot goes to the next
	// waiting buyer.
	auth.DELETE("/offers/:id", t.ReleaseOffer)
	// Where am I in the queue?
	auth.GET("/events/:id/queue/position", t.QueuePosition)
}

// RegisterSeller registers seller-facing routes.  Cancellation is
// restricted to authenticated sellers; ownership is enforced in the
// handler.
func RegisterSeller(e *echo.Echo, s *handler.SellerHandler, jwtSecret string) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("SELLER"))
	g.POST("/events/:id/cancel", s.CancelEvent)
}

// RegisterWebhooks registers the payment provider callback.  The route
// is unauthenticated at the HTTP layer; the handler authenticates the
// body via its HMAC signature instead.
func RegisterWebhooks(e *echo.Echo, w *handler.WebhookHandler) {
	e.POST("/v1/webhooks/payment", w.PaymentConfirmed)
}
