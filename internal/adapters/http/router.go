package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/rentsignal/aircomps/internal/pkg/metrics"
)

// Upstream searches paginate through several pages, so data handlers get a
// generous per-request timeout.
const handlerTimeout = 90 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: the upstream tolerates little; 60 requests per minute
	// per IP keeps one noisy client from burning the shared budget.
	app.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no auth, no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	auth := AuthMiddleware(deps.AuthToken)

	// REST API v1
	v1 := app.Group("/v1", auth)
	v1.Get("/comps", timeout.NewWithContext(CompsHandler(deps), handlerTimeout))
	v1.Get("/listings/:room/availability", timeout.NewWithContext(AvailabilityHandler(deps), handlerTimeout))
	v1.Get("/searches/recent", timeout.NewWithContext(RecentSearchesHandler(deps), 15*time.Second))

	// Legacy flat routes, kept for pre-v1 clients until the sunset date.
	legacy := app.Group("/", DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/search", SunsetDate: time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), Alternative: "/v1/comps"},
		{Path: "/calendar", SunsetDate: time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), Alternative: "/v1/listings/{room}/availability"},
	}), auth)
	legacy.Get("/search", timeout.NewWithContext(LegacySearchHandler(deps), handlerTimeout))
	legacy.Get("/calendar", timeout.NewWithContext(LegacyCalendarHandler(deps), handlerTimeout))

	// GraphQL
	app.Post("/graphql", auth, GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
