package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/i474232898/air-quality-aggregation/internal/locations"
	"github.com/i474232898/air-quality-aggregation/internal/store"
)

const serviceName = "air-quality-aggregation"

// Options configures the HTTP boundary.
type Options struct {
	// Cache serves fresh records without querying providers. Nil disables it.
	Cache     store.Cache
	Locations *locations.Registry

	QueryTimeout    time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration

	// AccessLog enables fiber's request logger.
	AccessLog bool
	Logger    *zap.Logger
}

func (o *Options) setDefaults() {
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = 60 * time.Second
	}
	if o.RateLimitMax <= 0 {
		o.RateLimitMax = 100
	}
	if o.RateLimitWindow <= 0 {
		o.RateLimitWindow = 15 * time.Minute
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// NewApp builds the fiber app with global middleware, health and metrics
// endpoints, and the rate-limited API routes.
func NewApp(service Service, opts Options) *fiber.App {
	opts.setDefaults()

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		Immutable:             true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          opts.QueryTimeout + 10*time.Second,
		ErrorHandler:          ErrorHandler,
	})

	// Global middleware
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	RegisterRoutes(app, service, opts)
	return app
}

// ErrorHandler renders errors as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// rateLimiter admits RateLimitMax requests per client IP per window.
func rateLimiter(opts Options) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        opts.RateLimitMax,
		Expiration: opts.RateLimitWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			opts.Logger.Warn("rate limit exceeded", zap.String("ip", c.IP()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later",
			})
		},
	})
}
