package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "backoffice/internal/log"
	"backoffice/internal/metrics"
	"backoffice/web"
)

type AppOptions struct {
	OperatorTokenHash string
	Metrics           *metrics.Metrics

	// RateLimit caps API requests per client IP per minute. Zero disables.
	RateLimit int
	// Health backs /healthz and /health; nil always reports ok.
	Health func(ctx context.Context) error
}

// NewApp builds the fiber app with middleware and every route.
func NewApp(d *Deps, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		Views:                 web.Engine(),
		ErrorHandler:          ErrorHandler,
		BodyLimit:             1 << 20, // 1 MiB
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(applog.Middleware())
	if opts.Metrics != nil {
		app.Use(opts.Metrics.Middleware())
	}
	app.Use(helmet.New())

	health := func(c *fiber.Ctx) error {
		if opts.Health != nil {
			if err := opts.Health(c.UserContext()); err != nil {
				applog.Error(c, "health.fail", err, nil)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
			}
		}
		return c.JSON(fiber.Map{"ok": true})
	}
	app.Get("/healthz", health)
	app.Get("/health", health)
	if opts.Metrics != nil {
		app.Get("/metrics", opts.Metrics.Handler())
	}

	api := app.Group("/api/v1")
	if opts.RateLimit > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        opts.RateLimit,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.api.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
			},
		}))
	}
	api.Use(RequireOperator(opts.OperatorTokenHash))
	d.Routes(api)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Page not found")
	})
	return app
}

// Routes mounts the operator API on r.
func (d *Deps) Routes(r fiber.Router) {
	inv := d.InventoryHandler
	r.Get("/inventory", inv.List)
	r.Post("/inventory", inv.Create)
	r.Get("/inventory/:id", inv.Get)
	r.Post("/inventory/:id/records", inv.Record)
	r.Get("/inventory/:id/history", inv.History)

	prod := d.ProductHandler
	r.Get("/products", prod.List)
	r.Post("/products", prod.Create)
	r.Get("/products/:id", prod.Detail)
	r.Put("/products/:id", prod.Update)
	r.Post("/products/:id/variants", prod.AddVariant)
	r.Put("/variants/:id", prod.UpdateVariant)

	ord := d.OrderHandler
	r.Get("/orders", ord.Search)
	r.Post("/orders", ord.Create)
	r.Post("/orders/catalog", ord.CreateFromCatalog)
	r.Get("/orders/:id", ord.View)
	r.Put("/orders/:id/label", ord.AssignLabel)
	r.Put("/orders/:id/tracking", ord.SetTracking)

	ful := d.FulfillmentHandler
	r.Get("/fulfillment/unprinted", ful.Unprinted)
	r.Post("/fulfillment/print-jobs", ful.Prepare)
	r.Get("/fulfillment/print-jobs/:id", ful.Job)
	r.Post("/fulfillment/print-jobs/:id/confirm", ful.Confirm)
	r.Post("/fulfillment/print-jobs/:id/cancel", ful.Cancel)
}
