package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gostarterkit/saaskit/app/controllers"
	"github.com/gostarterkit/saaskit/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
		// Webhook deliveries must never be throttled away; the provider
		// retries with backoff and gives up eventually.
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/billing/webhook"
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	billing := api.Group("/billing")
	billing.Post("/webhook", controllers.HandleBillingWebhook)
	billing.Post("/checkout", middleware.RequireAPISessionAuth, controllers.HandleBillingCheckout)
	billing.Post("/portal", middleware.RequireAPISessionAuth, controllers.HandleBillingPortal)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
