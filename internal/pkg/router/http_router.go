package router

import (
	"github.com/gostarterkit/saaskit/app/controllers"
	"github.com/gostarterkit/saaskit/internal/pkg/middleware"
	"github.com/gostarterkit/saaskit/internal/pkg/oauth"
	"github.com/gostarterkit/saaskit/internal/pkg/session"

	"github.com/gofiber/fiber/v2"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init oauth providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	// Wire shared repositories and the billing provider client
	controllers.InitializeControllers()
	controllers.InitializeBillingController()

	h.registerPublicRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func loggedInMiddleware(c *fiber.Ctx) error {
	// UserContextMiddleware already set all user context; this middleware
	// just passes through so guest-visible routes share one signature.
	return c.Next()
}
