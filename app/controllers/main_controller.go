package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/gostarterkit/saaskit/internal/pkg/constants"
	"github.com/gostarterkit/saaskit/internal/pkg/usercontext"
)

// HandleStart renders the public landing page.
func HandleStart(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if userCtx.IsLoggedIn {
		return c.Redirect(constants.DashboardRoute, fiber.StatusSeeOther)
	}

	return c.Render("index", fiber.Map{
		"Title": "Welcome",
		"Flash": flash.Get(c),
	}, "layouts/main")
}

// HandlePricing renders the plan overview page.
func HandlePricing(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	return c.Render("pricing", fiber.Map{
		"Title":      "Pricing",
		"Flash":      flash.Get(c),
		"IsLoggedIn": userCtx.IsLoggedIn,
	}, "layouts/main")
}
