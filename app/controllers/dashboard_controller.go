package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/gostarterkit/saaskit/internal/pkg/constants"
	"github.com/gostarterkit/saaskit/internal/pkg/session"
	"github.com/gostarterkit/saaskit/internal/pkg/usercontext"
	"github.com/gostarterkit/saaskit/internal/pkg/utils"
)

// HandleDashboard renders the signed-in landing view. It only reads the
// subscription fields; all mutation happens on the webhook path.
func HandleDashboard(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Redirect(constants.LoginRoute, fiber.StatusSeeOther)
	}

	// Keep the session tier cache in step with the record; the user may have
	// just returned from a completed checkout.
	tier := "free"
	if user.IsPro {
		tier = "pro"
	}
	_ = session.SetSessionValue(c, "user_tier", tier)

	expires := ""
	if user.SubscriptionExpiresAt != nil {
		expires = user.SubscriptionExpiresAt.Format(time.DateOnly)
	}

	return c.Render("dashboard/index", fiber.Map{
		"Title":              "Dashboard",
		"Flash":              flash.Get(c),
		"CSRF":               c.Locals("csrf"),
		"Username":           user.Name,
		"Email":              user.Email,
		"AvatarURL":          utils.GetGravatarURL(user.Email, 96),
		"IsPro":              user.IsPro,
		"SubscriptionStatus": user.SubscriptionStatus,
		"SubscriptionPlan":   user.SubscriptionPlan,
		"ExpiresAt":          expires,
		"HasCustomer":        user.HasStripeCustomer(),
		"Upgraded":           c.Query("upgraded") == "true",
	}, "layouts/main")
}
