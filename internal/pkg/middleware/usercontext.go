package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gostarterkit/saaskit/app/models"
	"github.com/gostarterkit/saaskit/internal/pkg/database"
	"github.com/gostarterkit/saaskit/internal/pkg/session"
	"github.com/gostarterkit/saaskit/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	// Avoid interfering with Goth/Fiber session handling on OAuth routes.
	// Goth uses its own fiber session store and relies on per-request locals.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return anonymous(c)
	}

	userID := sess.Get(usercontext.KeyUserID)
	if userID == nil {
		return anonymous(c)
	}

	username := session.GetSessionValue(c, usercontext.KeyUsername)

	// Pro flag with session-first strategy; the dashboard re-syncs the
	// cached value from the record on every visit.
	isPro := false
	switch session.GetSessionValue(c, "user_tier") {
	case "pro":
		isPro = true
	case "free":
		isPro = false
	default:
		if db := database.GetDB(); db != nil {
			var user models.User
			if err := db.First(&user, userID.(uint)).Error; err == nil {
				isPro = user.IsPro
			}
		}
		tier := "free"
		if isPro {
			tier = "pro"
		}
		_ = session.SetSessionValue(c, "user_tier", tier)
	}

	c.Locals("USER_CONTEXT", usercontext.UserContext{
		UserID:     userID.(uint),
		Username:   username,
		IsLoggedIn: true,
		IsPro:      isPro,
	})
	c.Locals(usercontext.KeyFromProtected, true)

	return c.Next()
}

func anonymous(c *fiber.Ctx) error {
	c.Locals("USER_CONTEXT", usercontext.UserContext{IsLoggedIn: false})
	c.Locals(usercontext.KeyFromProtected, false)
	return c.Next()
}
