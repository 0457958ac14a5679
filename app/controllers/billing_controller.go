package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/gostarterkit/saaskit/internal/pkg/billing"
	"github.com/gostarterkit/saaskit/internal/pkg/database"
	"github.com/gostarterkit/saaskit/internal/pkg/env"
	"github.com/gostarterkit/saaskit/internal/pkg/usercontext"
)

var (
	billingVerifier  *billing.Verifier
	billingInitiator *billing.Initiator
)

// InitializeBillingController constructs the provider-facing pieces once at
// startup; handlers never reach for ambient SDK state.
func InitializeBillingController() {
	billingVerifier = billing.NewVerifier(env.GetEnv("STRIPE_WEBHOOK_SECRET", ""))
	billingInitiator = billing.NewInitiatorFromEnv()
}

// HandleBillingWebhook consumes asynchronous provider notifications and
// reconciles the subscription state. Signature problems reject the request
// before anything is read from or written to the store.
func HandleBillingWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ev, err := billingVerifier.Verify(rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrSignatureMissing):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature"})
		case errors.Is(err, billing.ErrEventMalformed):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed_event"})
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
		}
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := svc.HandleEvent(ctx, ev, rawBody)
	if err != nil {
		// A 500 tells the provider to redeliver the event later.
		log.Printf("billing webhook %s (%s) failed: %v", ev.ID, ev.Type, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}
	if !outcome.Applied {
		log.Printf("billing webhook %s (%s) skipped: %s", ev.ID, ev.Type, outcome.Reason)
	} else if outcome.Reason != "" {
		log.Printf("billing webhook %s (%s) applied: %s", ev.ID, ev.Type, outcome.Reason)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// HandleBillingCheckout starts a hosted checkout for the logged-in user and
// returns the provider redirect URL.
func HandleBillingCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}
	if err := validator.New().Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_body"})
	}

	user, err := userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}

	existingCustomerID := ""
	if user.StripeCustomerID != nil {
		existingCustomerID = *user.StripeCustomerID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	url, err := billingInitiator.CreateCheckoutSession(ctx, user.ID, user.Email, req.Plan, existingCustomerID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrUnknownPlan):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown_plan"})
		case errors.Is(err, billing.ErrPriceNotConfigured):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "price_not_configured"})
		default:
			log.Printf("checkout session creation failed for user %d: %v", user.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout_failed"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}

// HandleBillingPortal starts a hosted account-management portal session for
// users that already have a provider customer id.
func HandleBillingPortal(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	user, err := userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "user_lookup_failed"})
	}
	if !user.HasStripeCustomer() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_subscription"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	url, err := billingInitiator.CreatePortalSession(ctx, *user.StripeCustomerID)
	if err != nil {
		log.Printf("portal session creation failed for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "portal_failed"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"url": url})
}
