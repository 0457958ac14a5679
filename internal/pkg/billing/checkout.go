package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/gostarterkit/saaskit/internal/pkg/env"
)

var (
	// ErrUnknownPlan is returned when a caller requests a plan outside the
	// three purchasable tiers.
	ErrUnknownPlan = errors.New("billing: unknown plan")
	// ErrPriceNotConfigured is returned when the deployment has no price id
	// mapped for an otherwise valid plan.
	ErrPriceNotConfigured = errors.New("billing: price not configured for plan")
)

// InitiatorConfig carries the provider credentials and plan-to-price mapping
// for outbound hosted sessions.
type InitiatorConfig struct {
	APIKey   string
	BaseURL  string
	PriceIDs map[Plan]string
}

// Initiator creates hosted checkout and portal sessions. It holds no local
// state; subscription changes only arrive later through the webhook path.
type Initiator struct {
	cfg InitiatorConfig

	// Injected so tests can run without the provider.
	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	createPortalSession   func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error)
}

// NewInitiator constructs the initiator once at process start. The provider
// client key is set here, not through ambient globals elsewhere.
func NewInitiator(cfg InitiatorConfig) *Initiator {
	stripelib.Key = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Initiator{
		cfg:                   cfg,
		createCheckoutSession: stripesession.New,
		createPortalSession:   portalsession.New,
	}
}

// NewInitiatorFromEnv builds the initiator from the deployment environment.
func NewInitiatorFromEnv() *Initiator {
	base := env.GetEnv("PUBLIC_DOMAIN", "")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return NewInitiator(InitiatorConfig{
		APIKey:  env.GetEnv("STRIPE_SECRET_KEY", ""),
		BaseURL: base,
		PriceIDs: map[Plan]string{
			PlanMonthly:  env.GetEnv("STRIPE_PRICE_MONTHLY", ""),
			PlanYearly:   env.GetEnv("STRIPE_PRICE_YEARLY", ""),
			PlanLifetime: env.GetEnv("STRIPE_PRICE_LIFETIME", ""),
		},
	})
}

// CreateCheckoutSession starts a hosted checkout for the given plan and
// returns the provider-issued redirect URL unmodified. The user id and plan
// travel in the session metadata so the webhook path can attribute the
// completed checkout.
func (i *Initiator) CreateCheckoutSession(ctx context.Context, userID uint, email string, rawPlan string, existingCustomerID string) (string, error) {
	plan, ok := ParsePlan(rawPlan)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, rawPlan)
	}
	priceID := strings.TrimSpace(i.cfg.PriceIDs[plan])
	if priceID == "" {
		return "", fmt.Errorf("%w: %s", ErrPriceNotConfigured, plan)
	}

	mode := stripelib.CheckoutSessionModeSubscription
	if plan == PlanLifetime {
		mode = stripelib.CheckoutSessionModePayment
	}

	params := &stripelib.CheckoutSessionParams{
		Params:             stripelib.Params{Context: ctx},
		Mode:               stripelib.String(string(mode)),
		PaymentMethodTypes: stripelib.StringSlice([]string{"card"}),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(priceID),
				Quantity: stripelib.Int64(1),
			},
		},
		SuccessURL:          stripelib.String(i.cfg.BaseURL + "/dashboard?upgraded=true"),
		CancelURL:           stripelib.String(i.cfg.BaseURL + "/dashboard"),
		AllowPromotionCodes: stripelib.Bool(true),
		Metadata: map[string]string{
			"user_id": strconv.FormatUint(uint64(userID), 10),
			"plan":    string(plan),
		},
	}
	// An already known customer reuses its provider identity; otherwise the
	// checkout is seeded with the user's email.
	if existingCustomerID != "" {
		params.Customer = stripelib.String(existingCustomerID)
	} else {
		params.CustomerEmail = stripelib.String(email)
	}

	sess, err := i.createCheckoutSession(params)
	if err != nil {
		return "", err
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return "", errors.New("billing: provider returned checkout session without URL")
	}
	return sess.URL, nil
}

// CreatePortalSession starts a hosted account-management portal session for
// an existing provider customer.
func (i *Initiator) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripelib.BillingPortalSessionParams{
		Params:    stripelib.Params{Context: ctx},
		Customer:  stripelib.String(customerID),
		ReturnURL: stripelib.String(i.cfg.BaseURL + "/dashboard"),
	}

	sess, err := i.createPortalSession(params)
	if err != nil {
		return "", err
	}
	if sess == nil || strings.TrimSpace(sess.URL) == "" {
		return "", errors.New("billing: provider returned portal session without URL")
	}
	return sess.URL, nil
}
