package billing

import (
	"context"
	"errors"
	"testing"

	stripelib "github.com/stripe/stripe-go/v82"
)

func testInitiator(t *testing.T) (*Initiator, **stripelib.CheckoutSessionParams) {
	t.Helper()

	var captured *stripelib.CheckoutSessionParams
	i := NewInitiator(InitiatorConfig{
		APIKey:  "sk_test_key",
		BaseURL: "https://app.example.com/",
		PriceIDs: map[Plan]string{
			PlanMonthly:  "price_monthly",
			PlanYearly:   "price_yearly",
			PlanLifetime: "price_lifetime",
		},
	})
	i.createCheckoutSession = func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error) {
		captured = params
		return &stripelib.CheckoutSession{URL: "https://checkout.example.com/s/1"}, nil
	}
	return i, &captured
}

func TestCreateCheckoutSession_Monthly(t *testing.T) {
	i, captured := testInitiator(t)

	url, err := i.CreateCheckoutSession(context.Background(), 42, "user@example.com", "monthly", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://checkout.example.com/s/1" {
		t.Fatalf("url = %q", url)
	}

	params := *captured
	if params == nil {
		t.Fatal("provider was not called")
	}
	if got := stripelib.StringValue(params.Mode); got != string(stripelib.CheckoutSessionModeSubscription) {
		t.Fatalf("mode = %q, want subscription", got)
	}
	if got := stripelib.StringValue(params.LineItems[0].Price); got != "price_monthly" {
		t.Fatalf("price = %q", got)
	}
	if params.Metadata["user_id"] != "42" || params.Metadata["plan"] != "monthly" {
		t.Fatalf("metadata = %v", params.Metadata)
	}
	if params.Customer != nil {
		t.Fatal("new customers must not carry a customer id")
	}
	if got := stripelib.StringValue(params.CustomerEmail); got != "user@example.com" {
		t.Fatalf("customer email = %q", got)
	}
	if got := stripelib.StringValue(params.SuccessURL); got != "https://app.example.com/dashboard?upgraded=true" {
		t.Fatalf("success url = %q", got)
	}
	if !stripelib.BoolValue(params.AllowPromotionCodes) {
		t.Fatal("promotion codes must be allowed")
	}
}

func TestCreateCheckoutSession_LifetimeIsOneTimePayment(t *testing.T) {
	i, captured := testInitiator(t)

	if _, err := i.CreateCheckoutSession(context.Background(), 42, "user@example.com", "lifetime", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := *captured
	if got := stripelib.StringValue(params.Mode); got != string(stripelib.CheckoutSessionModePayment) {
		t.Fatalf("mode = %q, want payment", got)
	}
	if got := stripelib.StringValue(params.LineItems[0].Price); got != "price_lifetime" {
		t.Fatalf("price = %q", got)
	}
}

func TestCreateCheckoutSession_ReusesExistingCustomer(t *testing.T) {
	i, captured := testInitiator(t)

	if _, err := i.CreateCheckoutSession(context.Background(), 42, "user@example.com", "yearly", "cus_known"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params := *captured
	if got := stripelib.StringValue(params.Customer); got != "cus_known" {
		t.Fatalf("customer = %q", got)
	}
	if params.CustomerEmail != nil {
		t.Fatal("known customers must not also send an email")
	}
}

func TestCreateCheckoutSession_UnknownPlan(t *testing.T) {
	i, _ := testInitiator(t)

	_, err := i.CreateCheckoutSession(context.Background(), 42, "user@example.com", "quarterly", "")
	if !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("err = %v, want ErrUnknownPlan", err)
	}
}

func TestCreateCheckoutSession_PriceNotConfigured(t *testing.T) {
	i, _ := testInitiator(t)
	i.cfg.PriceIDs[PlanYearly] = ""

	_, err := i.CreateCheckoutSession(context.Background(), 42, "user@example.com", "yearly", "")
	if !errors.Is(err, ErrPriceNotConfigured) {
		t.Fatalf("err = %v, want ErrPriceNotConfigured", err)
	}
}

func TestCreateCheckoutSession_EmptyProviderURL(t *testing.T) {
	i, _ := testInitiator(t)
	i.createCheckoutSession = func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error) {
		return &stripelib.CheckoutSession{}, nil
	}

	if _, err := i.CreateCheckoutSession(context.Background(), 42, "user@example.com", "monthly", ""); err == nil {
		t.Fatal("expected error for session without URL")
	}
}

func TestCreatePortalSession(t *testing.T) {
	i, _ := testInitiator(t)

	var captured *stripelib.BillingPortalSessionParams
	i.createPortalSession = func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error) {
		captured = params
		return &stripelib.BillingPortalSession{URL: "https://billing.example.com/p/1"}, nil
	}

	url, err := i.CreatePortalSession(context.Background(), "cus_known")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://billing.example.com/p/1" {
		t.Fatalf("url = %q", url)
	}
	if got := stripelib.StringValue(captured.Customer); got != "cus_known" {
		t.Fatalf("customer = %q", got)
	}
	if got := stripelib.StringValue(captured.ReturnURL); got != "https://app.example.com/dashboard" {
		t.Fatalf("return url = %q", got)
	}
}

func TestCreatePortalSession_ProviderError(t *testing.T) {
	i, _ := testInitiator(t)
	i.createPortalSession = func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error) {
		return nil, errors.New("provider down")
	}

	if _, err := i.CreatePortalSession(context.Background(), "cus_known"); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}
