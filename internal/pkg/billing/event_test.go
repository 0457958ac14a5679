package billing

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
)

func makeEvent(id, eventType string, created int64, raw string) *stripelib.Event {
	return &stripelib.Event{
		ID:      id,
		Type:    stripelib.EventType(eventType),
		Created: created,
		Data:    &stripelib.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestDecodeEvent_CheckoutCompleted(t *testing.T) {
	raw := `{
		"id": "cs_test_123",
		"customer": "cus_abc",
		"metadata": {"user_id": "42", "plan": "monthly"}
	}`

	ev, err := DecodeEvent(makeEvent("evt_1", "checkout.session.completed", 1740000000, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventCheckoutCompleted {
		t.Fatalf("kind = %q, want %q", ev.Kind, EventCheckoutCompleted)
	}
	if ev.Checkout == nil {
		t.Fatal("expected checkout payload")
	}
	if ev.Checkout.SessionID != "cs_test_123" {
		t.Fatalf("session id = %q", ev.Checkout.SessionID)
	}
	if ev.Checkout.CustomerID != "cus_abc" {
		t.Fatalf("customer id = %q", ev.Checkout.CustomerID)
	}
	if ev.Checkout.UserID != "42" || ev.Checkout.PlanRef != "monthly" {
		t.Fatalf("metadata = (%q, %q)", ev.Checkout.UserID, ev.Checkout.PlanRef)
	}
	if !ev.Created.Equal(time.Unix(1740000000, 0)) {
		t.Fatalf("created = %v", ev.Created)
	}
}

func TestDecodeEvent_CheckoutWithoutMetadata(t *testing.T) {
	raw := `{"id": "cs_test_456", "customer": "cus_abc"}`

	ev, err := DecodeEvent(makeEvent("evt_2", "checkout.session.completed", 1740000000, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Checkout.UserID != "" || ev.Checkout.PlanRef != "" {
		t.Fatalf("expected empty metadata, got (%q, %q)", ev.Checkout.UserID, ev.Checkout.PlanRef)
	}
}

func TestDecodeEvent_SubscriptionUpdated(t *testing.T) {
	raw := `{
		"id": "sub_1",
		"customer": "cus_abc",
		"status": "Active",
		"cancel_at_period_end": true,
		"current_period_end": 1000,
		"items": {
			"data": [
				{
					"current_period_end": 2000,
					"price": {"id": "price_1", "recurring": {"interval": "month"}}
				}
			]
		}
	}`

	ev, err := DecodeEvent(makeEvent("evt_3", "customer.subscription.updated", 1740000000, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventSubscriptionUpdated {
		t.Fatalf("kind = %q", ev.Kind)
	}
	sub := ev.Subscription
	if sub == nil {
		t.Fatal("expected subscription payload")
	}
	if sub.ProviderStatus != "active" {
		t.Fatalf("status = %q, want normalized active", sub.ProviderStatus)
	}
	if !sub.CancelAtPeriodEnd {
		t.Fatal("expected cancel_at_period_end to carry through")
	}
	// Item-level period end wins over the legacy top-level field.
	if sub.CurrentPeriodEnd == nil || !sub.CurrentPeriodEnd.Equal(time.Unix(2000, 0)) {
		t.Fatalf("current period end = %v, want %v", sub.CurrentPeriodEnd, time.Unix(2000, 0))
	}
	if sub.PriceInterval != "month" {
		t.Fatalf("price interval = %q", sub.PriceInterval)
	}
}

func TestDecodeEvent_SubscriptionLegacyPeriodEnd(t *testing.T) {
	raw := `{"id": "sub_2", "customer": "cus_abc", "status": "active", "current_period_end": 1500}`

	ev, err := DecodeEvent(makeEvent("evt_4", "customer.subscription.updated", 1740000000, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Subscription.CurrentPeriodEnd == nil || !ev.Subscription.CurrentPeriodEnd.Equal(time.Unix(1500, 0)) {
		t.Fatalf("current period end = %v", ev.Subscription.CurrentPeriodEnd)
	}
}

func TestDecodeEvent_SubscriptionDeleted(t *testing.T) {
	raw := `{"id": "sub_3", "customer": "cus_abc", "status": "canceled"}`

	ev, err := DecodeEvent(makeEvent("evt_5", "customer.subscription.deleted", 1740000000, raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventSubscriptionDeleted {
		t.Fatalf("kind = %q", ev.Kind)
	}
	if ev.Subscription.CurrentPeriodEnd != nil {
		t.Fatalf("expected nil period end, got %v", ev.Subscription.CurrentPeriodEnd)
	}
}

func TestDecodeEvent_UnknownType(t *testing.T) {
	ev, err := DecodeEvent(makeEvent("evt_6", "invoice.paid", 1740000000, `{"id": "in_1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Kind != EventUnknown {
		t.Fatalf("kind = %q, want %q", ev.Kind, EventUnknown)
	}
	if ev.Checkout != nil || ev.Subscription != nil {
		t.Fatal("unknown events must not carry a payload")
	}
	if ev.ID != "evt_6" || ev.Type != "invoice.paid" {
		t.Fatalf("envelope = (%q, %q)", ev.ID, ev.Type)
	}
}

func TestDecodeEvent_MalformedPayload(t *testing.T) {
	_, err := DecodeEvent(makeEvent("evt_7", "checkout.session.completed", 1740000000, `{notjson`))
	if !errors.Is(err, ErrEventMalformed) {
		t.Fatalf("err = %v, want ErrEventMalformed", err)
	}

	_, err = DecodeEvent(makeEvent("evt_8", "customer.subscription.updated", 1740000000, `[]`))
	if !errors.Is(err, ErrEventMalformed) {
		t.Fatalf("err = %v, want ErrEventMalformed", err)
	}
}
