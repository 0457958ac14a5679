package billing

import (
	"reflect"
	"testing"
	"time"
)

var reducerNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func checkoutEvent(userID, planRef, customerID string) Event {
	return Event{
		Kind:    EventCheckoutCompleted,
		ID:      "evt_checkout",
		Type:    string(EventCheckoutCompleted),
		Created: reducerNow,
		Checkout: &CheckoutCompleted{
			SessionID:  "cs_1",
			CustomerID: customerID,
			UserID:     userID,
			PlanRef:    planRef,
		},
	}
}

func subscriptionEvent(kind EventKind, sub SubscriptionChange, created time.Time) Event {
	return Event{
		Kind:         kind,
		ID:           "evt_sub",
		Type:         string(kind),
		Created:      created,
		Subscription: &sub,
	}
}

func freeRecord() *SubscriptionRecord {
	return &SubscriptionRecord{
		UserID: 42,
		Status: SubscriptionNone,
	}
}

func TestReduce_CheckoutMonthly(t *testing.T) {
	ch, out := Reduce(freeRecord(), checkoutEvent("42", "monthly", "cus_new"), reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	if ch.IsPro == nil || !*ch.IsPro {
		t.Fatal("expected is_pro true")
	}
	if ch.Status == nil || *ch.Status != SubscriptionActive {
		t.Fatalf("status = %v", ch.Status)
	}
	if ch.Plan == nil || *ch.Plan != "monthly" {
		t.Fatalf("plan = %v", ch.Plan)
	}
	if ch.CustomerID == nil || *ch.CustomerID != "cus_new" {
		t.Fatalf("customer id = %v", ch.CustomerID)
	}
	want := reducerNow.Add(30 * 24 * time.Hour)
	if ch.ExpiresAt == nil || !ch.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", ch.ExpiresAt, want)
	}
	if ch.ClearExpiresAt {
		t.Fatal("monthly checkout must not clear expiry")
	}
}

func TestReduce_CheckoutLifetime(t *testing.T) {
	ch, out := Reduce(freeRecord(), checkoutEvent("42", "lifetime", "cus_new"), reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	if !ch.ClearExpiresAt {
		t.Fatal("lifetime checkout must clear expiry")
	}
	if ch.ExpiresAt != nil {
		t.Fatalf("expires at = %v, want nil", ch.ExpiresAt)
	}
	if ch.Plan == nil || *ch.Plan != "lifetime" {
		t.Fatalf("plan = %v", ch.Plan)
	}
}

func TestReduce_CheckoutSkips(t *testing.T) {
	tests := []struct {
		name string
		rec  *SubscriptionRecord
		ev   Event
	}{
		{name: "no user metadata", rec: freeRecord(), ev: checkoutEvent("", "monthly", "cus_1")},
		{name: "no record", rec: nil, ev: checkoutEvent("42", "monthly", "cus_1")},
		{name: "unknown plan", rec: freeRecord(), ev: checkoutEvent("42", "quarterly", "cus_1")},
		{
			name: "customer conflict",
			rec:  &SubscriptionRecord{UserID: 42, CustomerID: "cus_old"},
			ev:   checkoutEvent("42", "monthly", "cus_other"),
		},
	}

	for _, tt := range tests {
		ch, out := Reduce(tt.rec, tt.ev, reducerNow)
		if out.Applied {
			t.Fatalf("%s: expected skip, got applied", tt.name)
		}
		if out.Reason == "" {
			t.Fatalf("%s: skip must carry a reason", tt.name)
		}
		if !ch.IsEmpty() {
			t.Fatalf("%s: skipped event must not produce a change", tt.name)
		}
	}
}

func TestReduce_CheckoutKeepsExistingCustomerID(t *testing.T) {
	rec := &SubscriptionRecord{UserID: 42, CustomerID: "cus_known"}
	ch, out := Reduce(rec, checkoutEvent("42", "yearly", "cus_known"), reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	if ch.CustomerID != nil {
		t.Fatalf("already linked customer id must not be rewritten, got %v", ch.CustomerID)
	}
}

func TestReduce_IsDeterministic(t *testing.T) {
	ev := checkoutEvent("42", "monthly", "cus_new")

	first, firstOut := Reduce(freeRecord(), ev, reducerNow)
	second, secondOut := Reduce(freeRecord(), ev, reducerNow)

	if firstOut != secondOut {
		t.Fatalf("outcomes differ: %+v vs %+v", firstOut, secondOut)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("changes differ: %+v vs %+v", first, second)
	}
}

func TestReduce_SubscriptionUpdatedActive(t *testing.T) {
	periodEnd := reducerNow.Add(14 * 24 * time.Hour)
	rec := &SubscriptionRecord{UserID: 42, CustomerID: "cus_1", IsPro: true, Status: SubscriptionActive, Plan: "monthly"}
	ev := subscriptionEvent(EventSubscriptionUpdated, SubscriptionChange{
		CustomerID:       "cus_1",
		ProviderStatus:   "active",
		CurrentPeriodEnd: &periodEnd,
	}, reducerNow)

	ch, out := Reduce(rec, ev, reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	if ch.ExpiresAt == nil || !ch.ExpiresAt.Equal(periodEnd) {
		t.Fatalf("expires at = %v, want provider period end %v", ch.ExpiresAt, periodEnd)
	}
}

func TestReduce_SubscriptionUpdatedCancelScheduled(t *testing.T) {
	periodEnd := reducerNow.Add(14 * 24 * time.Hour)
	rec := &SubscriptionRecord{UserID: 42, CustomerID: "cus_1", IsPro: true, Status: SubscriptionActive, Plan: "monthly"}
	ev := subscriptionEvent(EventSubscriptionUpdated, SubscriptionChange{
		CustomerID:        "cus_1",
		ProviderStatus:    "active",
		CancelAtPeriodEnd: true,
		CurrentPeriodEnd:  &periodEnd,
	}, reducerNow)

	ch, out := Reduce(rec, ev, reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	// Access runs to the period end; only the deletion event revokes it.
	if ch.IsPro == nil || !*ch.IsPro {
		t.Fatal("scheduled cancellation must keep access until period end")
	}
	if out.Reason == "" {
		t.Fatal("scheduled cancellation must be noted on the outcome")
	}
}

func TestReduce_SubscriptionUpdatedIntervalFallback(t *testing.T) {
	rec := &SubscriptionRecord{UserID: 42, CustomerID: "cus_1", Plan: "monthly"}
	ev := subscriptionEvent(EventSubscriptionUpdated, SubscriptionChange{
		CustomerID:     "cus_1",
		ProviderStatus: "active",
		PriceInterval:  "year",
	}, reducerNow)

	ch, out := Reduce(rec, ev, reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	want := reducerNow.Add(365 * 24 * time.Hour)
	if ch.ExpiresAt == nil || !ch.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want interval-derived %v", ch.ExpiresAt, want)
	}
}

func TestReduce_SubscriptionUpdatedPlanFallback(t *testing.T) {
	rec := &SubscriptionRecord{UserID: 42, CustomerID: "cus_1", Plan: "monthly"}
	ev := subscriptionEvent(EventSubscriptionUpdated, SubscriptionChange{
		CustomerID:     "cus_1",
		ProviderStatus: "active",
	}, reducerNow)

	ch, out := Reduce(rec, ev, reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	want := reducerNow.Add(30 * 24 * time.Hour)
	if ch.ExpiresAt == nil || !ch.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want plan-derived %v", ch.ExpiresAt, want)
	}
}

func TestReduce_SubscriptionUpdatedNonActive(t *testing.T) {
	rec := &SubscriptionRecord{UserID: 42, CustomerID: "cus_1", IsPro: true, Status: SubscriptionActive, Plan: "monthly"}
	ev := subscriptionEvent(EventSubscriptionUpdated, SubscriptionChange{
		CustomerID:     "cus_1",
		ProviderStatus: "past_due",
	}, reducerNow)

	ch, out := Reduce(rec, ev, reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	if ch.IsPro == nil || *ch.IsPro {
		t.Fatal("expected is_pro false")
	}
	if ch.Status == nil || *ch.Status != SubscriptionCanceled {
		t.Fatalf("status = %v", ch.Status)
	}
	if ch.ExpiresAt != nil || ch.ClearExpiresAt {
		t.Fatal("expiry must stay untouched on cancellation")
	}
	if ch.Plan != nil {
		t.Fatal("plan must stay untouched on cancellation")
	}
}

func TestReduce_StaleReactivationSkipped(t *testing.T) {
	rec := &SubscriptionRecord{
		UserID:     42,
		CustomerID: "cus_1",
		Status:     SubscriptionCanceled,
		UpdatedAt:  reducerNow,
	}
	stale := subscriptionEvent(EventSubscriptionUpdated, SubscriptionChange{
		CustomerID:     "cus_1",
		ProviderStatus: "active",
	}, reducerNow.Add(-time.Hour))

	ch, out := Reduce(rec, stale, reducerNow)
	if out.Applied {
		t.Fatal("late-delivered activation must not overwrite a newer cancellation")
	}
	if !ch.IsEmpty() {
		t.Fatalf("skipped event must not produce a change: %+v", ch)
	}

	fresh := subscriptionEvent(EventSubscriptionUpdated, SubscriptionChange{
		CustomerID:     "cus_1",
		ProviderStatus: "active",
		PriceInterval:  "month",
	}, reducerNow.Add(time.Hour))

	_, out = Reduce(rec, fresh, reducerNow)
	if !out.Applied {
		t.Fatalf("a genuinely newer reactivation must apply, got skip: %s", out.Reason)
	}
}

func TestReduce_SubscriptionDeleted(t *testing.T) {
	rec := &SubscriptionRecord{UserID: 42, CustomerID: "cus_1", IsPro: true, Status: SubscriptionActive, Plan: "yearly"}
	ev := subscriptionEvent(EventSubscriptionDeleted, SubscriptionChange{
		CustomerID:     "cus_1",
		ProviderStatus: "canceled",
	}, reducerNow)

	ch, out := Reduce(rec, ev, reducerNow)
	if !out.Applied {
		t.Fatalf("expected applied, got skip: %s", out.Reason)
	}
	if ch.IsPro == nil || *ch.IsPro {
		t.Fatal("expected is_pro false")
	}
	if ch.Status == nil || *ch.Status != SubscriptionCanceled {
		t.Fatalf("status = %v", ch.Status)
	}
	if ch.Plan != nil || ch.ExpiresAt != nil || ch.ClearExpiresAt {
		t.Fatal("deletion leaves plan and expiry as they were")
	}
}

func TestReduce_SubscriptionEventsWithoutRecord(t *testing.T) {
	for _, kind := range []EventKind{EventSubscriptionUpdated, EventSubscriptionDeleted} {
		ev := subscriptionEvent(kind, SubscriptionChange{CustomerID: "cus_unmatched", ProviderStatus: "active"}, reducerNow)
		ch, out := Reduce(nil, ev, reducerNow)
		if out.Applied {
			t.Fatalf("%s: expected skip for unmatched customer", kind)
		}
		if !ch.IsEmpty() {
			t.Fatalf("%s: skipped event must not produce a change", kind)
		}
	}
}

func TestReduce_UnknownKind(t *testing.T) {
	ev := Event{Kind: EventUnknown, Type: "invoice.paid", Created: reducerNow}
	ch, out := Reduce(freeRecord(), ev, reducerNow)
	if out.Applied {
		t.Fatal("unknown events must be skipped")
	}
	if !ch.IsEmpty() {
		t.Fatalf("unknown event produced a change: %+v", ch)
	}
}
