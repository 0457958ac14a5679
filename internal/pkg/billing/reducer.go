package billing

import (
	"time"
)

// SubscriptionRecord is the reducer's read view of a user's billing state.
type SubscriptionRecord struct {
	UserID     uint
	CustomerID string
	IsPro      bool
	Status     string
	Plan       string
	ExpiresAt  *time.Time
	UpdatedAt  time.Time
}

// Change holds only the record fields a reduction wants written. Nil pointers
// leave the stored field untouched. ClearExpiresAt distinguishes "set expiry
// to null" (lifetime) from "leave expiry alone".
type Change struct {
	IsPro          *bool
	CustomerID     *string
	Status         *string
	Plan           *string
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

// IsEmpty reports whether the change would write nothing.
func (c Change) IsEmpty() bool {
	return c.IsPro == nil && c.CustomerID == nil && c.Status == nil &&
		c.Plan == nil && c.ExpiresAt == nil && !c.ClearExpiresAt
}

// Outcome reports whether an event produced a state transition. Skipped is
// not an error: structurally valid but inapplicable events acknowledge with
// success so the provider stops redelivering them.
type Outcome struct {
	Applied bool
	Reason  string
}

func applied() Outcome              { return Outcome{Applied: true} }
func skipped(reason string) Outcome { return Outcome{Reason: reason} }

// Reduce maps a verified event onto a state transition for rec. It is pure:
// no I/O, no clock access beyond the injected now. rec is nil when the lookup
// key on the event matched no stored record.
func Reduce(rec *SubscriptionRecord, ev Event, now time.Time) (Change, Outcome) {
	switch ev.Kind {
	case EventCheckoutCompleted:
		return reduceCheckoutCompleted(rec, ev.Checkout, now)
	case EventSubscriptionUpdated:
		return reduceSubscriptionUpdated(rec, ev, now)
	case EventSubscriptionDeleted:
		return reduceSubscriptionDeleted(rec)
	default:
		return Change{}, skipped("unhandled event type " + ev.Type)
	}
}

func reduceCheckoutCompleted(rec *SubscriptionRecord, co *CheckoutCompleted, now time.Time) (Change, Outcome) {
	if co.UserID == "" {
		return Change{}, skipped("checkout session has no user metadata")
	}
	if rec == nil {
		return Change{}, skipped("no user record for checkout metadata")
	}
	plan, ok := ParsePlan(co.PlanRef)
	if !ok {
		return Change{}, skipped("checkout session has unknown plan " + co.PlanRef)
	}
	// A user maps to exactly one provider customer. A checkout referencing a
	// different customer id than the stored one is never applied.
	if rec.CustomerID != "" && co.CustomerID != "" && rec.CustomerID != co.CustomerID {
		return Change{}, skipped("customer id conflict for user record")
	}

	ch := Change{
		IsPro:  boolPtr(true),
		Status: strPtr(SubscriptionActive),
		Plan:   strPtr(string(plan)),
	}
	if rec.CustomerID == "" && co.CustomerID != "" {
		ch.CustomerID = strPtr(co.CustomerID)
	}
	if plan == PlanLifetime {
		ch.ClearExpiresAt = true
	} else {
		ch.ExpiresAt = plan.PeriodEnd(now)
	}
	return ch, applied()
}

func reduceSubscriptionUpdated(rec *SubscriptionRecord, ev Event, now time.Time) (Change, Outcome) {
	sub := ev.Subscription
	if rec == nil {
		return Change{}, skipped("no user record for customer " + sub.CustomerID)
	}

	if sub.ProviderStatus != SubscriptionActive {
		// Expiry is deliberately left as-is: access runs out at the already
		// known period end.
		return Change{
			IsPro:  boolPtr(false),
			Status: strPtr(SubscriptionCanceled),
		}, applied()
	}

	// Guard against a late-delivered "active" overwriting a newer
	// cancellation. A genuinely fresh reactivation carries a newer
	// event timestamp and still applies.
	if rec.Status == SubscriptionCanceled && !ev.Created.IsZero() && ev.Created.Before(rec.UpdatedAt) {
		return Change{}, skipped("stale reactivation for canceled record")
	}

	ch := Change{
		IsPro:  boolPtr(true),
		Status: strPtr(SubscriptionActive),
	}
	switch {
	case sub.CurrentPeriodEnd != nil:
		ch.ExpiresAt = sub.CurrentPeriodEnd
	default:
		exp := intervalPeriodEnd(sub.PriceInterval, now)
		if exp == nil {
			if plan, ok := ParsePlan(rec.Plan); ok {
				exp = plan.PeriodEnd(now)
			}
		}
		ch.ExpiresAt = exp
	}

	out := applied()
	if sub.CancelAtPeriodEnd {
		// Access continues until the period end; the deletion event flips the
		// status when the provider actually ends the subscription.
		out.Reason = "active with cancellation scheduled at period end"
	}
	return ch, out
}

func reduceSubscriptionDeleted(rec *SubscriptionRecord) (Change, Outcome) {
	if rec == nil {
		return Change{}, skipped("no user record for deleted subscription")
	}
	// Plan and expiry stay untouched for display purposes.
	return Change{
		IsPro:  boolPtr(false),
		Status: strPtr(SubscriptionCanceled),
	}, applied()
}

func boolPtr(b bool) *bool    { return &b }
func strPtr(s string) *string { return &s }
