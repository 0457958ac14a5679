package billing

import (
	"strings"
	"time"
)

// Plan is one of the three purchasable billing tiers.
type Plan string

const (
	PlanMonthly  Plan = "monthly"
	PlanYearly   Plan = "yearly"
	PlanLifetime Plan = "lifetime"
)

// Subscription status values stored on the user record.
const (
	SubscriptionNone     = "none"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

const (
	monthlyPeriodDays = 30
	yearlyPeriodDays  = 365
)

// ParseSubscriptionStatus normalizes a stored status value onto the closed
// three-state set. Unrecognized values fall back to none and report false so
// callers never branch on a fourth state.
func ParseSubscriptionStatus(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case SubscriptionActive:
		return SubscriptionActive, true
	case SubscriptionCanceled:
		return SubscriptionCanceled, true
	case SubscriptionNone, "":
		return SubscriptionNone, true
	default:
		return SubscriptionNone, false
	}
}

// ParsePlan normalizes a raw plan string and reports whether it is one of
// the known purchasable plans.
func ParsePlan(raw string) (Plan, bool) {
	switch Plan(strings.ToLower(strings.TrimSpace(raw))) {
	case PlanMonthly:
		return PlanMonthly, true
	case PlanYearly:
		return PlanYearly, true
	case PlanLifetime:
		return PlanLifetime, true
	default:
		return "", false
	}
}

// PeriodEnd returns the expiry for a plan period starting at now.
// Lifetime plans never expire and return nil.
func (p Plan) PeriodEnd(now time.Time) *time.Time {
	switch p {
	case PlanMonthly:
		t := now.Add(monthlyPeriodDays * 24 * time.Hour)
		return &t
	case PlanYearly:
		t := now.Add(yearlyPeriodDays * 24 * time.Hour)
		return &t
	default:
		return nil
	}
}

// intervalPeriodEnd derives an expiry from a provider price interval
// ("month" or "year"). Unknown intervals yield nil.
func intervalPeriodEnd(interval string, now time.Time) *time.Time {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "month":
		return PlanMonthly.PeriodEnd(now)
	case "year":
		return PlanYearly.PeriodEnd(now)
	default:
		return nil
	}
}
