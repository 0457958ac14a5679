package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	stripelib "github.com/stripe/stripe-go/v82"
)

// ErrEventMalformed is returned when a correctly signed envelope carries a
// payload that does not decode. Distinct from a signature failure so callers
// can label the rejection accurately.
var ErrEventMalformed = errors.New("billing: event payload malformed")

// EventKind is the closed set of provider notifications this system acts on.
// Everything else decodes to EventUnknown and is skipped downstream.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout.session.completed"
	EventSubscriptionUpdated EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted EventKind = "customer.subscription.deleted"
	EventUnknown             EventKind = "unknown"
)

// Event is a verified, decoded billing notification. Exactly one of the
// payload pointers matching Kind is populated.
type Event struct {
	Kind    EventKind
	ID      string
	Type    string
	Created time.Time

	Checkout     *CheckoutCompleted
	Subscription *SubscriptionChange
}

// CheckoutCompleted carries the fields of a completed hosted checkout that
// the reducer needs. UserID and PlanRef come from the session metadata this
// system wrote when it created the checkout.
type CheckoutCompleted struct {
	SessionID  string
	CustomerID string
	UserID     string
	PlanRef    string
}

// SubscriptionChange carries the subscription fields shared by the updated
// and deleted notifications.
type SubscriptionChange struct {
	SubscriptionID    string
	CustomerID        string
	ProviderStatus    string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  *time.Time
	PriceInterval     string
}

// Minimal JSON mirrors of the provider objects; only the fields read here.
type checkoutSessionPayload struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID        string `json:"id"`
				Recurring struct {
					Interval string `json:"interval"`
				} `json:"recurring"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// DecodeEvent maps a verified provider event envelope onto the closed Event
// type. Unrecognized event types are not an error; they become EventUnknown
// so newly introduced provider events never break the webhook path.
func DecodeEvent(ev *stripelib.Event) (Event, error) {
	out := Event{
		Kind:    EventUnknown,
		ID:      ev.ID,
		Type:    string(ev.Type),
		Created: time.Unix(ev.Created, 0),
	}

	switch EventKind(ev.Type) {
	case EventCheckoutCompleted:
		var sess checkoutSessionPayload
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return out, fmt.Errorf("%w: decode checkout session: %v", ErrEventMalformed, err)
		}
		out.Kind = EventCheckoutCompleted
		out.Checkout = &CheckoutCompleted{
			SessionID:  sess.ID,
			CustomerID: strings.TrimSpace(sess.Customer),
			UserID:     strings.TrimSpace(sess.Metadata["user_id"]),
			PlanRef:    strings.TrimSpace(sess.Metadata["plan"]),
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub subscriptionPayload
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return out, fmt.Errorf("%w: decode subscription: %v", ErrEventMalformed, err)
		}
		out.Kind = EventKind(ev.Type)
		out.Subscription = &SubscriptionChange{
			SubscriptionID:    sub.ID,
			CustomerID:        strings.TrimSpace(sub.Customer),
			ProviderStatus:    strings.ToLower(strings.TrimSpace(sub.Status)),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			CurrentPeriodEnd:  sub.periodEnd(),
			PriceInterval:     sub.firstPriceInterval(),
		}
	}

	return out, nil
}

// periodEnd prefers the item-level period end (current API shape) and falls
// back to the legacy top-level field.
func (s *subscriptionPayload) periodEnd() *time.Time {
	ts := s.CurrentPeriodEnd
	for _, item := range s.Items.Data {
		if item.CurrentPeriodEnd > 0 {
			ts = item.CurrentPeriodEnd
			break
		}
	}
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0)
	return &t
}

func (s *subscriptionPayload) firstPriceInterval() string {
	for _, item := range s.Items.Data {
		if iv := strings.TrimSpace(item.Price.Recurring.Interval); iv != "" {
			return iv
		}
	}
	return ""
}
