package billing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gostarterkit/saaskit/app/models"
	"gorm.io/gorm"
)

// Service drives one webhook event through dedup, record lookup, reduction
// and persistence. Each call is a single bounded unit of work; retries are
// the provider's job, so any storage failure surfaces as an error.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// HandleEvent applies a verified event to the subscription state. The
// returned Outcome reports Skipped for inapplicable events; those are
// successes so the provider stops redelivering them. Errors mean the event
// must be redelivered.
func (s *Service) HandleEvent(ctx context.Context, ev Event, rawPayload []byte) (Outcome, error) {
	created, stored, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.BillingWebhookEvent{
		StripeEventID:  ev.ID,
		EventType:      ev.Type,
		PayloadJSON:    string(rawPayload),
		SignatureValid: true,
	})
	if err != nil {
		return Outcome{}, err
	}
	// Only a delivery that ran to completion counts as a duplicate. A stored
	// event without ProcessedAt failed mid-flight, and the provider's
	// redelivery is the retry path, so it runs the pipeline again.
	if !created && stored.ProcessedAt != nil {
		return skipped("duplicate delivery of event " + ev.ID), nil
	}

	outcome, err := s.applyEvent(ctx, ev)
	if err != nil {
		_ = s.repo.MarkWebhookFailed(ctx, stored.ID, err.Error())
		return Outcome{}, err
	}

	if err := s.repo.MarkWebhookProcessed(ctx, stored.ID, outcome.Reason); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// applyEvent routes the event to the record it addresses and reduces it under
// the store's row lock. Lookup misses are skips; storage failures propagate.
func (s *Service) applyEvent(ctx context.Context, ev Event) (Outcome, error) {
	reduce := func(rec *SubscriptionRecord) (Change, Outcome) {
		return Reduce(rec, ev, time.Now())
	}

	switch ev.Kind {
	case EventCheckoutCompleted:
		if ev.Checkout.UserID == "" {
			return skipped("checkout session has no user metadata"), nil
		}
		userID, err := strconv.ParseUint(ev.Checkout.UserID, 10, 32)
		if err != nil {
			return skipped("checkout session has malformed user metadata"), nil
		}
		outcome, err := s.repo.ReduceByUserID(ctx, uint(userID), reduce)
		if errors.Is(err, ErrRecordNotFound) {
			return skipped("no user record for checkout metadata"), nil
		}
		return outcome, err

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		customerID := ev.Subscription.CustomerID
		if customerID == "" {
			return skipped("subscription event has no customer id"), nil
		}
		outcome, err := s.repo.ReduceByCustomerID(ctx, customerID, reduce)
		if errors.Is(err, ErrRecordNotFound) {
			return skipped("no user record for customer " + customerID), nil
		}
		return outcome, err

	default:
		return skipped("unhandled event type " + ev.Type), nil
	}
}
