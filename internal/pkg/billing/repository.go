package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gostarterkit/saaskit/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRecordNotFound is returned when a lookup key matches no user record.
	// Callers map it to a Skipped outcome, not a failure.
	ErrRecordNotFound = errors.New("billing: record not found")
	// ErrStorageUnavailable wraps transient store failures. It propagates as
	// a failure response so the provider redelivers the event.
	ErrStorageUnavailable = errors.New("billing: storage unavailable")
)

// ReduceFunc decides the state transition for the record it is handed. The
// repository calls it with the row held under a write lock, so the decision
// and the write cannot interleave with a concurrent event for the same user.
type ReduceFunc func(rec *SubscriptionRecord) (Change, Outcome)

// Repository is the store adapter used by the billing service.
type Repository interface {
	ReduceByUserID(ctx context.Context, userID uint, reduce ReduceFunc) (Outcome, error)
	ReduceByCustomerID(ctx context.Context, customerID string, reduce ReduceFunc) (Outcome, error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, note string) error
	MarkWebhookFailed(ctx context.Context, id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ReduceByUserID(ctx context.Context, userID uint, reduce ReduceFunc) (Outcome, error) {
	return r.reduceUnderLock(ctx, "id = ?", userID, reduce)
}

func (r *gormRepository) ReduceByCustomerID(ctx context.Context, customerID string, reduce ReduceFunc) (Outcome, error) {
	return r.reduceUnderLock(ctx, "stripe_customer_id = ?", customerID, reduce)
}

// reduceUnderLock runs the whole read-decide-write cycle inside one locking
// transaction. Concurrent events for the same user serialize on the row lock
// and each reduction sees the state the previous one committed.
func (r *gormRepository) reduceUnderLock(ctx context.Context, cond string, arg interface{}, reduce ReduceFunc) (Outcome, error) {
	var outcome Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(cond, arg).First(&user).Error; err != nil {
			return err
		}

		var ch Change
		ch, outcome = reduce(recordFromUser(&user))
		if !outcome.Applied || ch.IsEmpty() {
			return nil
		}

		updates := ch.updates()
		updates["updated_at"] = time.Now()
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Outcome{}, ErrRecordNotFound
		}
		return Outcome{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return outcome, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, tx.Error)
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).Where("stripe_event_id = ?", event.StripeEventID).
		First(&stored).Error; err != nil {
		return false, nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return created, &stored, nil
}

// MarkWebhookProcessed records a completed delivery. ProcessedAt is the
// success marker: a stored event without it is eligible for reprocessing on
// the next delivery attempt.
func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, note string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": note,
	}
	return r.markWebhook(ctx, id, updates)
}

// MarkWebhookFailed records the failure reason but leaves ProcessedAt null,
// so the provider's redelivery of the same event runs the pipeline again.
func (r *gormRepository) MarkWebhookFailed(ctx context.Context, id uint, processingError string) error {
	return r.markWebhook(ctx, id, map[string]interface{}{
		"processing_error": processingError,
	})
}

func (r *gormRepository) markWebhook(ctx context.Context, id uint, updates map[string]interface{}) error {
	if err := r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).
		Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func recordFromUser(u *models.User) *SubscriptionRecord {
	status, _ := ParseSubscriptionStatus(u.SubscriptionStatus)
	rec := &SubscriptionRecord{
		UserID:    u.ID,
		IsPro:     u.IsPro,
		Status:    status,
		Plan:      u.SubscriptionPlan,
		ExpiresAt: u.SubscriptionExpiresAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.StripeCustomerID != nil {
		rec.CustomerID = *u.StripeCustomerID
	}
	return rec
}

// updates renders the change as a partial GORM updates map. Only supplied
// fields appear so untouched columns keep their values.
func (c Change) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if c.IsPro != nil {
		updates["is_pro"] = *c.IsPro
	}
	if c.CustomerID != nil {
		updates["stripe_customer_id"] = *c.CustomerID
	}
	if c.Status != nil {
		updates["subscription_status"] = *c.Status
	}
	if c.Plan != nil {
		updates["subscription_plan"] = *c.Plan
	}
	if c.ClearExpiresAt {
		updates["subscription_expires_at"] = gorm.Expr("NULL")
	} else if c.ExpiresAt != nil {
		updates["subscription_expires_at"] = *c.ExpiresAt
	}
	return updates
}
