package repository

import (
	"context"
	"errors"

	"skrbl/internal/models"
	"skrbl/internal/observability"

	"gorm.io/gorm"
)

// SubscriptionRepository stores the billing state reported by Stripe webhooks.
type SubscriptionRepository interface {
	// Upsert matches on the Stripe subscription id, falling back to the
	// checkout session id, and creates the row when neither matches.
	Upsert(ctx context.Context, sub *models.Subscription) error
	FindByStripeSubscriptionID(ctx context.Context, id string) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error)
}

type subscriptionRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSubscriptionRepository returns a gorm-backed SubscriptionRepository.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db, log: observability.NewRepoLogger("subscriptions")}
}

func (r *subscriptionRepository) FindByStripeSubscriptionID(ctx context.Context, id string) (*models.Subscription, error) {
	return r.findBy(ctx, "stripe_subscription_id = ?", id)
}

func (r *subscriptionRepository) findBy(ctx context.Context, query string, arg any) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where(query, arg).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &sub, nil
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &subscriptionRepository{db: tx, log: r.log}

		var existing *models.Subscription
		var err error
		if sub.StripeSubscriptionID != "" {
			existing, err = txRepo.FindByStripeSubscriptionID(ctx, sub.StripeSubscriptionID)
			if err != nil {
				return err
			}
		}
		if existing == nil && sub.CheckoutSessionID != "" {
			existing, err = txRepo.findBy(ctx, "checkout_session_id = ?", sub.CheckoutSessionID)
			if err != nil {
				return err
			}
		}

		if existing == nil {
			if err := tx.Create(sub).Error; err != nil {
				r.log.LogError(ctx, err, "create")
				return models.NewInternalError(err)
			}
			r.log.LogWrite(ctx, "create", map[string]any{"stripe_subscription_id": sub.StripeSubscriptionID, "status": sub.Status})
			return nil
		}

		mergeSubscription(existing, sub)
		if err := tx.Save(existing).Error; err != nil {
			r.log.LogError(ctx, err, "update")
			return models.NewInternalError(err)
		}
		*sub = *existing
		r.log.LogWrite(ctx, "update", map[string]any{"stripe_subscription_id": sub.StripeSubscriptionID, "status": sub.Status})
		return nil
	})
}

// mergeSubscription copies the non-empty fields of update onto dst.
func mergeSubscription(dst, update *models.Subscription) {
	if update.UserID != nil {
		dst.UserID = update.UserID
	}
	if update.StripeCustomerID != "" {
		dst.StripeCustomerID = update.StripeCustomerID
	}
	if update.StripeSubscriptionID != "" {
		dst.StripeSubscriptionID = update.StripeSubscriptionID
	}
	if update.CheckoutSessionID != "" {
		dst.CheckoutSessionID = update.CheckoutSessionID
	}
	if update.SKU != "" {
		dst.SKU = update.SKU
	}
	if update.PriceID != "" {
		dst.PriceID = update.PriceID
	}
	if update.Status != "" {
		dst.Status = update.Status
	}
	if update.CustomerEmail != "" {
		dst.CustomerEmail = update.CustomerEmail
	}
	if update.CurrentPeriodEnd != nil {
		dst.CurrentPeriodEnd = update.CurrentPeriodEnd
	}
	if update.LastEventID != "" {
		dst.LastEventID = update.LastEventID
	}
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&subs).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return subs, nil
}
