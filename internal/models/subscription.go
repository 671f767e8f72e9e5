package models

import "time"

// Subscription mirrors the billing state Stripe reports for a customer.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               *uint      `gorm:"index" json:"user_id,omitempty"`
	StripeCustomerID     string     `gorm:"type:varchar(64);index" json:"stripe_customer_id"`
	StripeSubscriptionID string     `gorm:"type:varchar(64);index" json:"stripe_subscription_id"`
	CheckoutSessionID    string     `gorm:"type:varchar(80);index" json:"checkout_session_id,omitempty"`
	SKU                  string     `gorm:"type:varchar(80)" json:"sku"`
	PriceID              string     `gorm:"type:varchar(80)" json:"price_id"`
	Status               string     `gorm:"type:varchar(32);not null;default:'incomplete'" json:"status"`
	CustomerEmail        string     `gorm:"type:varchar(254)" json:"customer_email,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	LastEventID          string     `gorm:"type:varchar(80)" json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
